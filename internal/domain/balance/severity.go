package balance

// Severity 残高の表示重要度を表す値オブジェクト
// 境界値はより低い重要度側に属する（10はlow、50はmoderate）
type Severity string

const (
	SeverityCritical Severity = "critical" // 残高0
	SeverityLow      Severity = "low"      // 残高1〜10
	SeverityModerate Severity = "moderate" // 残高11〜50
	SeverityNormal   Severity = "normal"   // 残高51以上
)

const (
	// lowThreshold low判定の上限残高
	lowThreshold = 10
	// moderateThreshold moderate判定の上限残高
	moderateThreshold = 50
)

// SeverityOf 残高に対応する重要度を返す
func SeverityOf(b Balance) Severity {
	switch {
	case b == 0:
		return SeverityCritical
	case b.Int64() <= lowThreshold:
		return SeverityLow
	case b.Int64() <= moderateThreshold:
		return SeverityModerate
	default:
		return SeverityNormal
	}
}

// String 文字列表現を返す
func (s Severity) String() string {
	return string(s)
}
