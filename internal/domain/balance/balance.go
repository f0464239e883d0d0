package balance

// Balance トークン残高を表す値オブジェクト
// サーバー報告値が不正（マイナス）の場合は0にクランプされ、
// クライアント側で表示される残高は常に0以上となる
type Balance int64

// NewBalance 新しいBalanceを作成（マイナス値は0にクランプ）
func NewBalance(v int64) Balance {
	if v < 0 {
		return Balance(0)
	}
	return Balance(v)
}

// Int64 残高をint64として返す
func (b Balance) Int64() int64 {
	return int64(b)
}

// IsZero 残高がゼロかどうかを返す
func (b Balance) IsZero() bool {
	return b == 0
}

// CanAfford 指定コストを支払えるかどうかを返す
func (b Balance) CanAfford(cost int64) bool {
	return cost >= 0 && int64(b) >= cost
}

// Shortfall 指定コストに対する不足分を返す（不足がない場合は0）
func (b Balance) Shortfall(cost int64) int64 {
	if cost <= int64(b) {
		return 0
	}
	return cost - int64(b)
}
