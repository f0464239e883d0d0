package purchase

import "fmt"

// IntentKind 購入の種別を表す値オブジェクト
type IntentKind string

const (
	IntentKindTokenPack    IntentKind = "token_pack"   // 一回限りのトークン追加購入
	IntentKindSubscription IntentKind = "subscription" // サブスクリプション契約・変更
)

// NewIntentKind 新しいIntentKindを作成
func NewIntentKind(s string) (IntentKind, error) {
	switch s {
	case "token_pack", "subscription":
		return IntentKind(s), nil
	default:
		return "", fmt.Errorf("invalid intent kind: %s", s)
	}
}

// String 文字列表現を返す
func (k IntentKind) String() string {
	return string(k)
}

// IsTokenPack トークンパック購入かどうかを返す
func (k IntentKind) IsTokenPack() bool {
	return k == IntentKindTokenPack
}

// IsSubscription サブスクリプション購入かどうかを返す
func (k IntentKind) IsSubscription() bool {
	return k == IntentKindSubscription
}

// Valid 有効な購入種別かどうかを返す
func (k IntentKind) Valid() bool {
	return k == IntentKindTokenPack || k == IntentKindSubscription
}
