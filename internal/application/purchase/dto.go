package purchase

// BeginTokenPackRequest トークンパック購入開始リクエスト
type BeginTokenPackRequest struct {
	UserID    string
	PackageID string
}

// BeginTokenPackResponse トークンパック購入開始レスポンス
type BeginTokenPackResponse struct {
	CorrelationID   string
	PaymentIntentID string
	ClientSecret    string
}

// BeginSubscriptionRequest サブスクリプション購入開始リクエスト
type BeginSubscriptionRequest struct {
	UserID string
	Tier   string
	Period string
}

// BeginSubscriptionResponse サブスクリプション購入開始レスポンス
type BeginSubscriptionResponse struct {
	CorrelationID string
	SetupIntentID string
	ClientSecret  string
}

// CompleteRequest 決済UI完了報告リクエスト
// UserIDは認証済みクライアント経由の報告で設定され、意図の所有者と
// 照合される。決済プロセッサーWebhook経由の報告では空
type CompleteRequest struct {
	CorrelationID   string
	UserID          string
	PaymentMethodID string // サブスクリプション購入時のみ使用
}

// CompleteResponse 決済UI完了報告レスポンス
type CompleteResponse struct {
	CorrelationID string
	State         string
	AlreadyDone   bool // 冪等な再送の場合true（照合ループは再開されない）
}

// CancelRequest 決済UIキャンセル・失敗報告リクエスト
// UserIDの扱いはCompleteRequestと同じ
type CancelRequest struct {
	CorrelationID string
	UserID        string
	FailureReason string // 失敗時のみ（キャンセル時は空）
}

// CancelResponse 決済UIキャンセル・失敗報告レスポンス
type CancelResponse struct {
	CorrelationID string
	State         string
}
