package handler

// WalletBalanceResponse 残高レスポンス
// @Description 残高レスポンス
type WalletBalanceResponse struct {
	UserID   string `json:"user_id" example:"user123"`
	Balance  int64  `json:"balance" example:"120"`
	Severity string `json:"severity" example:"normal" enums:"critical,low,moderate,normal"`
	Tier     string `json:"tier,omitempty" example:"premium"`
}

// WalletRefreshRequest 残高リフレッシュリクエスト
// @Description 残高リフレッシュリクエスト
type WalletRefreshRequest struct {
	BypassCache bool `json:"bypass_cache" example:"false"`
}

// WalletRefreshResponse 残高リフレッシュレスポンス
// @Description 残高リフレッシュレスポンス
type WalletRefreshResponse struct {
	UserID  string `json:"user_id" example:"user123"`
	Balance int64  `json:"balance" example:"120"`
	Skipped bool   `json:"skipped" example:"false"`
}
