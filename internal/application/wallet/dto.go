package wallet

import (
	"genie-wallet/internal/domain/balance"
)

// GetBalanceRequest 残高取得リクエスト
type GetBalanceRequest struct {
	UserID string
}

// GetBalanceResponse 残高取得レスポンス
type GetBalanceResponse struct {
	UserID   string
	Balance  int64
	Severity balance.Severity
	Tier     string
}

// RefreshRequest 残高リフレッシュリクエスト
type RefreshRequest struct {
	UserID      string
	BypassCache bool
}

// RefreshResponse 残高リフレッシュレスポンス
// Skippedがtrueの場合、別のリフレッシュが進行中だったため
// この呼び出しは破棄された（呼び出し元は自身の呼び出しで
// 更新が完了したと仮定してはならない）
type RefreshResponse struct {
	UserID  string
	Balance int64
	Skipped bool
}
