package assistant

import (
	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/domain/upsell"
)

// QueryRequest 課金対象クエリのリクエスト
type QueryRequest struct {
	UserID    string
	Text      string
	SessionID string
	QueryKind string
}

// QueryResponse 課金対象クエリのレスポンス
// Upsellが非nilの場合、クエリは実行されておらず購入提案を表示すべきである
// （残高不足は失敗ではなく期待されるビジネス状態）
type QueryResponse struct {
	Response        string
	TokensUsed      int64
	TokensRemaining int64
	Balance         int64
	Severity        balance.Severity
	BalanceWarning  string
	Title           string
	Actions         []string
	Upsell          *upsell.Context
}
