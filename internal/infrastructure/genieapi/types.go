package genieapi

// QueryRequest AIクエリリクエスト
type QueryRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	QueryKind string `json:"query_kind,omitempty"`
}

// QueryResponse AIクエリレスポンス
type QueryResponse struct {
	Response        string   `json:"response"`
	TokensUsed      int64    `json:"tokens_used"`
	TokensRemaining int64    `json:"tokens_remaining"`
	Actions         []string `json:"actions,omitempty"`
	Thinking        string   `json:"thinking,omitempty"`
	BalanceWarning  string   `json:"balance_warning,omitempty"`
	Title           string   `json:"title,omitempty"`
}

// balanceResponse 残高エンドポイントのワイヤ表現
type balanceResponse struct {
	Balance      int64                 `json:"balance"`
	Subscription *subscriptionResponse `json:"subscription,omitempty"`
}

// subscriptionResponse サブスクリプション詳細のワイヤ表現
type subscriptionResponse struct {
	Tier                     string `json:"tier"`
	MonthlyAllowance         int64  `json:"monthly_allowance"`
	TokensUsedThisMonth      int64  `json:"tokens_used_this_month"`
	TokensRemainingThisMonth int64  `json:"tokens_remaining_this_month"`
	TopUpBalance             int64  `json:"top_up_balance"`
}

// PaymentIntentResponse 支払いインテント作成レスポンス
type PaymentIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
}

// SetupIntentResponse セットアップインテント作成レスポンス
type SetupIntentResponse struct {
	SetupIntentID string `json:"setup_intent_id"`
	ClientSecret  string `json:"client_secret"`
}

// SubscriptionCreateResponse サブスクリプション作成レスポンス
type SubscriptionCreateResponse struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

// errorResponse 上流エラーのワイヤ表現
type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Required int64  `json:"required,omitempty"`
	Balance  int64  `json:"balance,omitempty"`
}
