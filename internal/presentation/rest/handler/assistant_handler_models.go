package handler

// AssistantQueryRequest AIクエリリクエスト
// @Description AIクエリリクエスト
type AssistantQueryRequest struct {
	Text      string `json:"text" example:"今週のトレーニングプランを作って"`
	SessionID string `json:"session_id,omitempty" example:"sess_abc123"`
	QueryKind string `json:"query_kind,omitempty" example:"workout_plan"`
}

// UpsellPlan アップセル画面に表示するサブスクリプションプラン
// @Description サブスクリプションプラン
type UpsellPlan struct {
	Tier             string `json:"tier" example:"premium"`
	Period           string `json:"period" example:"monthly"`
	MonthlyAllowance int64  `json:"monthly_allowance" example:"500"`
}

// UpsellPack アップセル画面に表示するトークンパック
// @Description トークンパック
type UpsellPack struct {
	PackageID string `json:"package_id" example:"pack_500"`
	Tokens    int64  `json:"tokens" example:"500"`
}

// UpsellContext 残高不足時の購入提案コンテキスト
// @Description 購入提案コンテキスト
type UpsellContext struct {
	RequiredTokens    int64        `json:"required_tokens" example:"50"`
	CurrentBalance    int64        `json:"current_balance" example:"12"`
	QueryKind         string       `json:"query_kind,omitempty" example:"workout_plan"`
	RecommendedAction string       `json:"recommended_action" example:"subscription" enums:"subscription,token_pack"`
	AvailablePlans    []UpsellPlan `json:"available_plans"`
	AvailablePacks    []UpsellPack `json:"available_packs"`
}

// AssistantQueryResponse AIクエリレスポンス
// @Description AIクエリレスポンス。upsellが存在する場合、クエリは実行されていません
type AssistantQueryResponse struct {
	Response        string         `json:"response,omitempty"`
	TokensUsed      int64          `json:"tokens_used" example:"25"`
	TokensRemaining int64          `json:"tokens_remaining" example:"95"`
	Balance         int64          `json:"balance" example:"95"`
	Severity        string         `json:"severity" example:"normal" enums:"critical,low,moderate,normal"`
	BalanceWarning  string         `json:"balance_warning,omitempty" example:"残高が少なくなっています"`
	Title           string         `json:"title,omitempty"`
	Actions         []string       `json:"actions,omitempty"`
	Upsell          *UpsellContext `json:"upsell,omitempty"`
}
