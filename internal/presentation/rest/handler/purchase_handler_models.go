package handler

// CatalogResponse 購入カタログレスポンス
// @Description 購入カタログレスポンス
type CatalogResponse struct {
	Plans []UpsellPlan `json:"plans"`
	Packs []UpsellPack `json:"packs"`
}

// BeginTokenPackRequest トークンパック購入開始リクエスト
// @Description トークンパック購入開始リクエスト
type BeginTokenPackRequest struct {
	PackageID string `json:"package_id" example:"pack_500"`
}

// BeginSubscriptionRequest サブスクリプション購入開始リクエスト
// @Description サブスクリプション購入開始リクエスト
type BeginSubscriptionRequest struct {
	Tier   string `json:"tier" example:"premium"`
	Period string `json:"period" example:"monthly" enums:"monthly,yearly"`
}

// BeginPurchaseResponse 購入開始レスポンス
// @Description 購入開始レスポンス
type BeginPurchaseResponse struct {
	CorrelationID string `json:"correlation_id" example:"pi_3f1c2a"`
	IntentID      string `json:"intent_id" example:"pi_1Abc123"`
	ClientSecret  string `json:"client_secret" example:"pi_1Abc123_secret_xyz"`
}

// CompletePurchaseRequest 決済完了報告リクエスト
// @Description 決済完了報告リクエスト
type CompletePurchaseRequest struct {
	PaymentMethodID string `json:"payment_method_id,omitempty" example:"pm_1Abc123"`
}

// CancelPurchaseRequest 決済キャンセル・失敗報告リクエスト
// @Description 決済キャンセル・失敗報告リクエスト
type CancelPurchaseRequest struct {
	FailureReason string `json:"failure_reason,omitempty" example:"card_declined"`
}

// PurchaseStateResponse 購入フロー状態レスポンス
// @Description 購入フロー状態レスポンス
type PurchaseStateResponse struct {
	CorrelationID string `json:"correlation_id" example:"pi_3f1c2a"`
	State         string `json:"state" example:"payment_completed"`
	AlreadyDone   bool   `json:"already_done,omitempty" example:"false"`
}

// WebhookPaymentRequest 決済プロセッサーWebhookリクエスト
// @Description 決済プロセッサーWebhookリクエスト
type WebhookPaymentRequest struct {
	CorrelationID   string `json:"correlation_id" example:"pi_3f1c2a"`
	Status          string `json:"status" example:"succeeded" enums:"succeeded,failed,canceled"`
	PaymentMethodID string `json:"payment_method_id,omitempty" example:"pm_1Abc123"`
	FailureReason   string `json:"failure_reason,omitempty" example:"card_declined"`
}
