package handler

import (
	"net/http"

	purchaseapp "genie-wallet/internal/application/purchase"
	"genie-wallet/internal/domain/upsell"

	"github.com/labstack/echo/v4"
)

// PurchaseHandler 購入フロー関連ハンドラー
type PurchaseHandler struct {
	purchaseService *purchaseapp.PurchaseApplicationService
	catalog         upsell.Catalog
}

// NewPurchaseHandler 新しいPurchaseHandlerを作成
func NewPurchaseHandler(purchaseService *purchaseapp.PurchaseApplicationService, catalog upsell.Catalog) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		catalog:         catalog,
	}
}

// GetCatalog 購入カタログ取得ハンドラー
// @Summary 購入カタログを取得
// @Description 購入可能なサブスクリプションプランとトークンパックの一覧を返します
// @Tags purchase
// @Produce json
// @Security Bearer
// @Success 200 {object} CatalogResponse "カタログ取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /catalog [get]
func (h *PurchaseHandler) GetCatalog(c echo.Context) error {
	plans := make([]UpsellPlan, len(h.catalog.Plans))
	for i, p := range h.catalog.Plans {
		plans[i] = UpsellPlan{
			Tier:             p.Tier,
			Period:           p.Period,
			MonthlyAllowance: p.MonthlyAllowance,
		}
	}
	packs := make([]UpsellPack, len(h.catalog.Packs))
	for i, p := range h.catalog.Packs {
		packs[i] = UpsellPack{
			PackageID: p.PackageID,
			Tokens:    p.Tokens,
		}
	}
	return c.JSON(http.StatusOK, CatalogResponse{
		Plans: plans,
		Packs: packs,
	})
}

// BeginTokenPack トークンパック購入開始ハンドラー
// @Summary トークンパック購入を開始
// @Description 購入意図を作成し、決済に必要なクライアントシークレットを返します
// @Tags purchase
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body BeginTokenPackRequest true "購入開始リクエスト"
// @Success 200 {object} BeginPurchaseResponse "購入開始成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "上流サービス利用不可"
// @Router /purchases/token-packs [post]
func (h *PurchaseHandler) BeginTokenPack(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var reqBody BeginTokenPackRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.PackageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "package_id is required")
	}

	resp, err := h.purchaseService.BeginTokenPack(c.Request().Context(), &purchaseapp.BeginTokenPackRequest{
		UserID:    userID,
		PackageID: reqBody.PackageID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BeginPurchaseResponse{
		CorrelationID: resp.CorrelationID,
		IntentID:      resp.PaymentIntentID,
		ClientSecret:  resp.ClientSecret,
	})
}

// BeginSubscription サブスクリプション購入開始ハンドラー
// @Summary サブスクリプション購入を開始
// @Description 購入意図を作成し、決済手段登録に必要なクライアントシークレットを返します
// @Tags purchase
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body BeginSubscriptionRequest true "購入開始リクエスト"
// @Success 200 {object} BeginPurchaseResponse "購入開始成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "上流サービス利用不可"
// @Router /purchases/subscriptions [post]
func (h *PurchaseHandler) BeginSubscription(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var reqBody BeginSubscriptionRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.Tier == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tier is required")
	}
	if reqBody.Period == "" {
		reqBody.Period = "monthly"
	}

	resp, err := h.purchaseService.BeginSubscription(c.Request().Context(), &purchaseapp.BeginSubscriptionRequest{
		UserID: userID,
		Tier:   reqBody.Tier,
		Period: reqBody.Period,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BeginPurchaseResponse{
		CorrelationID: resp.CorrelationID,
		IntentID:      resp.SetupIntentID,
		ClientSecret:  resp.ClientSecret,
	})
}

// Complete 決済完了報告ハンドラー
// @Summary 決済完了を報告
// @Description 決済UIの成功報告を受けて残高照合を開始します。同一相関IDの再送は冪等です
// @Tags purchase
// @Accept json
// @Produce json
// @Security Bearer
// @Param correlation_id path string true "相関ID"
// @Param request body CompletePurchaseRequest false "完了報告オプション"
// @Success 200 {object} PurchaseStateResponse "完了報告受理"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "購入意図が見つからない"
// @Router /purchases/{correlation_id}/complete [post]
func (h *PurchaseHandler) Complete(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "correlation_id is required")
	}

	var reqBody CompletePurchaseRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.purchaseService.Complete(c.Request().Context(), &purchaseapp.CompleteRequest{
		CorrelationID:   correlationID,
		UserID:          userID,
		PaymentMethodID: reqBody.PaymentMethodID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PurchaseStateResponse{
		CorrelationID: resp.CorrelationID,
		State:         resp.State,
		AlreadyDone:   resp.AlreadyDone,
	})
}

// Cancel 決済キャンセル・失敗報告ハンドラー
// @Summary 決済のキャンセルまたは失敗を報告
// @Description キャンセルは静かに処理され、残高は変更されません
// @Tags purchase
// @Accept json
// @Produce json
// @Security Bearer
// @Param correlation_id path string true "相関ID"
// @Param request body CancelPurchaseRequest false "キャンセル報告オプション"
// @Success 200 {object} PurchaseStateResponse "キャンセル報告受理"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "購入意図が見つからない"
// @Router /purchases/{correlation_id}/cancel [post]
func (h *PurchaseHandler) Cancel(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	correlationID := c.Param("correlation_id")
	if correlationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "correlation_id is required")
	}

	var reqBody CancelPurchaseRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.purchaseService.Cancel(c.Request().Context(), &purchaseapp.CancelRequest{
		CorrelationID: correlationID,
		UserID:        userID,
		FailureReason: reqBody.FailureReason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PurchaseStateResponse{
		CorrelationID: resp.CorrelationID,
		State:         resp.State,
	})
}

// CompleteWebhook 決済プロセッサーWebhook用の完了報告ハンドラー
// @Summary 決済完了Webhook
// @Description 決済プロセッサーからの完了通知を処理します。クライアント経由の報告と同様に冪等です
// @Tags webhook
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body WebhookPaymentRequest true "決済イベント"
// @Success 200 {object} PurchaseStateResponse "イベント受理"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "購入意図が見つからない"
// @Router /webhooks/payments [post]
func (h *PurchaseHandler) CompleteWebhook(c echo.Context) error {
	var reqBody WebhookPaymentRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.CorrelationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "correlation_id is required")
	}

	ctx := c.Request().Context()

	if reqBody.Status == "failed" || reqBody.Status == "canceled" {
		resp, err := h.purchaseService.Cancel(ctx, &purchaseapp.CancelRequest{
			CorrelationID: reqBody.CorrelationID,
			FailureReason: reqBody.FailureReason,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, PurchaseStateResponse{
			CorrelationID: resp.CorrelationID,
			State:         resp.State,
		})
	}

	resp, err := h.purchaseService.Complete(ctx, &purchaseapp.CompleteRequest{
		CorrelationID:   reqBody.CorrelationID,
		PaymentMethodID: reqBody.PaymentMethodID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PurchaseStateResponse{
		CorrelationID: resp.CorrelationID,
		State:         resp.State,
		AlreadyDone:   resp.AlreadyDone,
	})
}

// CancelSubscription サブスクリプション解約ハンドラー
// @Summary サブスクリプションを解約
// @Description 上流でサブスクリプションを解約し、残高キャッシュを無効化します
// @Tags purchase
// @Produce json
// @Security Bearer
// @Success 204 "解約成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "上流サービス利用不可"
// @Router /subscriptions [delete]
func (h *PurchaseHandler) CancelSubscription(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	if err := h.purchaseService.CancelSubscription(c.Request().Context(), userID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
