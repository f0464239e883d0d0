package handler

import (
	"net/http"

	assistantapp "genie-wallet/internal/application/assistant"

	"github.com/labstack/echo/v4"
)

// AssistantHandler AIクエリ関連ハンドラー
type AssistantHandler struct {
	assistantService *assistantapp.AssistantApplicationService
}

// NewAssistantHandler 新しいAssistantHandlerを作成
func NewAssistantHandler(assistantService *assistantapp.AssistantApplicationService) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
	}
}

// Query 課金対象クエリハンドラー
// @Summary AIクエリを実行
// @Description クエリをバックエンドに送信します。残高不足の場合はエラーではなくアップセルコンテキストが返ります
// @Tags assistant
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body AssistantQueryRequest true "クエリリクエスト"
// @Success 200 {object} AssistantQueryResponse "クエリ成功またはアップセル提案"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "上流サービス利用不可"
// @Router /assistant/query [post]
func (h *AssistantHandler) Query(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var reqBody AssistantQueryRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if reqBody.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	resp, err := h.assistantService.Query(c.Request().Context(), &assistantapp.QueryRequest{
		UserID:    userID,
		Text:      reqBody.Text,
		SessionID: reqBody.SessionID,
		QueryKind: reqBody.QueryKind,
	})
	if err != nil {
		return err
	}

	respBody := AssistantQueryResponse{
		Response:        resp.Response,
		TokensUsed:      resp.TokensUsed,
		TokensRemaining: resp.TokensRemaining,
		Balance:         resp.Balance,
		Severity:        string(resp.Severity),
		BalanceWarning:  resp.BalanceWarning,
		Title:           resp.Title,
		Actions:         resp.Actions,
	}

	if resp.Upsell != nil {
		plans := make([]UpsellPlan, len(resp.Upsell.AvailablePlans))
		for i, p := range resp.Upsell.AvailablePlans {
			plans[i] = UpsellPlan{
				Tier:             p.Tier,
				Period:           p.Period,
				MonthlyAllowance: p.MonthlyAllowance,
			}
		}
		packs := make([]UpsellPack, len(resp.Upsell.AvailablePacks))
		for i, p := range resp.Upsell.AvailablePacks {
			packs[i] = UpsellPack{
				PackageID: p.PackageID,
				Tokens:    p.Tokens,
			}
		}
		respBody.Upsell = &UpsellContext{
			RequiredTokens:    resp.Upsell.RequiredTokens,
			CurrentBalance:    resp.Upsell.CurrentBalance.Int64(),
			QueryKind:         resp.Upsell.QueryKindDescriptor,
			RecommendedAction: string(resp.Upsell.RecommendedAction),
			AvailablePlans:    plans,
			AvailablePacks:    packs,
		}
	}

	return c.JSON(http.StatusOK, respBody)
}
