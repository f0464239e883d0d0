package handler

import (
	"net/http"

	walletapp "genie-wallet/internal/application/wallet"

	"github.com/labstack/echo/v4"
)

// WalletHandler 残高関連ハンドラー
type WalletHandler struct {
	walletService *walletapp.WalletApplicationService
}

// NewWalletHandler 新しいWalletHandlerを作成
func NewWalletHandler(walletService *walletapp.WalletApplicationService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

// GetBalance 残高取得ハンドラー
// @Summary 残高を取得
// @Description 最後に同期したトークン残高と深刻度を返します（I/Oは行いません）
// @Tags wallet
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} WalletBalanceResponse "残高取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(c echo.Context) error {
	// トークンからuser_idを取得
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	resp := h.walletService.GetBalance(c.Request().Context(), &walletapp.GetBalanceRequest{
		UserID: userID,
	})

	return c.JSON(http.StatusOK, WalletBalanceResponse{
		UserID:   resp.UserID,
		Balance:  resp.Balance,
		Severity: string(resp.Severity),
		Tier:     resp.Tier,
	})
}

// Refresh 残高リフレッシュハンドラー
// @Summary 残高をリフレッシュ
// @Description 権威あるバックエンドから残高を取り直します。進行中のリフレッシュがある場合この呼び出しは破棄されます
// @Tags wallet
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body WalletRefreshRequest false "リフレッシュオプション"
// @Success 200 {object} WalletRefreshResponse "リフレッシュ完了またはスキップ"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 503 {object} ErrorResponse "上流サービス利用不可"
// @Router /wallet/refresh [post]
func (h *WalletHandler) Refresh(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var reqBody WalletRefreshRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.walletService.Refresh(c.Request().Context(), &walletapp.RefreshRequest{
		UserID:      userID,
		BypassCache: reqBody.BypassCache,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, WalletRefreshResponse{
		UserID:  resp.UserID,
		Balance: resp.Balance,
		Skipped: resp.Skipped,
	})
}
