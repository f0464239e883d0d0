package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"genie-wallet/internal/domain/purchase"
	"genie-wallet/internal/infrastructure/genieapi"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Required int64  `json:"required,omitempty"`
	Balance  int64  `json:"balance,omitempty"`
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// エラーハンドリング
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// ドメインエラーの判定と処理
	if errors.Is(err, purchase.ErrIntentNotFound) {
		logger.Warn(ctx, "Purchase intent not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "intent_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, purchase.ErrInvalidStateTransition) {
		logger.Warn(ctx, "Invalid purchase state transition", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_state_transition",
			Message: err.Error(),
		})
	}

	if errors.Is(err, purchase.ErrInvalidTarget) ||
		errors.Is(err, purchase.ErrInvalidIntentKind) ||
		errors.Is(err, purchase.ErrInvalidCorrelationID) ||
		errors.Is(err, purchase.ErrInvalidUserID) {
		logger.Warn(ctx, "Invalid purchase request", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	// 上流エラーの判定と処理
	// 残高不足はアプリケーション層でアップセル応答に変換されるため
	// ここに到達するのは変換を経由しない経路のみ
	if ite, ok := genieapi.AsInsufficientTokens(err); ok {
		logger.Warn(ctx, "Insufficient tokens", map[string]interface{}{
			"required": ite.Required,
			"balance":  ite.Balance,
		})
		return c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Error:    "insufficient_tokens",
			Message:  err.Error(),
			Required: ite.Required,
			Balance:  ite.Balance,
		})
	}

	if errors.Is(err, genieapi.ErrNotAuthenticated) {
		logger.Warn(ctx, "Upstream rejected credentials", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication with the assistant backend failed",
		})
	}

	var invalidReq *genieapi.InvalidRequestError
	if errors.As(err, &invalidReq) {
		logger.Warn(ctx, "Upstream rejected request", map[string]interface{}{
			"message": invalidReq.Message,
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: invalidReq.Message,
		})
	}

	// 上流の障害は一時的なサービス低下として報告するが、
	// 上流自体のエラーと到達不能はクライアントが区別できるコードにする
	// （購入開始時の上流500を決済失敗や通信障害と誤認させない）
	if _, ok := genieapi.AsServerError(err); ok {
		logger.Error(ctx, "Upstream server error", err, map[string]interface{}{
			"path": c.Request().URL.Path,
		})
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "upstream_error",
			Message: "The service is temporarily unavailable, please try again later",
		})
	}

	if errors.Is(err, genieapi.ErrNetworkFailure) {
		logger.Error(ctx, "Upstream network failure", err, map[string]interface{}{
			"path": c.Request().URL.Path,
		})
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "upstream_unreachable",
			Message: "The assistant backend could not be reached, please try again later",
		})
	}

	if errors.Is(err, genieapi.ErrInvalidResponse) {
		logger.Error(ctx, "Invalid upstream response", err, map[string]interface{}{
			"path": c.Request().URL.Path,
		})
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "invalid_upstream_response",
			Message: "Received a malformed response from the assistant backend",
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
