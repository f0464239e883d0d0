package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// WebhookKeyMiddleware 決済プロセッサーからのWebhook用APIキー認証ミドルウェア
// ユーザーセッションを持たない呼び出し元のため、JWTの代わりに共有キーで認証する
func WebhookKeyMiddleware(apiKey string, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			// Webhookが無効化されている場合はエラー
			if apiKey == "" {
				logger.Warn(ctx, "Webhook endpoint is disabled", nil)
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "forbidden",
					Message: "Webhook endpoint is disabled",
				})
			}

			// X-API-KeyヘッダーからAPIキーを取得
			got := c.Request().Header.Get("X-API-Key")
			if got == "" {
				logger.Warn(ctx, "Missing X-API-Key header", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing X-API-Key header",
				})
			}

			// APIキーの検証
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				logger.Warn(ctx, "Invalid API key", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid API key",
				})
			}

			// 次のハンドラーを実行
			return next(c)
		}
	}
}
