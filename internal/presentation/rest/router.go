package rest

import (
	assistantapp "genie-wallet/internal/application/assistant"
	authapp "genie-wallet/internal/application/auth"
	purchaseapp "genie-wallet/internal/application/purchase"
	walletapp "genie-wallet/internal/application/wallet"
	"genie-wallet/internal/infrastructure/config"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
	"genie-wallet/internal/presentation/rest/handler"
	restmiddleware "genie-wallet/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router REST APIルーター
type Router struct {
	echo             *echo.Echo
	authHandler      *handler.AuthHandler
	walletHandler    *handler.WalletHandler
	assistantHandler *handler.AssistantHandler
	purchaseHandler  *handler.PurchaseHandler
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	authService *authapp.AuthApplicationService,
	walletService *walletapp.WalletApplicationService,
	assistantService *assistantapp.AssistantApplicationService,
	purchaseService *purchaseapp.PurchaseApplicationService,
) (*Router, error) {
	e := echo.New()

	// Echoのデフォルトエラーハンドラーを無効化（カスタムエラーハンドラーを使用）
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		// エラーハンドリングミドルウェアで処理される
	}

	// ミドルウェアの設定
	setupMiddleware(e, cfg, logger, metrics)

	// ハンドラーの作成
	authHandler := handler.NewAuthHandler(authService)
	walletHandler := handler.NewWalletHandler(walletService)
	assistantHandler := handler.NewAssistantHandler(assistantService)
	purchaseHandler := handler.NewPurchaseHandler(purchaseService, cfg.Catalog)

	// ルーティングの設定
	setupRoutes(e, cfg, logger, authHandler, walletHandler, assistantHandler, purchaseHandler)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{
		echo:             e,
		authHandler:      authHandler,
		walletHandler:    walletHandler,
		assistantHandler: assistantHandler,
		purchaseHandler:  purchaseHandler,
	}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	// リカバリーミドルウェア
	e.Use(middleware.Recover())

	// CORS設定
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // 本番環境では適切に設定
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// リクエストIDの設定
	e.Use(middleware.RequestID())

	// セキュリティヘッダー
	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// トレーシングミドルウェア
	e.Use(restmiddleware.TracingMiddleware())

	// ログミドルウェア
	e.Use(restmiddleware.LoggingMiddleware(logger))

	// メトリクスミドルウェア
	e.Use(restmiddleware.MetricsMiddleware(metrics))

	// エラーハンドリングミドルウェア
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *otelinfra.Logger,
	authHandler *handler.AuthHandler,
	walletHandler *handler.WalletHandler,
	assistantHandler *handler.AssistantHandler,
	purchaseHandler *handler.PurchaseHandler,
) {
	// API v1グループ
	api := e.Group("/api/v1")

	// 認証エンドポイント（認証不要）
	api.POST("/auth/token", authHandler.GenerateToken)

	// 決済プロセッサーWebhook（APIキー認証）
	webhookGroup := api.Group("/webhooks", restmiddleware.WebhookKeyMiddleware(cfg.Upstream.WebhookAPIKey, logger))
	webhookGroup.POST("/payments", purchaseHandler.CompleteWebhook)

	// 認証が必要なエンドポイント
	authGroup := api.Group("", restmiddleware.AuthMiddleware(&cfg.JWT, logger))

	// 残高関連エンドポイント
	authGroup.GET("/wallet/balance", walletHandler.GetBalance)
	authGroup.POST("/wallet/refresh", walletHandler.Refresh)

	// AIクエリエンドポイント
	authGroup.POST("/assistant/query", assistantHandler.Query)

	// 購入関連エンドポイント
	authGroup.GET("/catalog", purchaseHandler.GetCatalog)
	authGroup.POST("/purchases/token-packs", purchaseHandler.BeginTokenPack)
	authGroup.POST("/purchases/subscriptions", purchaseHandler.BeginSubscription)
	authGroup.POST("/purchases/:correlation_id/complete", purchaseHandler.Complete)
	authGroup.POST("/purchases/:correlation_id/cancel", purchaseHandler.Cancel)
	authGroup.DELETE("/subscriptions", purchaseHandler.CancelSubscription)

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown サーバーをシャットダウン
func (r *Router) Shutdown() error {
	return r.echo.Close()
}
