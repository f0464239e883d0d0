package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	assistantapp "genie-wallet/internal/application/assistant"
	authapp "genie-wallet/internal/application/auth"
	purchaseapp "genie-wallet/internal/application/purchase"
	reconcileapp "genie-wallet/internal/application/reconcile"
	walletapp "genie-wallet/internal/application/wallet"
	"genie-wallet/internal/infrastructure/bus"
	"genie-wallet/internal/infrastructure/config"
	"genie-wallet/internal/infrastructure/genieapi"
	"genie-wallet/internal/infrastructure/jobs"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
	"genie-wallet/internal/infrastructure/persistence/mysql"
	"genie-wallet/internal/presentation/rest"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("genie-wallet")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("genie-wallet")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// リポジトリの初期化
	intentRepo := mysql.NewIntentRepository(db)

	// 上流クライアントと通知バスの初期化
	genieClient := genieapi.NewClient(&cfg.Upstream)
	notifyBus := bus.New()

	// アプリケーションサービスの初期化
	authAppService := authapp.NewAuthApplicationService(&cfg.JWT, logger)

	walletAppService := walletapp.NewWalletApplicationService(
		genieClient,
		authAppService,
		notifyBus,
		logger,
		metrics,
	)

	reconcileAppService := reconcileapp.NewReconcileApplicationService(
		genieClient,
		authAppService,
		walletAppService,
		intentRepo,
		notifyBus,
		logger,
		metrics,
		&cfg.Reconcile,
	)

	assistantAppService := assistantapp.NewAssistantApplicationService(
		genieClient,
		authAppService,
		walletAppService,
		cfg.Catalog,
		logger,
		metrics,
		&cfg.Reconcile,
	)

	purchaseAppService := purchaseapp.NewPurchaseApplicationService(
		genieClient,
		authAppService,
		walletAppService,
		intentRepo,
		reconcileAppService,
		cfg.Catalog,
		notifyBus,
		logger,
		metrics,
	)

	// REST APIルーターの初期化
	router, err := rest.NewRouter(
		cfg,
		logger,
		metrics,
		authAppService,
		walletAppService,
		assistantAppService,
		purchaseAppService,
	)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// 定期残高再同期スケジューラーの起動
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()

	scheduler := jobs.NewScheduler(walletAppService, logger, cfg.Upstream.ResyncSchedule)
	if err := scheduler.Start(schedulerCtx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		log.Printf("REST API server starting on %s", address)
		if err := router.Start(address); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// シグナルを待機
	<-quit
	log.Println("Shutting down server...")

	// グレースフルシャットダウン
	scheduler.Stop()
	schedulerCancel()

	if err := router.Shutdown(); err != nil {
		log.Printf("Error shutting down REST API server: %v", err)
	}

	log.Println("Server stopped")
}
