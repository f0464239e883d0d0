package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"genie-wallet/internal/domain/upsell"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Upstream      UpstreamConfig
	JWT           JWTConfig
	Reconcile     ReconcileConfig
	Catalog       upsell.Catalog
	OpenTelemetry OpenTelemetryConfig
	Environment   string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// UpstreamConfig Genieバックエンド（クエリ・残高・購入エンドポイント）への接続設定
type UpstreamConfig struct {
	BaseURL        string
	Timeout        time.Duration
	WebhookAPIKey  string // 決済プロセッサー完了通知エンドポイントの認証用
	ResyncSchedule string // 定期残高再同期のcron式（空の場合は無効）
}

// JWTConfig JWT設定
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// ReconcileConfig 購入後の残高照合設定
type ReconcileConfig struct {
	TopUpMaxAttempts        int
	TopUpDelay              time.Duration
	SubscriptionMaxAttempts int
	SelfHealDelay           time.Duration // 消費後残高の自己修復リフレッシュまでの遅延（1秒未満）
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "stdout"
	MetricsExporter string // "otlp", "stdout"
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "wallet_db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("GENIE_API_BASE_URL", "http://localhost:9000"),
			Timeout:        getEnvAsDuration("GENIE_API_TIMEOUT", 30*time.Second),
			WebhookAPIKey:  getEnv("WEBHOOK_API_KEY", ""),
			ResyncSchedule: getEnv("BALANCE_RESYNC_SCHEDULE", "@every 15m"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "genie-wallet"),
		},
		Reconcile: ReconcileConfig{
			TopUpMaxAttempts:        getEnvAsInt("RECONCILE_TOPUP_MAX_ATTEMPTS", 5),
			TopUpDelay:              getEnvAsDuration("RECONCILE_TOPUP_DELAY", 2*time.Second),
			SubscriptionMaxAttempts: getEnvAsInt("RECONCILE_SUB_MAX_ATTEMPTS", 8),
			SelfHealDelay:           getEnvAsDuration("SELF_HEAL_DELAY", 500*time.Millisecond),
		},
		Catalog: upsell.Catalog{
			Plans: getEnvAsPlans("CATALOG_PLANS"),
			Packs: getEnvAsPacks("CATALOG_PACKS"),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "genie-wallet"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
		},
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("GENIE_API_BASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Reconcile.TopUpMaxAttempts <= 0 || c.Reconcile.SubscriptionMaxAttempts <= 0 {
		return fmt.Errorf("reconcile max attempts must be positive")
	}
	return nil
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// defaultPlans カタログ未設定時のデフォルトプラン
var defaultPlans = []upsell.Plan{
	{Tier: "plus", Period: "monthly", PriceID: "price_plus_monthly", MonthlyAllowance: 500},
	{Tier: "pro", Period: "monthly", PriceID: "price_pro_monthly", MonthlyAllowance: 2000},
}

// defaultPacks カタログ未設定時のデフォルトトークンパック
var defaultPacks = []upsell.Pack{
	{PackageID: "pack_small", Tokens: 100},
	{PackageID: "pack_medium", Tokens: 500},
	{PackageID: "pack_large", Tokens: 2000},
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsPlans 環境変数をプラン一覧（JSON配列）として取得
func getEnvAsPlans(key string) []upsell.Plan {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultPlans
	}
	var plans []upsell.Plan
	if err := json.Unmarshal([]byte(valueStr), &plans); err != nil {
		return defaultPlans
	}
	return plans
}

// getEnvAsPacks 環境変数をトークンパック一覧（JSON配列）として取得
func getEnvAsPacks(key string) []upsell.Pack {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultPacks
	}
	var packs []upsell.Pack
	if err := json.Unmarshal([]byte(valueStr), &packs); err != nil {
		return defaultPacks
	}
	return packs
}
