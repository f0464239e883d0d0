package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	assistantapp "genie-wallet/internal/application/assistant"
	purchaseapp "genie-wallet/internal/application/purchase"
	walletapp "genie-wallet/internal/application/wallet"
	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/domain/purchase"
	"genie-wallet/internal/domain/upsell"
	"genie-wallet/internal/infrastructure/bus"
	"genie-wallet/internal/infrastructure/config"
	"genie-wallet/internal/infrastructure/genieapi"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// MockGenieClient 上流クライアントのモック（残高・クエリ・購入の全インターフェースを実装）
type MockGenieClient struct {
	mock.Mock
}

func (m *MockGenieClient) GetBalance(ctx context.Context, token string, useCache bool) (balance.Snapshot, error) {
	args := m.Called(ctx, token, useCache)
	return args.Get(0).(balance.Snapshot), args.Error(1)
}

func (m *MockGenieClient) Query(ctx context.Context, token string, req *genieapi.QueryRequest) (*genieapi.QueryResponse, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genieapi.QueryResponse), args.Error(1)
}

func (m *MockGenieClient) CreatePaymentIntent(ctx context.Context, token, packageID string) (*genieapi.PaymentIntentResponse, error) {
	args := m.Called(ctx, token, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genieapi.PaymentIntentResponse), args.Error(1)
}

func (m *MockGenieClient) CreateSetupIntent(ctx context.Context, token string) (*genieapi.SetupIntentResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genieapi.SetupIntentResponse), args.Error(1)
}

func (m *MockGenieClient) CreateSubscription(ctx context.Context, token, tier, priceID, paymentMethodID string) (*genieapi.SubscriptionCreateResponse, error) {
	args := m.Called(ctx, token, tier, priceID, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genieapi.SubscriptionCreateResponse), args.Error(1)
}

func (m *MockGenieClient) CancelSubscription(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockIntentRepository 購入意図リポジトリのモック
type MockIntentRepository struct {
	mock.Mock
}

func (m *MockIntentRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*purchase.PurchaseIntent, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.PurchaseIntent), args.Error(1)
}

func (m *MockIntentRepository) Save(ctx context.Context, intent *purchase.PurchaseIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

// MockReconcileStarter 照合スターターのモック
type MockReconcileStarter struct {
	mock.Mock
}

func (m *MockReconcileStarter) Start(intent *purchase.PurchaseIntent) {
	m.Called(intent)
}

// MockTokenSource トークンソースのモック
type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) ServiceToken(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func handlerTestCatalog() upsell.Catalog {
	return upsell.Catalog{
		Plans: []upsell.Plan{
			{Tier: "premium", Period: "monthly", PriceID: "price_premium_m", MonthlyAllowance: 1000},
		},
		Packs: []upsell.Pack{
			{PackageID: "pack_500", Tokens: 500},
		},
	}
}

// testServices ハンドラーテスト用に組み立てたアプリケーションサービス一式
type testServices struct {
	client     *MockGenieClient
	tokens     *MockTokenSource
	intentRepo *MockIntentRepository
	starter    *MockReconcileStarter
	walletSvc  *walletapp.WalletApplicationService
	assistant  *assistantapp.AssistantApplicationService
	purchase   *purchaseapp.PurchaseApplicationService
	bus        *bus.Bus
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)
	notifyBus := bus.New()

	client := new(MockGenieClient)
	tokens := new(MockTokenSource)
	intentRepo := new(MockIntentRepository)
	starter := new(MockReconcileStarter)

	walletSvc := walletapp.NewWalletApplicationService(client, tokens, notifyBus, logger, metrics)
	reconcileCfg := &config.ReconcileConfig{
		TopUpMaxAttempts:        5,
		TopUpDelay:              time.Millisecond,
		SubscriptionMaxAttempts: 8,
		SelfHealDelay:           time.Millisecond,
	}
	assistantSvc := assistantapp.NewAssistantApplicationService(client, tokens, walletSvc, handlerTestCatalog(), logger, metrics, reconcileCfg)
	purchaseSvc := purchaseapp.NewPurchaseApplicationService(client, tokens, walletSvc, intentRepo, starter, handlerTestCatalog(), notifyBus, logger, metrics)

	return &testServices{
		client:     client,
		tokens:     tokens,
		intentRepo: intentRepo,
		starter:    starter,
		walletSvc:  walletSvc,
		assistant:  assistantSvc,
		purchase:   purchaseSvc,
		bus:        notifyBus,
	}
}
