package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"genie-wallet/internal/domain/purchase"
	"genie-wallet/internal/infrastructure/bus"
	"genie-wallet/internal/infrastructure/genieapi"
)

func purchaseContext(t *testing.T, method, path, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	return c, rec
}

func TestPurchaseHandler_GetCatalog(t *testing.T) {
	t.Run("正常系: プランとパックの一覧を返す", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		c, rec := purchaseContext(t, http.MethodGet, "/catalog", "{}", "user123")
		require.NoError(t, handler.GetCatalog(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body CatalogResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Plans, 1)
		assert.Equal(t, "premium", body.Plans[0].Tier)
		assert.Equal(t, int64(1000), body.Plans[0].MonthlyAllowance)
		require.Len(t, body.Packs, 1)
		assert.Equal(t, int64(500), body.Packs[0].Tokens)
	})
}

func TestPurchaseHandler_BeginTokenPack(t *testing.T) {
	t.Run("正常系: 購入開始で相関IDとクライアントシークレットを返す", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		services.tokens.On("ServiceToken", "user123").Return("token", nil)
		services.client.On("CreatePaymentIntent", mock.Anything, "token", "pack_500").
			Return(&genieapi.PaymentIntentResponse{PaymentIntentID: "pi_stripe_1", ClientSecret: "secret_1"}, nil)
		services.intentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		c, rec := purchaseContext(t, http.MethodPost, "/purchases/token-packs", `{"package_id":"pack_500"}`, "user123")
		require.NoError(t, handler.BeginTokenPack(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body BeginPurchaseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.CorrelationID)
		assert.Equal(t, "pi_stripe_1", body.IntentID)
		assert.Equal(t, "secret_1", body.ClientSecret)
	})

	t.Run("異常系: package_idが空の場合は400", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		c, _ := purchaseContext(t, http.MethodPost, "/purchases/token-packs", `{}`, "user123")
		err := handler.BeginTokenPack(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("異常系: カタログにないパッケージはドメインエラー", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		c, _ := purchaseContext(t, http.MethodPost, "/purchases/token-packs", `{"package_id":"pack_unknown"}`, "user123")
		err := handler.BeginTokenPack(c)

		assert.ErrorIs(t, err, purchase.ErrInvalidTarget)
	})
}

func TestPurchaseHandler_BeginSubscription(t *testing.T) {
	t.Run("正常系: 期間未指定はmonthlyとして扱う", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		services.tokens.On("ServiceToken", "user123").Return("token", nil)
		services.client.On("CreateSetupIntent", mock.Anything, "token").
			Return(&genieapi.SetupIntentResponse{SetupIntentID: "seti_1", ClientSecret: "secret_2"}, nil)
		services.intentRepo.On("Save", mock.Anything, mock.MatchedBy(func(i *purchase.PurchaseIntent) bool {
			return i.Period() == "monthly"
		})).Return(nil)

		c, rec := purchaseContext(t, http.MethodPost, "/purchases/subscriptions", `{"tier":"premium"}`, "user123")
		require.NoError(t, handler.BeginSubscription(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body BeginPurchaseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "seti_1", body.IntentID)
		services.intentRepo.AssertExpectations(t)
	})
}

func TestPurchaseHandler_Complete(t *testing.T) {
	t.Run("正常系: 完了報告で照合が開始される", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		intent, err := purchase.NewPurchaseIntent("pi_abc", "user123", purchase.IntentKindTokenPack, "pack_500", "")
		require.NoError(t, err)

		services.intentRepo.On("FindByCorrelationID", mock.Anything, "pi_abc").Return(intent, nil)
		services.intentRepo.On("Save", mock.Anything, intent).Return(nil)
		services.starter.On("Start", intent).Return()

		c, rec := purchaseContext(t, http.MethodPost, "/purchases/pi_abc/complete", "{}", "user123")
		c.SetParamNames("correlation_id")
		c.SetParamValues("pi_abc")
		require.NoError(t, handler.Complete(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body PurchaseStateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "pi_abc", body.CorrelationID)
		assert.Equal(t, purchase.StatePaymentCompleted.String(), body.State)
		assert.False(t, body.AlreadyDone)
	})

	t.Run("異常系: 他人の相関IDへの完了報告は存在しない扱い", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		intent, err := purchase.NewPurchaseIntent("pi_abc", "user999", purchase.IntentKindTokenPack, "pack_500", "")
		require.NoError(t, err)

		services.intentRepo.On("FindByCorrelationID", mock.Anything, "pi_abc").Return(intent, nil)

		c, _ := purchaseContext(t, http.MethodPost, "/purchases/pi_abc/complete", "{}", "user123")
		c.SetParamNames("correlation_id")
		c.SetParamValues("pi_abc")
		err = handler.Complete(c)

		assert.ErrorIs(t, err, purchase.ErrIntentNotFound)
		services.starter.AssertNotCalled(t, "Start", mock.Anything)
	})

	t.Run("異常系: 未知の相関IDはドメインエラー", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		services.intentRepo.On("FindByCorrelationID", mock.Anything, "pi_missing").
			Return(nil, purchase.ErrIntentNotFound)

		c, _ := purchaseContext(t, http.MethodPost, "/purchases/pi_missing/complete", "{}", "user123")
		c.SetParamNames("correlation_id")
		c.SetParamValues("pi_missing")
		err := handler.Complete(c)

		assert.ErrorIs(t, err, purchase.ErrIntentNotFound)
	})
}

func TestPurchaseHandler_CompleteWebhook(t *testing.T) {
	t.Run("正常系: succeededイベントは完了報告として処理", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		intent, err := purchase.NewPurchaseIntent("pi_abc", "user123", purchase.IntentKindTokenPack, "pack_500", "")
		require.NoError(t, err)

		services.intentRepo.On("FindByCorrelationID", mock.Anything, "pi_abc").Return(intent, nil)
		services.intentRepo.On("Save", mock.Anything, intent).Return(nil)
		services.starter.On("Start", intent).Return()

		c, rec := purchaseContext(t, http.MethodPost, "/webhooks/payments",
			`{"correlation_id":"pi_abc","status":"succeeded"}`, "")
		require.NoError(t, handler.CompleteWebhook(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body PurchaseStateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, purchase.StatePaymentCompleted.String(), body.State)
	})

	t.Run("正常系: failedイベントは失敗報告として処理", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		intent, err := purchase.NewPurchaseIntent("pi_abc", "user123", purchase.IntentKindTokenPack, "pack_500", "")
		require.NoError(t, err)

		services.intentRepo.On("FindByCorrelationID", mock.Anything, "pi_abc").Return(intent, nil)
		services.intentRepo.On("Save", mock.Anything, intent).Return(nil)

		c, rec := purchaseContext(t, http.MethodPost, "/webhooks/payments",
			`{"correlation_id":"pi_abc","status":"failed","failure_reason":"card_declined"}`, "")
		require.NoError(t, handler.CompleteWebhook(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body PurchaseStateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, purchase.StateIdle.String(), body.State)
		assert.Equal(t, "card_declined", intent.FailureReason())
		services.starter.AssertNotCalled(t, "Start", mock.Anything)
	})

	t.Run("異常系: correlation_idがない場合は400", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		c, _ := purchaseContext(t, http.MethodPost, "/webhooks/payments", `{"status":"succeeded"}`, "")
		err := handler.CompleteWebhook(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestPurchaseHandler_CancelSubscription(t *testing.T) {
	t.Run("正常系: 解約成功で204と通知配信", func(t *testing.T) {
		services := newTestServices(t)
		handler := NewPurchaseHandler(services.purchase, handlerTestCatalog())

		events, unsubscribe := services.bus.Subscribe(bus.TopicSubscriptionUpdated)
		defer unsubscribe()

		services.tokens.On("ServiceToken", "user123").Return("token", nil)
		services.client.On("CancelSubscription", mock.Anything, "token").Return(nil)

		c, rec := purchaseContext(t, http.MethodDelete, "/subscriptions", "{}", "user123")
		require.NoError(t, handler.CancelSubscription(c))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		select {
		case ev := <-events:
			assert.Equal(t, "user123", ev.UserID)
		default:
			t.Fatal("サブスクリプション更新通知が配信されていない")
		}
	})
}
