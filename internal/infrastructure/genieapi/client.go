package genieapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/infrastructure/config"
)

// Client Genieバックエンドへの HTTPクライアント
// クエリ・残高・購入エンドポイントを提供する台帳サーバーが真のシステム・オブ・レコードであり、
// walletdはその観測値をキャッシュするだけである
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient 新しいClientを作成
func NewClient(cfg *config.UpstreamConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracer: otel.Tracer("genie-api-client"),
	}
}

// Query 課金対象のAIクエリを実行
// 残高不足はInsufficientTokensErrorとして返る（サーバーが裁定する）
func (c *Client) Query(ctx context.Context, token string, req *QueryRequest) (*QueryResponse, error) {
	ctx, span := c.tracer.Start(ctx, "GenieClient.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
	)

	var resp QueryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/assistant/query", token, req, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

// GetBalance 権威ある残高を取得
// useCache=falseの場合、上流のキャッシュを明示的にバイパスする
func (c *Client) GetBalance(ctx context.Context, token string, useCache bool) (balance.Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "GenieClient.GetBalance")
	defer span.End()

	span.SetAttributes(
		attribute.Bool("use_cache", useCache),
	)

	path := "/api/v1/balance"
	if !useCache {
		path += "?" + url.Values{"use_cache": {"false"}}.Encode()
	}

	var resp balanceResponse
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		span.RecordError(err)
		return balance.Snapshot{}, err
	}

	var sub *balance.SubscriptionDetail
	if resp.Subscription != nil {
		sub = &balance.SubscriptionDetail{
			Tier:                     resp.Subscription.Tier,
			MonthlyAllowance:         resp.Subscription.MonthlyAllowance,
			TokensUsedThisMonth:      resp.Subscription.TokensUsedThisMonth,
			TokensRemainingThisMonth: resp.Subscription.TokensRemainingThisMonth,
			TopUpBalance:             resp.Subscription.TopUpBalance,
		}
	}
	return balance.NewSnapshot(resp.Balance, sub), nil
}

// CreatePaymentIntent トークンパック購入用の支払いインテントを作成
func (c *Client) CreatePaymentIntent(ctx context.Context, token, packageID string) (*PaymentIntentResponse, error) {
	ctx, span := c.tracer.Start(ctx, "GenieClient.CreatePaymentIntent")
	defer span.End()

	body := map[string]string{"package_id": packageID}
	var resp PaymentIntentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/purchases/payment-intents", token, body, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

// CreateSetupIntent サブスクリプション決済手段登録用のセットアップインテントを作成
func (c *Client) CreateSetupIntent(ctx context.Context, token string) (*SetupIntentResponse, error) {
	ctx, span := c.tracer.Start(ctx, "GenieClient.CreateSetupIntent")
	defer span.End()

	var resp SetupIntentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/purchases/setup-intents", token, struct{}{}, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

// CreateSubscription サブスクリプションを作成
func (c *Client) CreateSubscription(ctx context.Context, token, tier, priceID, paymentMethodID string) (*SubscriptionCreateResponse, error) {
	ctx, span := c.tracer.Start(ctx, "GenieClient.CreateSubscription")
	defer span.End()

	body := map[string]string{
		"tier":              tier,
		"price_id":          priceID,
		"payment_method_id": paymentMethodID,
	}
	var resp SubscriptionCreateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/subscriptions", token, body, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &resp, nil
}

// CancelSubscription サブスクリプションを解約
func (c *Client) CancelSubscription(ctx context.Context, token string) error {
	ctx, span := c.tracer.Start(ctx, "GenieClient.CancelSubscription")
	defer span.End()

	if err := c.doJSON(ctx, http.MethodDelete, "/api/v1/subscriptions", token, nil, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// doJSON JSONリクエストを実行し、エラー分類を適用する
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	return c.classifyError(resp)
}

// classifyError 上流のエラーレスポンスをエラー分類に変換
func (c *Client) classifyError(resp *http.Response) error {
	var body errorResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrNotAuthenticated
	case resp.StatusCode == http.StatusPaymentRequired,
		body.Error == "insufficient_tokens":
		if decodeErr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, decodeErr)
		}
		return &InsufficientTokensError{
			Required: body.Required,
			Balance:  body.Balance,
		}
	case resp.StatusCode == http.StatusBadRequest:
		return &InvalidRequestError{Message: body.Message}
	case resp.StatusCode >= 500:
		return &ServerError{Code: resp.StatusCode}
	default:
		return &ServerError{Code: resp.StatusCode}
	}
}
