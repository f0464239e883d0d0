package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// トークン残高の分布
	TokenBalance metric.Int64Gauge

	// 照合ループの試行回数
	ReconcileAttemptCount metric.Int64Counter

	// 照合ループのタイムアウト件数
	// ユーザーには表示されないため、運用側はこのカウンターでのみ観測できる
	ReconcileTimeoutCount metric.Int64Counter

	// アップセル表示件数
	UpsellCount metric.Int64Counter

	// クエリごとの消費トークン数
	TokensUsed metric.Int64Histogram

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	tokenBalance, err := meter.Int64Gauge(
		"token_balance",
		metric.WithDescription("Believed token balance"),
	)
	if err != nil {
		return nil, err
	}

	reconcileAttemptCount, err := meter.Int64Counter(
		"reconcile_attempts_total",
		metric.WithDescription("Total number of balance reconciliation attempts"),
	)
	if err != nil {
		return nil, err
	}

	reconcileTimeoutCount, err := meter.Int64Counter(
		"reconcile_timeouts_total",
		metric.WithDescription("Total number of reconciliation loops exhausted without success"),
	)
	if err != nil {
		return nil, err
	}

	upsellCount, err := meter.Int64Counter(
		"upsells_total",
		metric.WithDescription("Total number of upsell contexts produced"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Histogram(
		"query_tokens_used",
		metric.WithDescription("Tokens consumed per priced query"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TokenBalance:          tokenBalance,
		ReconcileAttemptCount: reconcileAttemptCount,
		ReconcileTimeoutCount: reconcileTimeoutCount,
		UpsellCount:           upsellCount,
		TokensUsed:            tokensUsed,
		RequestCount:          requestCount,
		ResponseTime:          responseTime,
		ErrorCount:            errorCount,
	}, nil
}

// RecordTokenBalance トークン残高を記録
func (m *Metrics) RecordTokenBalance(ctx context.Context, userID string, balance int64) {
	m.TokenBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("user_id", userID),
		),
	)
}

// RecordReconcileAttempt 照合試行を記録
func (m *Metrics) RecordReconcileAttempt(ctx context.Context, kind string) {
	m.ReconcileAttemptCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("purchase_kind", kind),
		),
	)
}

// RecordReconcileTimeout 照合タイムアウトを記録
func (m *Metrics) RecordReconcileTimeout(ctx context.Context, kind string, attempts int) {
	m.ReconcileTimeoutCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("purchase_kind", kind),
			attribute.Int("attempts", attempts),
		),
	)
}

// RecordUpsell アップセル表示を記録
func (m *Metrics) RecordUpsell(ctx context.Context, recommendedAction string) {
	m.UpsellCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("recommended_action", recommendedAction),
		),
	)
}

// RecordTokensUsed クエリの消費トークン数を記録
func (m *Metrics) RecordTokensUsed(ctx context.Context, tokens int64) {
	m.TokensUsed.Record(ctx, tokens)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
