package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/domain/purchase"
)

// IntentRepository MySQL実装のIntentRepository
// 購入意図を相関IDで永続化し、完了報告の再送を冪等に処理できるようにする
type IntentRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewIntentRepository 新しいIntentRepositoryを作成
func NewIntentRepository(db *DB) *IntentRepository {
	return &IntentRepository{
		db:     db,
		tracer: otel.Tracer("intent-repository"),
	}
}

// FindByCorrelationID 相関IDで購入意図を取得
func (r *IntentRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*purchase.PurchaseIntent, error) {
	ctx, span := r.tracer.Start(ctx, "IntentRepository.FindByCorrelationID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.correlation_id", correlationID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "purchase_intents"),
	)

	query := `
		SELECT correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at
		FROM purchase_intents
		WHERE correlation_id = ?
	`

	var (
		dbCorrelationID string
		dbUserID        string
		dbKind          string
		dbTargetID      string
		dbPeriod        string
		dbState         string
		dbFailureReason string
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := r.db.QueryRowContext(ctx, query, correlationID).Scan(
		&dbCorrelationID,
		&dbUserID,
		&dbKind,
		&dbTargetID,
		&dbPeriod,
		&dbState,
		&dbFailureReason,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "intent not found")
		return nil, purchase.ErrIntentNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find purchase intent: %w", err)
	}

	kind, err := purchase.NewIntentKind(dbKind)
	if err != nil {
		return nil, fmt.Errorf("invalid intent kind: %w", err)
	}

	state, err := purchase.NewFlowState(dbState)
	if err != nil {
		return nil, fmt.Errorf("invalid flow state: %w", err)
	}

	span.SetAttributes(
		attribute.String("db.state", dbState),
	)
	span.SetStatus(otelcodes.Ok, "intent found")

	return purchase.Restore(
		dbCorrelationID,
		dbUserID,
		kind,
		dbTargetID,
		dbPeriod,
		state,
		dbFailureReason,
		createdAt,
		updatedAt,
	), nil
}

// Save 購入意図を保存（相関IDをキーとした冪等なupsert）
func (r *IntentRepository) Save(ctx context.Context, intent *purchase.PurchaseIntent) error {
	ctx, span := r.tracer.Start(ctx, "IntentRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.correlation_id", intent.CorrelationID()),
		attribute.String("db.user_id", intent.UserID()),
		attribute.String("db.state", intent.State().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "purchase_intents"),
	)

	query := `
		INSERT INTO purchase_intents (correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			failure_reason = VALUES(failure_reason),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		intent.CorrelationID(),
		intent.UserID(),
		intent.Kind().String(),
		intent.TargetID(),
		intent.Period(),
		intent.State().String(),
		intent.FailureReason(),
		intent.CreatedAt(),
		intent.UpdatedAt(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save purchase intent: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "intent saved")
	return nil
}
