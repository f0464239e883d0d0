package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"genie-wallet/internal/domain/purchase"
)

func TestIntentRepository_FindByCorrelationID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &IntentRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	now := time.Now()

	tests := []struct {
		name          string
		correlationID string
		setupMock     func()
		wantError     bool
		errorType     error
		checkFunc     func(*testing.T, *purchase.PurchaseIntent)
	}{
		{
			name:          "正常系: 購入意図が見つかる",
			correlationID: "pi_abc123",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"correlation_id", "user_id", "kind", "target_id", "period", "state", "failure_reason", "created_at", "updated_at"}).
					AddRow("pi_abc123", "user123", "token_pack", "pack_500", "", "awaiting_payment_ui", "", now, now)
				mock.ExpectQuery(`SELECT correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at`).
					WithArgs("pi_abc123").
					WillReturnRows(rows)
			},
			wantError: false,
			checkFunc: func(t *testing.T, got *purchase.PurchaseIntent) {
				assert.Equal(t, "pi_abc123", got.CorrelationID())
				assert.Equal(t, "user123", got.UserID())
				assert.Equal(t, purchase.IntentKindTokenPack, got.Kind())
				assert.Equal(t, "pack_500", got.TargetID())
				assert.Equal(t, purchase.StateAwaitingPaymentUI, got.State())
			},
		},
		{
			name:          "正常系: 照合済みのサブスクリプション意図",
			correlationID: "pi_sub456",
			setupMock: func() {
				rows := sqlmock.NewRows([]string{"correlation_id", "user_id", "kind", "target_id", "period", "state", "failure_reason", "created_at", "updated_at"}).
					AddRow("pi_sub456", "user123", "subscription", "premium", "monthly", "reconciled", "", now, now)
				mock.ExpectQuery(`SELECT correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at`).
					WithArgs("pi_sub456").
					WillReturnRows(rows)
			},
			wantError: false,
			checkFunc: func(t *testing.T, got *purchase.PurchaseIntent) {
				assert.Equal(t, purchase.IntentKindSubscription, got.Kind())
				assert.Equal(t, "premium", got.TargetID())
				assert.Equal(t, "monthly", got.Period())
				assert.Equal(t, purchase.StateReconciled, got.State())
				assert.True(t, got.State().IsTerminal())
			},
		},
		{
			name:          "異常系: 購入意図が見つからない",
			correlationID: "pi_missing",
			setupMock: func() {
				mock.ExpectQuery(`SELECT correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at`).
					WithArgs("pi_missing").
					WillReturnError(sql.ErrNoRows)
			},
			wantError: true,
			errorType: purchase.ErrIntentNotFound,
		},
		{
			name:          "異常系: DBエラー",
			correlationID: "pi_abc123",
			setupMock: func() {
				mock.ExpectQuery(`SELECT correlation_id, user_id, kind, target_id, period, state, failure_reason, created_at, updated_at`).
					WithArgs("pi_abc123").
					WillReturnError(sql.ErrConnDone)
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			ctx := context.Background()
			got, err := repo.FindByCorrelationID(ctx, tt.correlationID)

			if tt.wantError {
				assert.Error(t, err)
				if tt.errorType != nil {
					assert.Equal(t, tt.errorType, err)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				require.NotNil(t, got)
				if tt.checkFunc != nil {
					tt.checkFunc(t, got)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIntentRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &IntentRepository{
		db:     &DB{DB: db},
		tracer: otel.Tracer("test"),
	}

	newIntent := func() *purchase.PurchaseIntent {
		intent, err := purchase.NewPurchaseIntent("pi_abc123", "user123", purchase.IntentKindTokenPack, "pack_500", "")
		require.NoError(t, err)
		return intent
	}

	tests := []struct {
		name      string
		intent    *purchase.PurchaseIntent
		setupMock func()
		wantError bool
	}{
		{
			name:   "正常系: 購入意図を保存",
			intent: newIntent(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO purchase_intents`).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			wantError: false,
		},
		{
			name: "正常系: 状態遷移後の再保存は同じ相関IDを更新",
			intent: func() *purchase.PurchaseIntent {
				intent := newIntent()
				require.NoError(t, intent.Complete())
				return intent
			}(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO purchase_intents`).
					WillReturnResult(sqlmock.NewResult(1, 2)) // ON DUPLICATE KEY UPDATE
			},
			wantError: false,
		},
		{
			name:   "異常系: DBエラー",
			intent: newIntent(),
			setupMock: func() {
				mock.ExpectExec(`INSERT INTO purchase_intents`).
					WillReturnError(sql.ErrConnDone)
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()
			ctx := context.Background()
			err := repo.Save(ctx, tt.intent)

			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
