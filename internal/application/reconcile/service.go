package reconcile

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/application/wallet"
	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/domain/purchase"
	"genie-wallet/internal/infrastructure/bus"
	"genie-wallet/internal/infrastructure/config"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// ReconcileApplicationService 購入後の残高照合アプリケーションサービス
//
// 決済プロセッサーがクライアント側で成功を報告した後、サーバー側の
// Webhookによる台帳反映が見えるようになるまで残高エンドポイントを
// ポーリングする。クライアントにはWebhook完了の直接のシグナルがないため、
// これが唯一の確認手段である
type ReconcileApplicationService struct {
	querier    wallet.BalanceQuerier
	tokens     wallet.TokenSource
	walletSvc  *wallet.WalletApplicationService
	intentRepo purchase.IntentRepository
	bus        *bus.Bus
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer

	topUpSchedule Schedule
	subSchedule   Schedule

	// ユーザーごとに照合ループは高々1つ
	// 新しい購入完了は進行中のループをキャンセルして置き換える
	mu       sync.Mutex
	nextID   uint64
	inflight map[string]inflightLoop
}

// inflightLoop 進行中の照合ループの登録情報
type inflightLoop struct {
	id     uint64
	cancel context.CancelFunc
}

// NewReconcileApplicationService 新しいReconcileApplicationServiceを作成
func NewReconcileApplicationService(
	querier wallet.BalanceQuerier,
	tokens wallet.TokenSource,
	walletSvc *wallet.WalletApplicationService,
	intentRepo purchase.IntentRepository,
	notifyBus *bus.Bus,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	cfg *config.ReconcileConfig,
) *ReconcileApplicationService {
	return &ReconcileApplicationService{
		querier:       querier,
		tokens:        tokens,
		walletSvc:     walletSvc,
		intentRepo:    intentRepo,
		bus:           notifyBus,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("reconcile-service"),
		topUpSchedule: FixedSchedule(cfg.TopUpMaxAttempts, cfg.TopUpDelay),
		subSchedule:   RampSchedule(cfg.SubscriptionMaxAttempts),
		inflight:      make(map[string]inflightLoop),
	}
}

// Start 購入意図に対する照合ループをバックグラウンドで開始する
// 同一ユーザーの進行中のループは新しいループに置き換えられる
func (s *ReconcileApplicationService) Start(intent *purchase.PurchaseIntent) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if prev, ok := s.inflight[intent.UserID()]; ok {
		prev.cancel()
	}
	s.inflight[intent.UserID()] = inflightLoop{id: id, cancel: cancel}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			if current, ok := s.inflight[intent.UserID()]; ok && current.id == id {
				delete(s.inflight, intent.UserID())
			}
			s.mu.Unlock()
			cancel()
		}()
		s.Reconcile(ctx, intent)
	}()
}

// Reconcile 購入意図に対する照合ループを同期的に実行する
// 成功条件を満たすかスケジュールが尽きるまでポーリングし、
// 終了後（成否を問わず）に「残高が変わったかもしれない」通知を配信する
func (s *ReconcileApplicationService) Reconcile(ctx context.Context, intent *purchase.PurchaseIntent) Result {
	ctx, span := s.tracer.Start(ctx, "ReconcileApplicationService.Reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", intent.UserID()),
		attribute.String("correlation_id", intent.CorrelationID()),
		attribute.String("kind", intent.Kind().String()),
	)

	s.logger.Info(ctx, "Starting balance reconciliation", map[string]interface{}{
		"user_id":        intent.UserID(),
		"correlation_id": intent.CorrelationID(),
		"kind":           intent.Kind().String(),
	})

	if err := intent.StartReconciling(); err != nil {
		s.logger.Error(ctx, "Failed to enter reconciling state", err, map[string]interface{}{
			"correlation_id": intent.CorrelationID(),
			"state":          intent.State().String(),
		})
		return Result{}
	}
	s.saveIntent(ctx, intent)

	var result Result
	if intent.Kind().IsTokenPack() {
		result = s.reconcileTopUp(ctx, intent)
	} else {
		result = s.reconcileSubscription(ctx, intent)
	}

	if result.Succeeded {
		if err := intent.MarkReconciled(); err == nil {
			s.saveIntent(ctx, intent)
		}
		s.logger.Info(ctx, "Balance reconciliation succeeded", map[string]interface{}{
			"user_id":        intent.UserID(),
			"correlation_id": intent.CorrelationID(),
			"attempts":       result.Attempts,
		})
	} else if ctx.Err() != nil {
		// 新しい購入完了に取って代わられたループ
		// タイムアウトではないので終端状態への遷移も枯渇の計上も行わない
		s.logger.Info(ctx, "Balance reconciliation superseded", map[string]interface{}{
			"user_id":        intent.UserID(),
			"correlation_id": intent.CorrelationID(),
			"attempts":       result.Attempts,
		})
	} else {
		if err := intent.MarkTimedOut(); err == nil {
			s.saveIntent(ctx, intent)
		}
		// ユーザーには見せない: 購入自体は上流で成功している可能性が高く、
		// 結果的整合性が次回の再同期で解決する
		// 運用側が観測できるよう、メトリクスと警告ログのみ残す
		s.metrics.RecordReconcileTimeout(ctx, intent.Kind().String(), result.Attempts)
		s.logger.Warn(ctx, "Balance reconciliation exhausted without confirmation", map[string]interface{}{
			"user_id":        intent.UserID(),
			"correlation_id": intent.CorrelationID(),
			"attempts":       result.Attempts,
		})
	}

	s.broadcast(intent)
	return result
}

// reconcileTopUp トップアップ購入の照合
// 成功条件: 取得したトップアップ残高が開始時のスナップショットを上回ること
func (s *ReconcileApplicationService) reconcileTopUp(ctx context.Context, intent *purchase.PurchaseIntent) Result {
	// 開始時点のトップアップ残高を記録（ベストエフォート:
	// 取得に失敗しても照合自体は中断せず、初期値0として続行する）
	initial := int64(0)
	if snap, err := s.fetch(ctx, intent.UserID()); err == nil {
		initial = snap.TopUpBalance()
	} else {
		s.logger.Warn(ctx, "Initial top-up snapshot fetch failed, assuming zero", map[string]interface{}{
			"user_id": intent.UserID(),
			"error":   err.Error(),
		})
	}

	return s.poll(ctx, intent, s.topUpSchedule, func(snap balance.Snapshot) bool {
		return snap.TopUpBalance() > initial
	})
}

// reconcileSubscription サブスクリプション購入の照合
// 成功条件: 報告されたティアが期待ティアと一致し、月間割当が正であること
func (s *ReconcileApplicationService) reconcileSubscription(ctx context.Context, intent *purchase.PurchaseIntent) Result {
	expectedTier := intent.TargetID()
	return s.poll(ctx, intent, s.subSchedule, func(snap balance.Snapshot) bool {
		return snap.Tier() == expectedTier &&
			snap.Subscription != nil &&
			snap.Subscription.MonthlyAllowance > 0
	})
}

// poll 照合ポーリングを実行する
// 各試行はキャッシュをバイパスして権威ある残高を取得し、
// 成否にかかわらずストアを取得値で更新する（クランプ済みの総残高）
// 個々のフェッチエラーは試行を1回消費するだけでループを中断しない
func (s *ReconcileApplicationService) poll(ctx context.Context, intent *purchase.PurchaseIntent, schedule Schedule, predicate func(balance.Snapshot) bool) Result {
	return Poll(ctx, schedule, func(ctx context.Context, attempt int) (bool, error) {
		s.metrics.RecordReconcileAttempt(ctx, intent.Kind().String())

		snap, err := s.fetch(ctx, intent.UserID())
		if err != nil {
			s.logger.Warn(ctx, "Reconciliation fetch failed", map[string]interface{}{
				"user_id":      intent.UserID(),
				"attempt":      attempt,
				"max_attempts": schedule.MaxAttempts,
				"error":        err.Error(),
			})
			return false, err
		}

		s.walletSvc.ApplySnapshot(ctx, intent.UserID(), snap)
		return predicate(snap), nil
	})
}

// fetch キャッシュをバイパスして権威ある残高を取得
func (s *ReconcileApplicationService) fetch(ctx context.Context, userID string) (balance.Snapshot, error) {
	token, err := s.tokens.ServiceToken(userID)
	if err != nil {
		return balance.Snapshot{}, err
	}
	return s.querier.GetBalance(ctx, token, false)
}

// saveIntent 購入意図の状態を永続化（ベストエフォート）
func (s *ReconcileApplicationService) saveIntent(ctx context.Context, intent *purchase.PurchaseIntent) {
	if err := s.intentRepo.Save(ctx, intent); err != nil {
		s.logger.Warn(ctx, "Failed to persist purchase intent state", map[string]interface{}{
			"correlation_id": intent.CorrelationID(),
			"state":          intent.State().String(),
			"error":          err.Error(),
		})
	}
}

// broadcast 照合終了通知を配信する
// タイムアウトでも成功と同じ通知を送る: 表示中の画面は自身の残高ビューを再取得する
func (s *ReconcileApplicationService) broadcast(intent *purchase.PurchaseIntent) {
	b := s.walletSvc.StoreFor(intent.UserID()).Get()
	s.bus.Publish(bus.Event{
		Topic:   bus.TopicTokensPurchased,
		UserID:  intent.UserID(),
		Balance: b.Int64(),
	})
	if intent.Kind().IsSubscription() {
		s.bus.Publish(bus.Event{
			Topic:   bus.TopicSubscriptionUpdated,
			UserID:  intent.UserID(),
			Balance: b.Int64(),
		})
	}
}
