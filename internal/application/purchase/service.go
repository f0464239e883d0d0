package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/application/wallet"
	"genie-wallet/internal/domain/purchase"
	"genie-wallet/internal/domain/upsell"
	"genie-wallet/internal/infrastructure/bus"
	"genie-wallet/internal/infrastructure/genieapi"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// PurchaseClient 上流の購入エンドポイントを呼び出すインターフェース
type PurchaseClient interface {
	CreatePaymentIntent(ctx context.Context, token, packageID string) (*genieapi.PaymentIntentResponse, error)
	CreateSetupIntent(ctx context.Context, token string) (*genieapi.SetupIntentResponse, error)
	CreateSubscription(ctx context.Context, token, tier, priceID, paymentMethodID string) (*genieapi.SubscriptionCreateResponse, error)
	CancelSubscription(ctx context.Context, token string) error
}

// ReconcileStarter 照合ループを開始するインターフェース
type ReconcileStarter interface {
	Start(intent *purchase.PurchaseIntent)
}

// PurchaseApplicationService 購入フローのアプリケーションサービス
// 決済プロセッサーUIの駆動自体はクライアント側のSDKが行い、
// このサービスは意図の作成・結果の記録・照合ループへの引き渡しを担う
type PurchaseApplicationService struct {
	client     PurchaseClient
	tokens     wallet.TokenSource
	walletSvc  *wallet.WalletApplicationService
	intentRepo purchase.IntentRepository
	reconciler ReconcileStarter
	catalog    upsell.Catalog
	bus        *bus.Bus
	logger     *otelinfra.Logger
	metrics    *otelinfra.Metrics
	tracer     trace.Tracer
}

// NewPurchaseApplicationService 新しいPurchaseApplicationServiceを作成
func NewPurchaseApplicationService(
	client PurchaseClient,
	tokens wallet.TokenSource,
	walletSvc *wallet.WalletApplicationService,
	intentRepo purchase.IntentRepository,
	reconciler ReconcileStarter,
	catalog upsell.Catalog,
	notifyBus *bus.Bus,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *PurchaseApplicationService {
	return &PurchaseApplicationService{
		client:     client,
		tokens:     tokens,
		walletSvc:  walletSvc,
		intentRepo: intentRepo,
		reconciler: reconciler,
		catalog:    catalog,
		bus:        notifyBus,
		logger:     logger,
		metrics:    metrics,
		tracer:     otel.Tracer("purchase-service"),
	}
}

// BeginTokenPack トークンパック購入を開始する
func (s *PurchaseApplicationService) BeginTokenPack(ctx context.Context, req *BeginTokenPackRequest) (*BeginTokenPackResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PurchaseApplicationService.BeginTokenPack")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("package_id", req.PackageID),
	)

	if !s.packExists(req.PackageID) {
		err := purchase.ErrInvalidTarget
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	intent, err := purchase.NewPurchaseIntent(
		s.generateCorrelationID(),
		req.UserID,
		purchase.IntentKindTokenPack,
		req.PackageID,
		"",
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	token, err := s.tokens.ServiceToken(req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	pi, err := s.client.CreatePaymentIntent(ctx, token, req.PackageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to create payment intent", err, map[string]interface{}{
			"user_id":    req.UserID,
			"package_id": req.PackageID,
		})
		s.metrics.RecordError(ctx, "payment_intent_failed")
		return nil, err
	}

	if err := s.intentRepo.Save(ctx, intent); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to save purchase intent: %w", err)
	}

	s.logger.Info(ctx, "Token pack purchase started", map[string]interface{}{
		"user_id":        req.UserID,
		"correlation_id": intent.CorrelationID(),
		"package_id":     req.PackageID,
	})

	return &BeginTokenPackResponse{
		CorrelationID:   intent.CorrelationID(),
		PaymentIntentID: pi.PaymentIntentID,
		ClientSecret:    pi.ClientSecret,
	}, nil
}

// BeginSubscription サブスクリプション購入を開始する
func (s *PurchaseApplicationService) BeginSubscription(ctx context.Context, req *BeginSubscriptionRequest) (*BeginSubscriptionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PurchaseApplicationService.BeginSubscription")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("tier", req.Tier),
		attribute.String("period", req.Period),
	)

	if _, ok := s.planFor(req.Tier, req.Period); !ok {
		err := purchase.ErrInvalidTarget
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	intent, err := purchase.NewPurchaseIntent(
		s.generateCorrelationID(),
		req.UserID,
		purchase.IntentKindSubscription,
		req.Tier,
		req.Period,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	token, err := s.tokens.ServiceToken(req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	si, err := s.client.CreateSetupIntent(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to create setup intent", err, map[string]interface{}{
			"user_id": req.UserID,
			"tier":    req.Tier,
		})
		s.metrics.RecordError(ctx, "setup_intent_failed")
		return nil, err
	}

	if err := s.intentRepo.Save(ctx, intent); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to save purchase intent: %w", err)
	}

	s.logger.Info(ctx, "Subscription purchase started", map[string]interface{}{
		"user_id":        req.UserID,
		"correlation_id": intent.CorrelationID(),
		"tier":           req.Tier,
	})

	return &BeginSubscriptionResponse{
		CorrelationID: intent.CorrelationID(),
		SetupIntentID: si.SetupIntentID,
		ClientSecret:  si.ClientSecret,
	}, nil
}

// Complete 決済プロセッサーUIの成功報告を処理する
// 同一相関IDの再送は冪等であり、2つ目の照合ループは開始されない
func (s *PurchaseApplicationService) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PurchaseApplicationService.Complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("correlation_id", req.CorrelationID),
	)

	intent, err := s.intentRepo.FindByCorrelationID(ctx, req.CorrelationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.checkOwnership(ctx, intent, req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	// 冪等性: 既に完了報告を受けた意図は再処理しない
	if intent.State() != purchase.StateAwaitingPaymentUI {
		s.logger.Info(ctx, "Purchase completion replay ignored", map[string]interface{}{
			"correlation_id": req.CorrelationID,
			"state":          intent.State().String(),
		})
		return &CompleteResponse{
			CorrelationID: intent.CorrelationID(),
			State:         intent.State().String(),
			AlreadyDone:   true,
		}, nil
	}

	// サブスクリプションは登録済み決済手段で契約を作成してから照合に入る
	if intent.Kind().IsSubscription() {
		plan, ok := s.planFor(intent.TargetID(), intent.Period())
		if !ok {
			err := purchase.ErrInvalidTarget
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		token, err := s.tokens.ServiceToken(intent.UserID())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		if _, err := s.client.CreateSubscription(ctx, token, plan.Tier, plan.PriceID, req.PaymentMethodID); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			s.logger.Error(ctx, "Failed to create subscription", err, map[string]interface{}{
				"correlation_id": req.CorrelationID,
				"tier":           plan.Tier,
			})
			return nil, err
		}
	}

	if err := intent.Complete(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	if err := s.intentRepo.Save(ctx, intent); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to save purchase intent: %w", err)
	}

	s.logger.Info(ctx, "Payment completed, starting reconciliation", map[string]interface{}{
		"correlation_id": req.CorrelationID,
		"user_id":        intent.UserID(),
		"kind":           intent.Kind().String(),
	})

	// 照合ループは受け渡し後すぐに意図の状態を進めるため、
	// レスポンスに返す状態は引き渡し前に確定させる
	state := intent.State().String()
	s.reconciler.Start(intent)

	return &CompleteResponse{
		CorrelationID: intent.CorrelationID(),
		State:         state,
	}, nil
}

// Cancel 決済UIのキャンセル・失敗報告を処理する
// キャンセルは静かに処理され、残高変更は一切試みられない
func (s *PurchaseApplicationService) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PurchaseApplicationService.Cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("correlation_id", req.CorrelationID),
	)

	intent, err := s.intentRepo.FindByCorrelationID(ctx, req.CorrelationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.checkOwnership(ctx, intent, req.UserID); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if req.FailureReason != "" {
		err = intent.Fail(req.FailureReason)
	} else {
		err = intent.Cancel()
	}
	if err != nil {
		if errors.Is(err, purchase.ErrInvalidStateTransition) {
			// 完了後のキャンセル報告は無視する（UI側の競合）
			return &CancelResponse{
				CorrelationID: intent.CorrelationID(),
				State:         intent.State().String(),
			}, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.intentRepo.Save(ctx, intent); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to save purchase intent: %w", err)
	}

	s.logger.Info(ctx, "Purchase dismissed", map[string]interface{}{
		"correlation_id": req.CorrelationID,
		"failed":         req.FailureReason != "",
	})

	return &CancelResponse{
		CorrelationID: intent.CorrelationID(),
		State:         intent.State().String(),
	}, nil
}

// CancelSubscription サブスクリプションを解約する
func (s *PurchaseApplicationService) CancelSubscription(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "PurchaseApplicationService.CancelSubscription")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
	)

	token, err := s.tokens.ServiceToken(userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	if err := s.client.CancelSubscription(ctx, token); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to cancel subscription", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}

	// 次回リフレッシュで新しいサブスクリプション状態を確実に取り直す
	s.walletSvc.InvalidateCache(userID)
	s.bus.Publish(bus.Event{
		Topic:  bus.TopicSubscriptionUpdated,
		UserID: userID,
	})

	s.logger.Info(ctx, "Subscription cancelled", map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// checkOwnership 意図が報告者本人のものであることを確認する
// Webhook経由（userID空）はプロセッサーのAPIキーで認証済みのため対象外
// 他人の意図は存在しないものとして扱い、相関IDの存在を漏らさない
func (s *PurchaseApplicationService) checkOwnership(ctx context.Context, intent *purchase.PurchaseIntent, userID string) error {
	if userID == "" || intent.UserID() == userID {
		return nil
	}
	s.logger.Warn(ctx, "Purchase intent ownership mismatch", map[string]interface{}{
		"correlation_id": intent.CorrelationID(),
		"user_id":        userID,
	})
	return purchase.ErrIntentNotFound
}

// packExists パッケージIDがカタログに存在するかどうか
func (s *PurchaseApplicationService) packExists(packageID string) bool {
	for _, p := range s.catalog.Packs {
		if p.PackageID == packageID {
			return true
		}
	}
	return false
}

// planFor ティアと期間に対応するプランを返す
func (s *PurchaseApplicationService) planFor(tier, period string) (upsell.Plan, bool) {
	for _, p := range s.catalog.Plans {
		if p.Tier == tier && p.Period == period {
			return p, true
		}
	}
	return upsell.Plan{}, false
}

// generateCorrelationID 相関IDを生成
// 暗号学的一意性は要求されないが、uuidで衝突回避には十分
func (s *PurchaseApplicationService) generateCorrelationID() string {
	return "pi_" + uuid.NewString()
}
