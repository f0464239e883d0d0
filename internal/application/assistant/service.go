package assistant

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/application/wallet"
	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/domain/upsell"
	"genie-wallet/internal/infrastructure/config"
	"genie-wallet/internal/infrastructure/genieapi"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// QueryClient 課金対象クエリを実行するインターフェース
type QueryClient interface {
	Query(ctx context.Context, token string, req *genieapi.QueryRequest) (*genieapi.QueryResponse, error)
}

// AssistantApplicationService 課金対象クエリのアプリケーションサービス
//
// 残高不足の判定はサーバーが行う: クライアントは古いキャッシュ残高で
// 事前見積もりをせず、常にクエリを送信してサーバーに裁定させる
// （真の現在残高を知っているのはサーバーだけである）
type AssistantApplicationService struct {
	client    QueryClient
	tokens    wallet.TokenSource
	walletSvc *wallet.WalletApplicationService
	catalog   upsell.Catalog
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer

	selfHealDelay time.Duration

	// ユーザーごとの自己修復リフレッシュ予約（高々1つ）
	healMu      sync.Mutex
	healPending map[string]bool
}

// NewAssistantApplicationService 新しいAssistantApplicationServiceを作成
func NewAssistantApplicationService(
	client QueryClient,
	tokens wallet.TokenSource,
	walletSvc *wallet.WalletApplicationService,
	catalog upsell.Catalog,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	cfg *config.ReconcileConfig,
) *AssistantApplicationService {
	return &AssistantApplicationService{
		client:        client,
		tokens:        tokens,
		walletSvc:     walletSvc,
		catalog:       catalog,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("assistant-service"),
		selfHealDelay: cfg.SelfHealDelay,
		healPending:   make(map[string]bool),
	}
}

// Query 課金対象クエリを実行する
// 残高不足の場合はアップセルコンテキストを構築して返し、自動リトライはしない
func (s *AssistantApplicationService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AssistantApplicationService.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("session_id", req.SessionID),
	)

	token, err := s.tokens.ServiceToken(req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	previous := s.walletSvc.StoreFor(req.UserID).Get()

	resp, err := s.client.Query(ctx, token, &genieapi.QueryRequest{
		Text:      req.Text,
		SessionID: req.SessionID,
		QueryKind: req.QueryKind,
	})
	if err != nil {
		if ite, ok := genieapi.AsInsufficientTokens(err); ok {
			return s.handleInsufficientTokens(ctx, req, ite), nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Priced query failed", err, map[string]interface{}{
			"user_id":    req.UserID,
			"session_id": req.SessionID,
		})
		s.metrics.RecordError(ctx, "query_failed")
		return nil, err
	}

	// 成功応答の残高は権威がある: max(0, tokensRemaining)で置き換える
	corrected := s.walletSvc.SetAuthoritative(ctx, req.UserID, resp.TokensRemaining, resp.TokensUsed)
	s.metrics.RecordTokensUsed(ctx, resp.TokensUsed)

	s.selfHealIfStale(ctx, req.UserID, previous, resp.TokensUsed, corrected)

	return &QueryResponse{
		Response:        resp.Response,
		TokensUsed:      resp.TokensUsed,
		TokensRemaining: resp.TokensRemaining,
		Balance:         corrected.Int64(),
		Severity:        balance.SeverityOf(corrected),
		BalanceWarning:  resp.BalanceWarning,
		Title:           resp.Title,
		Actions:         resp.Actions,
	}, nil
}

// handleInsufficientTokens 残高不足応答をアップセルコンテキストに変換する
// サーバー報告の実残高でストアを即時訂正し、誤った十分性仮定の原因となった
// 古さを解消する。クエリの自動リトライは行わない
func (s *AssistantApplicationService) handleInsufficientTokens(ctx context.Context, req *QueryRequest, ite *genieapi.InsufficientTokensError) *QueryResponse {
	corrected := s.walletSvc.SetAuthoritative(ctx, req.UserID, ite.Balance, 0)

	hasSub := s.walletSvc.StoreFor(req.UserID).Snapshot().HasActiveSubscription()
	uc := upsell.NewContext(ite.Required, corrected, req.QueryKind, hasSub, s.catalog)

	s.metrics.RecordUpsell(ctx, string(uc.RecommendedAction))
	s.logger.Info(ctx, "Insufficient tokens, producing upsell context", map[string]interface{}{
		"user_id":            req.UserID,
		"required_tokens":    ite.Required,
		"current_balance":    corrected.Int64(),
		"recommended_action": string(uc.RecommendedAction),
	})

	return &QueryResponse{
		Balance:  corrected.Int64(),
		Severity: balance.SeverityOf(corrected),
		Upsell:   &uc,
	}
}

// selfHealIfStale 消費後残高の整合性を確認し、ズレがあれば自己修復を予約する
//
// tokensUsed > 0 のとき expected = previous - tokensUsed を計算し、
// |new - expected| > 1 ならどちらの値も盲信せず、短い遅延の後に
// キャッシュバイパスの強制リフレッシュを1回だけ予約する
// ユーザーに見えるエラーは発生させない（静かな自己修復）
func (s *AssistantApplicationService) selfHealIfStale(ctx context.Context, userID string, previous balance.Balance, tokensUsed int64, current balance.Balance) {
	if tokensUsed <= 0 {
		return
	}
	expected := previous.Int64() - tokensUsed
	diff := current.Int64() - expected
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return
	}

	s.healMu.Lock()
	if s.healPending[userID] {
		s.healMu.Unlock()
		return
	}
	s.healPending[userID] = true
	s.healMu.Unlock()

	s.logger.Info(ctx, "Balance drift detected, scheduling forced refresh", map[string]interface{}{
		"user_id":  userID,
		"expected": expected,
		"actual":   current.Int64(),
	})

	time.AfterFunc(s.selfHealDelay, func() {
		s.healMu.Lock()
		delete(s.healPending, userID)
		s.healMu.Unlock()

		_, err := s.walletSvc.Refresh(context.Background(), &wallet.RefreshRequest{
			UserID:      userID,
			BypassCache: true,
		})
		if err != nil {
			s.logger.Warn(context.Background(), "Self-heal refresh failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	})
}
