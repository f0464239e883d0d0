package wallet

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"genie-wallet/internal/domain/balance"
	"genie-wallet/internal/infrastructure/bus"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// BalanceQuerier 権威ある残高を問い合わせるインターフェース
type BalanceQuerier interface {
	GetBalance(ctx context.Context, token string, useCache bool) (balance.Snapshot, error)
}

// TokenSource 上流呼び出し用のサービストークンを発行するインターフェース
type TokenSource interface {
	ServiceToken(userID string) (string, error)
}

// WalletApplicationService 残高ストアのアプリケーションサービス
// アプリセッションごとに1つの論理ストアを保持し、DIで各レイヤーに注入される
type WalletApplicationService struct {
	querier BalanceQuerier
	tokens  TokenSource
	bus     *bus.Bus
	logger  *otelinfra.Logger
	metrics *otelinfra.Metrics
	tracer  trace.Tracer

	mu     sync.Mutex
	stores map[string]*Store
}

// NewWalletApplicationService 新しいWalletApplicationServiceを作成
func NewWalletApplicationService(
	querier BalanceQuerier,
	tokens TokenSource,
	notifyBus *bus.Bus,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *WalletApplicationService {
	return &WalletApplicationService{
		querier: querier,
		tokens:  tokens,
		bus:     notifyBus,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("wallet-service"),
		stores:  make(map[string]*Store),
	}
}

// StoreFor ユーザーのストアを取得する（存在しない場合は作成）
func (s *WalletApplicationService) StoreFor(userID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[userID]
	if !ok {
		st = NewStore()
		s.stores[userID] = st
	}
	return st
}

// ActiveUsers ストアを保持している全ユーザーIDを返す
func (s *WalletApplicationService) ActiveUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.stores))
	for userID := range s.stores {
		users = append(users, userID)
	}
	return users
}

// GetBalance 最後に知った残高を返す（I/Oは行わない）
func (s *WalletApplicationService) GetBalance(ctx context.Context, req *GetBalanceRequest) *GetBalanceResponse {
	st := s.StoreFor(req.UserID)
	b := st.Get()
	snap := st.Snapshot()
	return &GetBalanceResponse{
		UserID:   req.UserID,
		Balance:  b.Int64(),
		Severity: balance.SeverityOf(b),
		Tier:     snap.Tier(),
	}
}

// Refresh 権威ある残高を取得してストアを更新する
// 別のリフレッシュが進行中の場合、この呼び出しは破棄される（Skipped=true）
func (s *WalletApplicationService) Refresh(ctx context.Context, req *RefreshRequest) (*RefreshResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WalletApplicationService.Refresh")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Bool("bypass_cache", req.BypassCache),
	)

	st := s.StoreFor(req.UserID)

	gen, bypass, started := st.BeginRefresh(req.BypassCache)
	if !started {
		s.logger.Debug(ctx, "Balance refresh dropped, another refresh in flight", map[string]interface{}{
			"user_id": req.UserID,
		})
		return &RefreshResponse{
			UserID:  req.UserID,
			Balance: st.Get().Int64(),
			Skipped: true,
		}, nil
	}

	token, err := s.tokens.ServiceToken(req.UserID)
	if err != nil {
		b, _ := st.FailRefresh()
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to issue service token for balance refresh", err, map[string]interface{}{
			"user_id": req.UserID,
		})
		return &RefreshResponse{UserID: req.UserID, Balance: b.Int64()}, err
	}

	snap, err := s.querier.GetBalance(ctx, token, !bypass)
	if err != nil {
		// 既知の残高があればそれを保持し、初回ロード失敗時のみ0にフォールバック
		// どちらの場合もUIをブロックしない（ネットワーク障害は静かに飲み込む）
		b, fellOpen := st.FailRefresh()
		span.RecordError(err)
		s.logger.Warn(ctx, "Balance refresh failed, keeping last known value", map[string]interface{}{
			"user_id":   req.UserID,
			"error":     err.Error(),
			"fell_open": fellOpen,
		})
		if fellOpen {
			s.publishBalance(req.UserID, b.Int64(), 0)
		}
		return &RefreshResponse{UserID: req.UserID, Balance: b.Int64()}, nil
	}

	b, changed := st.CompleteRefresh(gen, snap)
	if changed {
		s.publishBalance(req.UserID, b.Int64(), 0)
	}
	s.metrics.RecordTokenBalance(ctx, req.UserID, b.Int64())

	return &RefreshResponse{
		UserID:  req.UserID,
		Balance: b.Int64(),
	}, nil
}

// InvalidateCache 次回のリフレッシュに上流キャッシュのバイパスを強制する
func (s *WalletApplicationService) InvalidateCache(userID string) {
	s.StoreFor(userID).InvalidateCache()
}

// SetAuthoritative 権威あるサーバー値で残高を即時に上書きする
// （InsufficientTokens応答・クエリ成功応答からの訂正）
func (s *WalletApplicationService) SetAuthoritative(ctx context.Context, userID string, value, tokensUsed int64) balance.Balance {
	b, changed := s.StoreFor(userID).SetAuthoritative(value)
	if changed {
		s.publishBalance(userID, b.Int64(), tokensUsed)
	}
	s.metrics.RecordTokenBalance(ctx, userID, b.Int64())
	return b
}

// ApplySnapshot 照合ループが取得したスナップショットでストアを更新する
func (s *WalletApplicationService) ApplySnapshot(ctx context.Context, userID string, snap balance.Snapshot) balance.Balance {
	b, changed := s.StoreFor(userID).ApplySnapshot(snap)
	if changed {
		s.publishBalance(userID, b.Int64(), 0)
	}
	s.metrics.RecordTokenBalance(ctx, userID, b.Int64())
	return b
}

// publishBalance 残高変更通知を配信する
func (s *WalletApplicationService) publishBalance(userID string, balance, tokensUsed int64) {
	s.bus.Publish(bus.Event{
		Topic:      bus.TopicTokenBalanceUpdated,
		UserID:     userID,
		Balance:    balance,
		TokensUsed: tokensUsed,
	})
}
