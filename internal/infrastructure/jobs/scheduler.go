// Package jobs バックグラウンドジョブ（cron）を管理する
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"

	"genie-wallet/internal/application/wallet"
	otelinfra "genie-wallet/internal/infrastructure/observability/otel"
)

// Scheduler 定期的な残高再同期ジョブを管理する
// アクティブなユーザーのキャッシュを無効化し、権威ある残高を取り直す
type Scheduler struct {
	cron      *cron.Cron
	walletSvc *wallet.WalletApplicationService
	logger    *otelinfra.Logger
	schedule  string
}

// NewScheduler 新しいSchedulerを作成
func NewScheduler(walletSvc *wallet.WalletApplicationService, logger *otelinfra.Logger, schedule string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		walletSvc: walletSvc,
		logger:    logger,
		schedule:  schedule,
	}
}

// Start バックグラウンドジョブを開始する
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.resyncBalances(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info(ctx, "Balance resync scheduler started", map[string]interface{}{
		"schedule": s.schedule,
	})
	return nil
}

// Stop 実行中のジョブの完了を待ってスケジューラを停止する
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// resyncBalances 全アクティブユーザーの残高を強制的に取り直す
// 進行中のリフレッシュがあるユーザーはシングルフライトによりスキップされる
func (s *Scheduler) resyncBalances(ctx context.Context) {
	users := s.walletSvc.ActiveUsers()
	if len(users) == 0 {
		return
	}

	s.logger.Debug(ctx, "Resyncing balances", map[string]interface{}{
		"user_count": len(users),
	})

	for _, userID := range users {
		s.walletSvc.InvalidateCache(userID)
		if _, err := s.walletSvc.Refresh(ctx, &wallet.RefreshRequest{
			UserID:      userID,
			BypassCache: true,
		}); err != nil {
			s.logger.Warn(ctx, "Balance resync failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}
}
