package reconcile

import (
	"context"
	"time"
)

// Schedule ポーリングの試行回数と試行間隔
type Schedule struct {
	MaxAttempts int
	DelayFor    func(attempt int) time.Duration
}

// FixedSchedule 全試行で同一間隔のスケジュールを作成
func FixedSchedule(maxAttempts int, delay time.Duration) Schedule {
	return Schedule{
		MaxAttempts: maxAttempts,
		DelayFor: func(int) time.Duration {
			return delay
		},
	}
}

// RampSchedule 序盤は短く、以降は一定間隔のスケジュールを作成
// サブスクリプションのWebhook反映は最初の数秒で完了することが多いため、
// 1回目1秒・2回目2秒・以降4秒で待つ
func RampSchedule(maxAttempts int) Schedule {
	return Schedule{
		MaxAttempts: maxAttempts,
		DelayFor: func(attempt int) time.Duration {
			switch attempt {
			case 1:
				return 1 * time.Second
			case 2:
				return 2 * time.Second
			default:
				return 4 * time.Second
			}
		},
	}
}

// Result ポーリングループの結果
type Result struct {
	Succeeded bool
	Attempts  int
}

// Step 1回の試行
// 成功条件を満たした場合にtrueを返す。エラーは試行を1回消費するだけで、
// ループ全体を中断しない（中断は試行回数の枯渇とコンテキストキャンセルのみ）
type Step func(ctx context.Context, attempt int) (bool, error)

// Poll 成功条件を満たすか試行回数が尽きるまでstepを実行する
// 試行はループ内で厳密に逐次実行され、試行N+1は試行Nの完了前に開始されない
func Poll(ctx context.Context, schedule Schedule, step Step) Result {
	for attempt := 1; attempt <= schedule.MaxAttempts; attempt++ {
		done, err := step(ctx, attempt)
		if err == nil && done {
			return Result{Succeeded: true, Attempts: attempt}
		}

		if attempt == schedule.MaxAttempts {
			break
		}
		if !sleep(ctx, schedule.DelayFor(attempt)) {
			return Result{Succeeded: false, Attempts: attempt}
		}
	}
	return Result{Succeeded: false, Attempts: schedule.MaxAttempts}
}

// sleep コンテキストキャンセルに応答する待機
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
