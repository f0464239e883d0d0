package purchase

import (
	"sync"
	"time"
)

// PurchaseIntent 進行中の購入を表すエンティティ
// ユーザーが購入操作を開始したときに作成され、決済UIの完了報告で消費される
// correlationIDはクライアント生成の相関子であり、暗号学的な一意性は要求されない
//
// 状態はバックグラウンドの照合ループと完了報告のハンドラーから
// 同時に参照されるため、可変フィールドはミューテックスで保護する
type PurchaseIntent struct {
	correlationID string
	userID        string
	kind          IntentKind
	targetID      string // パックID、またはサブスクリプションのティア
	period        string // サブスクリプションの期間（monthly/yearly、token_packでは空）
	createdAt     time.Time

	mu            sync.Mutex
	state         FlowState
	failureReason string
	updatedAt     time.Time
}

// NewPurchaseIntent 新しいPurchaseIntentを作成
// ユーザーが購入をタップした時点で作成されるため、初期状態はAwaitingPaymentUI
func NewPurchaseIntent(correlationID, userID string, kind IntentKind, targetID, period string) (*PurchaseIntent, error) {
	if correlationID == "" {
		return nil, ErrInvalidCorrelationID
	}
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if !kind.Valid() {
		return nil, ErrInvalidIntentKind
	}
	if targetID == "" {
		return nil, ErrInvalidTarget
	}
	now := time.Now()
	return &PurchaseIntent{
		correlationID: correlationID,
		userID:        userID,
		kind:          kind,
		targetID:      targetID,
		period:        period,
		state:         StateAwaitingPaymentUI,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// Restore 永続化された値からPurchaseIntentを復元
func Restore(correlationID, userID string, kind IntentKind, targetID, period string, state FlowState, failureReason string, createdAt, updatedAt time.Time) *PurchaseIntent {
	return &PurchaseIntent{
		correlationID: correlationID,
		userID:        userID,
		kind:          kind,
		targetID:      targetID,
		period:        period,
		state:         state,
		failureReason: failureReason,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// CorrelationID 相関IDを返す
func (p *PurchaseIntent) CorrelationID() string {
	return p.correlationID
}

// UserID ユーザーIDを返す
func (p *PurchaseIntent) UserID() string {
	return p.userID
}

// Kind 購入種別を返す
func (p *PurchaseIntent) Kind() IntentKind {
	return p.kind
}

// TargetID 購入対象（パックIDまたはティア）を返す
func (p *PurchaseIntent) TargetID() string {
	return p.targetID
}

// Period サブスクリプション期間を返す
func (p *PurchaseIntent) Period() string {
	return p.period
}

// State 現在のフロー状態を返す
func (p *PurchaseIntent) State() FlowState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// FailureReason 決済失敗時の理由を返す
func (p *PurchaseIntent) FailureReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failureReason
}

// CreatedAt 作成日時を返す
func (p *PurchaseIntent) CreatedAt() time.Time {
	return p.createdAt
}

// UpdatedAt 更新日時を返す
func (p *PurchaseIntent) UpdatedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatedAt
}

// Complete 決済プロセッサーが成功を報告した
func (p *PurchaseIntent) Complete() error {
	return p.transition(StatePaymentCompleted)
}

// Cancel ユーザーが決済UIをキャンセルした（エラー表示なし・残高変更なし）
func (p *PurchaseIntent) Cancel() error {
	return p.transition(StateIdle)
}

// Fail 決済プロセッサーが失敗を報告した
func (p *PurchaseIntent) Fail(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.transitionLocked(StateIdle); err != nil {
		return err
	}
	p.failureReason = reason
	return nil
}

// StartReconciling 残高照合ループを開始した
func (p *PurchaseIntent) StartReconciling() error {
	return p.transition(StateReconciling)
}

// MarkReconciled 照合が成功条件を満たして終了した
func (p *PurchaseIntent) MarkReconciled() error {
	return p.transition(StateReconciled)
}

// MarkTimedOut 全試行を使い切っても成功条件を満たさなかった
// UIからはReconciledと同一に扱われ、ユーザーにエラーは表示されない
func (p *PurchaseIntent) MarkTimedOut() error {
	return p.transition(StateReconciliationTimedOut)
}

// transition 状態遷移を実行（不正な遷移はErrInvalidStateTransition）
func (p *PurchaseIntent) transition(next FlowState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transitionLocked(next)
}

func (p *PurchaseIntent) transitionLocked(next FlowState) error {
	if !p.state.CanTransitionTo(next) {
		return ErrInvalidStateTransition
	}
	p.state = next
	p.updatedAt = time.Now()
	return nil
}
