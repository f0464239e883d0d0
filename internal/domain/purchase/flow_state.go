package purchase

import "fmt"

// FlowState 購入フローの状態を表す値オブジェクト
// Idle → AwaitingPaymentUI → PaymentCompleted → Reconciling → Reconciled | ReconciliationTimedOut
// ReconciliationTimedOutはUI上Reconciledと同じ扱いであり、ログレベルでのみ区別される
type FlowState string

const (
	StateIdle                   FlowState = "idle"
	StateAwaitingPaymentUI      FlowState = "awaiting_payment_ui"
	StatePaymentCompleted       FlowState = "payment_completed"
	StateReconciling            FlowState = "reconciling"
	StateReconciled             FlowState = "reconciled"
	StateReconciliationTimedOut FlowState = "reconciliation_timed_out"
)

// NewFlowState 新しいFlowStateを作成
func NewFlowState(s string) (FlowState, error) {
	switch FlowState(s) {
	case StateIdle, StateAwaitingPaymentUI, StatePaymentCompleted,
		StateReconciling, StateReconciled, StateReconciliationTimedOut:
		return FlowState(s), nil
	default:
		return "", fmt.Errorf("invalid flow state: %s", s)
	}
}

// String 文字列表現を返す
func (s FlowState) String() string {
	return string(s)
}

// CanTransitionTo 指定した状態へ遷移可能かどうかを返す
func (s FlowState) CanTransitionTo(next FlowState) bool {
	switch s {
	case StateIdle:
		return next == StateAwaitingPaymentUI
	case StateAwaitingPaymentUI:
		// キャンセル・失敗時はIdleに戻る（残高変更は試みない）
		return next == StateIdle || next == StatePaymentCompleted
	case StatePaymentCompleted:
		return next == StateReconciling
	case StateReconciling:
		return next == StateReconciled || next == StateReconciliationTimedOut
	default:
		// Reconciled / ReconciliationTimedOut は終端状態
		return false
	}
}

// IsTerminal 終端状態かどうかを返す
func (s FlowState) IsTerminal() bool {
	return s == StateReconciled || s == StateReconciliationTimedOut
}
