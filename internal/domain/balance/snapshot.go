package balance

// Snapshot サーバーが報告した残高の内訳
// Balanceはサブスクリプション月間割当の残りとトップアップ残高の合計
type Snapshot struct {
	Balance      Balance
	Subscription *SubscriptionDetail
}

// SubscriptionDetail サブスクリプションの詳細
type SubscriptionDetail struct {
	Tier                     string
	MonthlyAllowance         int64
	TokensUsedThisMonth      int64
	TokensRemainingThisMonth int64
	TopUpBalance             int64
}

// NewSnapshot 新しいSnapshotを作成（残高はクランプされる）
func NewSnapshot(total int64, sub *SubscriptionDetail) Snapshot {
	return Snapshot{
		Balance:      NewBalance(total),
		Subscription: sub,
	}
}

// TopUpBalance トップアップ残高を返す（サブスクリプション情報がない場合は0）
func (s Snapshot) TopUpBalance() int64 {
	if s.Subscription == nil {
		return 0
	}
	return s.Subscription.TopUpBalance
}

// Tier サブスクリプションのティア名を返す（未加入の場合は空文字列）
func (s Snapshot) Tier() string {
	if s.Subscription == nil {
		return ""
	}
	return s.Subscription.Tier
}

// HasActiveSubscription 有効なサブスクリプションを持っているかどうかを返す
func (s Snapshot) HasActiveSubscription() bool {
	return s.Subscription != nil && s.Subscription.Tier != "" && s.Subscription.MonthlyAllowance > 0
}
