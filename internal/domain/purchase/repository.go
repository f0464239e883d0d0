package purchase

import (
	"context"
)

// IntentRepository 購入意図リポジトリインターフェース
type IntentRepository interface {
	// FindByCorrelationID 相関IDで購入意図を取得
	FindByCorrelationID(ctx context.Context, correlationID string) (*PurchaseIntent, error)

	// Save 購入意図を保存（新規作成または状態更新）
	Save(ctx context.Context, intent *PurchaseIntent) error
}
