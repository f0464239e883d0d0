package upsell

import (
	"genie-wallet/internal/domain/balance"
)

// RecommendedAction アップセル画面で最初にフォーカスされる購入手段
// ユーザーは画面上で自由にタブを切り替えられるため、これは初期表示の推奨にすぎない
type RecommendedAction string

const (
	RecommendSubscription RecommendedAction = "subscription"
	RecommendTokenPack    RecommendedAction = "token_pack"
)

// Context 残高不足時に構築されるアップセルコンテキスト
// 構築後は不変であり、アップセル画面の表示期間だけ生存する
type Context struct {
	RequiredTokens      int64
	CurrentBalance      balance.Balance
	QueryKindDescriptor string
	RecommendedAction   RecommendedAction
	AvailablePlans      []Plan
	AvailablePacks      []Pack
}

// NewContext 新しいアップセルコンテキストを作成
// アクティブなサブスクリプションを持たないユーザーにはサブスクリプションを、
// 既に加入済みのユーザーにはトークンパックを推奨する
func NewContext(required int64, current balance.Balance, queryKind string, hasActiveSubscription bool, catalog Catalog) Context {
	action := RecommendSubscription
	if hasActiveSubscription {
		action = RecommendTokenPack
	}
	return Context{
		RequiredTokens:      required,
		CurrentBalance:      current,
		QueryKindDescriptor: queryKind,
		RecommendedAction:   action,
		AvailablePlans:      catalog.Plans,
		AvailablePacks:      catalog.Packs,
	}
}

// Shortfall 不足しているトークン数を返す
func (c Context) Shortfall() int64 {
	return c.CurrentBalance.Shortfall(c.RequiredTokens)
}
