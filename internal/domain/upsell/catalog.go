package upsell

// Plan 購入可能なサブスクリプションプラン
type Plan struct {
	Tier             string `json:"tier"`
	Period           string `json:"period"` // monthly / yearly
	PriceID          string `json:"price_id"`
	MonthlyAllowance int64  `json:"monthly_allowance"`
}

// Pack 購入可能なトークンパック
type Pack struct {
	PackageID string `json:"package_id"`
	Tokens    int64  `json:"tokens"`
}

// Catalog アップセル画面に表示される購入手段の一覧
type Catalog struct {
	Plans []Plan
	Packs []Pack
}
