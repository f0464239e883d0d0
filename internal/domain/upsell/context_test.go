package upsell

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"genie-wallet/internal/domain/balance"
)

func testCatalog() Catalog {
	return Catalog{
		Plans: []Plan{
			{Tier: "premium", Period: "monthly", PriceID: "price_premium_m", MonthlyAllowance: 500},
		},
		Packs: []Pack{
			{PackageID: "pack_500", Tokens: 500},
		},
	}
}

func TestNewContext(t *testing.T) {
	tests := []struct {
		name                  string
		required              int64
		current               int64
		queryKind             string
		hasActiveSubscription bool
		wantAction            RecommendedAction
	}{
		{
			name:                  "正常系: 未加入ユーザーにはサブスクリプションを推奨",
			required:              50,
			current:               12,
			queryKind:             "workout_plan",
			hasActiveSubscription: false,
			wantAction:            RecommendSubscription,
		},
		{
			name:                  "正常系: 加入済みユーザーにはトークンパックを推奨",
			required:              50,
			current:               12,
			queryKind:             "workout_plan",
			hasActiveSubscription: true,
			wantAction:            RecommendTokenPack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewContext(tt.required, balance.NewBalance(tt.current), tt.queryKind, tt.hasActiveSubscription, testCatalog())

			assert.Equal(t, tt.required, got.RequiredTokens)
			assert.Equal(t, tt.current, got.CurrentBalance.Int64())
			assert.Equal(t, tt.queryKind, got.QueryKindDescriptor)
			assert.Equal(t, tt.wantAction, got.RecommendedAction)
			assert.Len(t, got.AvailablePlans, 1)
			assert.Len(t, got.AvailablePacks, 1)
		})
	}
}

func TestContext_Shortfall(t *testing.T) {
	ctx := NewContext(50, balance.NewBalance(12), "", false, testCatalog())
	assert.Equal(t, int64(38), ctx.Shortfall())
}
