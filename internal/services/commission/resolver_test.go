package commission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/services/commission"
	"github.com/kevin07696/marketplace-ledger/internal/testutil/fixtures"
	"github.com/kevin07696/marketplace-ledger/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var orderTime = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func noVolume() (decimal.Decimal, error) {
	panic("sales volume should not be needed")
}

func volumeOf(v string) func() (decimal.Decimal, error) {
	return func() (decimal.Decimal, error) { return d(v), nil }
}

var target = commission.Target{
	ProductID:   "prod-1",
	MerchantID:  "merch-1",
	CategoryIDs: []string{"cat-shoes", "cat-sale"},
}

func TestWaterfall_ProductBeatsGlobal(t *testing.T) {
	rules := []models.CommissionRule{
		models.GlobalRule{RuleBase: fixtures.Rule("global", "20", 1)},
		models.ProductRule{RuleBase: fixtures.Rule("product", "10", 1), ProductID: "prod-1"},
	}

	res, err := commission.Waterfall(rules, target, orderTime, noVolume)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Rate.Equal(d("10")))
	assert.Equal(t, models.SourceProductRule, res.Source)
	assert.Equal(t, "product", *res.RuleID)
}

func TestWaterfall_LevelOrder(t *testing.T) {
	tests := []struct {
		name       string
		rules      []models.CommissionRule
		wantSource models.CommissionSource
		wantRate   string
	}{
		{
			name: "category over merchant",
			rules: []models.CommissionRule{
				models.MerchantRule{RuleBase: fixtures.Rule("m", "12", 1), MerchantID: "merch-1"},
				models.CategoryRule{RuleBase: fixtures.Rule("c", "8", 1), CategoryID: "cat-sale"},
			},
			wantSource: models.SourceCategoryRule,
			wantRate:   "8",
		},
		{
			name: "merchant over global",
			rules: []models.CommissionRule{
				models.GlobalRule{RuleBase: fixtures.Rule("g", "20", 1)},
				models.MerchantRule{RuleBase: fixtures.Rule("m", "12", 1), MerchantID: "merch-1"},
			},
			wantSource: models.SourceMerchantRule,
			wantRate:   "12",
		},
		{
			name: "other product rule is ignored",
			rules: []models.CommissionRule{
				models.ProductRule{RuleBase: fixtures.Rule("p", "1", 1), ProductID: "prod-2"},
				models.GlobalRule{RuleBase: fixtures.Rule("g", "20", 1)},
			},
			wantSource: models.SourceGlobalRule,
			wantRate:   "20",
		},
		{
			name: "other merchant rule is ignored",
			rules: []models.CommissionRule{
				models.MerchantRule{RuleBase: fixtures.Rule("m", "3", 1), MerchantID: "merch-2"},
				models.GlobalRule{RuleBase: fixtures.Rule("g", "20", 1)},
			},
			wantSource: models.SourceGlobalRule,
			wantRate:   "20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := commission.Waterfall(tt.rules, target, orderTime, noVolume)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.True(t, res.Rate.Equal(d(tt.wantRate)), "rate = %s", res.Rate)
		})
	}
}

func TestWaterfall_InactiveAndOutOfWindowRulesAreSkipped(t *testing.T) {
	inactive := fixtures.Rule("inactive", "1", 1)
	inactive.IsActive = false

	expired := fixtures.Rule("expired", "2", 1)
	validTo := orderTime // exclusive bound
	expired.ValidTo = &validTo

	future := fixtures.Rule("future", "3", 1)
	validFrom := orderTime.Add(time.Hour)
	future.ValidFrom = &validFrom

	rules := []models.CommissionRule{
		models.ProductRule{RuleBase: inactive, ProductID: "prod-1"},
		models.ProductRule{RuleBase: expired, ProductID: "prod-1"},
		models.ProductRule{RuleBase: future, ProductID: "prod-1"},
		models.GlobalRule{RuleBase: fixtures.Rule("g", "20", 1)},
	}

	res, err := commission.Waterfall(rules, target, orderTime, noVolume)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGlobalRule, res.Source)
}

func TestWaterfall_TiesBreakByPriorityThenID(t *testing.T) {
	rules := []models.CommissionRule{
		models.CategoryRule{RuleBase: fixtures.Rule("c-b", "9", 2), CategoryID: "cat-shoes"},
		models.CategoryRule{RuleBase: fixtures.Rule("c-z", "7", 1), CategoryID: "cat-sale"},
		models.CategoryRule{RuleBase: fixtures.Rule("c-a", "6", 1), CategoryID: "cat-shoes"},
	}

	res, err := commission.Waterfall(rules, target, orderTime, noVolume)
	require.NoError(t, err)
	assert.Equal(t, "c-a", *res.RuleID)
	assert.True(t, res.Rate.Equal(d("6")))
}

func TestWaterfall_TierBrackets(t *testing.T) {
	merchantID := "merch-1"
	tier := models.TierRule{
		RuleBase:   fixtures.Rule("tier", "0", 1),
		MerchantID: &merchantID,
		Brackets:   fixtures.Brackets("0:10000:15", "10000:50000:12", "50000::10"),
	}

	tests := []struct {
		volume   string
		wantRate string
	}{
		{volume: "0", wantRate: "15"},
		{volume: "9999.99", wantRate: "15"},
		{volume: "10000", wantRate: "12"},
		{volume: "49999.99", wantRate: "12"},
		{volume: "50000", wantRate: "10"},
		{volume: "9000000", wantRate: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.volume, func(t *testing.T) {
			res, err := commission.Waterfall([]models.CommissionRule{tier}, target, orderTime, volumeOf(tt.volume))
			require.NoError(t, err)
			assert.Equal(t, models.SourceTierRule, res.Source)
			assert.True(t, res.Rate.Equal(d(tt.wantRate)), "rate = %s", res.Rate)
		})
	}
}

func TestWaterfall_ScopedTierBeatsUnscoped(t *testing.T) {
	merchantID := "merch-1"
	unscoped := models.TierRule{
		RuleBase: fixtures.Rule("a-unscoped", "0", 0),
		Brackets: fixtures.Brackets("0::20"),
	}
	scoped := models.TierRule{
		RuleBase:   fixtures.Rule("b-scoped", "0", 5),
		MerchantID: &merchantID,
		Brackets:   fixtures.Brackets("0::11"),
	}

	res, err := commission.Waterfall([]models.CommissionRule{unscoped, scoped}, target, orderTime, volumeOf("100"))
	require.NoError(t, err)
	assert.Equal(t, "b-scoped", *res.RuleID)
	assert.True(t, res.Rate.Equal(d("11")))
}

func TestWaterfall_TierWithoutMatchingBracketFallsThrough(t *testing.T) {
	tier := models.TierRule{
		RuleBase: fixtures.Rule("tier", "0", 1),
		Brackets: fixtures.Brackets("1000:5000:12"),
	}
	rules := []models.CommissionRule{tier, models.GlobalRule{RuleBase: fixtures.Rule("g", "20", 1)}}

	res, err := commission.Waterfall(rules, target, orderTime, volumeOf("10"))
	require.NoError(t, err)
	assert.Equal(t, models.SourceGlobalRule, res.Source)
}

func TestWaterfall_NoMatch(t *testing.T) {
	res, err := commission.Waterfall(nil, target, orderTime, noVolume)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCalculateAmount(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		res      models.CommissionResolution
		want     string
	}{
		{
			name:     "percentage",
			subtotal: "1000.00",
			res:      models.CommissionResolution{Type: models.CommissionPercentage, Rate: d("10")},
			want:     "100.00",
		},
		{
			name:     "percentage rounds half up",
			subtotal: "33.35",
			res:      models.CommissionResolution{Type: models.CommissionPercentage, Rate: d("10")},
			want:     "3.34",
		},
		{
			name:     "fixed",
			subtotal: "1000.00",
			res:      models.CommissionResolution{Type: models.CommissionFixed, Rate: d("25")},
			want:     "25.00",
		},
		{
			name:     "hybrid",
			subtotal: "200.00",
			res:      models.CommissionResolution{Type: models.CommissionHybrid, Rate: d("5"), FixedAmount: d("2.50")},
			want:     "12.50",
		},
		{
			name:     "fixed capped at subtotal",
			subtotal: "10.00",
			res:      models.CommissionResolution{Type: models.CommissionFixed, Rate: d("25")},
			want:     "10.00",
		},
		{
			name:     "zero subtotal",
			subtotal: "0",
			res:      models.CommissionResolution{Type: models.CommissionHybrid, Rate: d("5"), FixedAmount: d("1")},
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := commission.CalculateAmount(d(tt.subtotal), &tt.res)
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "amount = %s", got)
			assert.True(t, got.LessThanOrEqual(d(tt.subtotal)))
		})
	}
}

func TestCalculateAmount_NegativeSubtotal(t *testing.T) {
	_, err := commission.CalculateAmount(d("-1"), &models.CommissionResolution{Type: models.CommissionPercentage, Rate: d("10")})
	assert.True(t, domain.IsComputationError(err))
}

func newResolver() (*commission.Resolver, *mocks.MockCommissionRuleRepository, *mocks.MockCatalogRepository, *mocks.MockMerchantRepository, *mocks.MockOrderRepository) {
	rules := new(mocks.MockCommissionRuleRepository)
	catalog := new(mocks.MockCatalogRepository)
	merchants := new(mocks.MockMerchantRepository)
	orders := new(mocks.MockOrderRepository)
	r := commission.NewResolver(&mocks.MockDBPort{}, rules, catalog, merchants, orders, zap.NewNop())
	return r, rules, catalog, merchants, orders
}

func TestResolver_Resolve_FallsBackToMerchantDefault(t *testing.T) {
	ctx := context.Background()
	r, rules, catalog, merchants, _ := newResolver()

	catalog.On("GetProduct", ctx, mock.Anything, "prod-1").
		Return(&models.Product{ID: "prod-1", CategoryIDs: []string{"cat-1"}}, nil)
	rules.On("ListCandidateRules", ctx, mock.Anything, "prod-1", []string{"cat-1"}, "merch-1").
		Return([]models.CommissionRule{}, nil)
	merchants.On("GetMerchant", ctx, mock.Anything, "merch-1").
		Return(&models.Merchant{ID: "merch-1", DefaultCommissionPercent: d("7.5")}, nil)

	res, err := r.Resolve(ctx, "prod-1", "merch-1", orderTime)
	require.NoError(t, err)

	assert.Equal(t, models.SourceMerchantDefault, res.Source)
	assert.Equal(t, models.CommissionPercentage, res.Type)
	assert.True(t, res.Rate.Equal(d("7.5")))
	assert.Nil(t, res.RuleID)
}

func TestResolver_FreezeOrderLine(t *testing.T) {
	ctx := context.Background()
	r, rules, catalog, _, orders := newResolver()

	line := fixtures.OrderLine("line-1", "ord-1", "merch-1", 2, "50.00")
	line.CommissionFrozenAt = nil
	line.CommissionAmount = decimal.Zero

	orders.On("GetOrderLineForUpdate", ctx, mock.Anything, "line-1").Return(line, nil)
	catalog.On("GetProduct", ctx, mock.Anything, line.ProductID).
		Return(&models.Product{ID: line.ProductID}, nil)
	rules.On("ListCandidateRules", ctx, mock.Anything, line.ProductID, []string(nil), "merch-1").
		Return([]models.CommissionRule{
			models.ProductRule{RuleBase: fixtures.Rule("p", "10", 1), ProductID: line.ProductID},
		}, nil)
	orders.On("FreezeCommission", ctx, mock.Anything, "line-1",
		mock.MatchedBy(func(res *models.CommissionResolution) bool {
			return res.Source == models.SourceProductRule
		}),
		mock.MatchedBy(func(amount decimal.Decimal) bool { return amount.Equal(d("10")) }),
		mock.AnythingOfType("time.Time"),
	).Return(true, nil)

	result, err := r.FreezeOrderLine(ctx, "line-1")
	require.NoError(t, err)

	assert.False(t, result.AlreadyFrozen)
	assert.True(t, result.Line.CommissionAmount.Equal(d("10")))
	assert.NotNil(t, result.Line.CommissionFrozenAt)
	orders.AssertExpectations(t)
}

func TestResolver_FreezeOrderLine_AlreadyFrozenIsNoOp(t *testing.T) {
	ctx := context.Background()
	r, rules, _, _, orders := newResolver()

	line := fixtures.OrderLine("line-1", "ord-1", "merch-1", 1, "100.00")
	orders.On("GetOrderLineForUpdate", ctx, mock.Anything, "line-1").Return(line, nil)

	result, err := r.FreezeOrderLine(ctx, "line-1")
	require.NoError(t, err)

	assert.True(t, result.AlreadyFrozen)
	assert.True(t, result.Line.CommissionAmount.Equal(line.CommissionAmount))
	rules.AssertNotCalled(t, "ListCandidateRules", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "FreezeCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_FreezeOrderLine_RequiresMerchant(t *testing.T) {
	ctx := context.Background()
	r, _, _, _, orders := newResolver()

	line := fixtures.OrderLine("line-1", "ord-1", "", 1, "100.00")
	line.CommissionFrozenAt = nil
	orders.On("GetOrderLineForUpdate", ctx, mock.Anything, "line-1").Return(line, nil)

	_, err := r.FreezeOrderLine(ctx, "line-1")
	assert.True(t, domain.IsValidationError(err))
}

func TestResolver_FreezeOrderLine_RejectsInconsistentSubtotal(t *testing.T) {
	ctx := context.Background()
	r, rules, _, _, orders := newResolver()

	line := fixtures.OrderLine("line-1", "ord-1", "merch-1", 2, "50.00")
	line.CommissionFrozenAt = nil
	line.Subtotal = d("90.00")
	orders.On("GetOrderLineForUpdate", ctx, mock.Anything, "line-1").Return(line, nil)

	_, err := r.FreezeOrderLine(ctx, "line-1")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
	rules.AssertNotCalled(t, "ListCandidateRules", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "FreezeCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolver_FreezeOrderLine_StorageError(t *testing.T) {
	ctx := context.Background()
	r, _, _, _, orders := newResolver()

	orders.On("GetOrderLineForUpdate", ctx, mock.Anything, "line-1").Return(nil, errors.New("timeout"))

	_, err := r.FreezeOrderLine(ctx, "line-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get order line")
}
