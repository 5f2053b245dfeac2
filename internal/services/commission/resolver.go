// Package commission resolves and freezes the platform commission on order lines.
package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolver walks the commission waterfall for a product and merchant
type Resolver struct {
	db        ports.DBPort
	rules     ports.CommissionRuleRepository
	catalog   ports.CatalogRepository
	merchants ports.MerchantRepository
	orders    ports.OrderRepository
	logger    *zap.Logger
}

// NewResolver creates a new commission resolver
func NewResolver(
	db ports.DBPort,
	rules ports.CommissionRuleRepository,
	catalog ports.CatalogRepository,
	merchants ports.MerchantRepository,
	orders ports.OrderRepository,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		db:        db,
		rules:     rules,
		catalog:   catalog,
		merchants: merchants,
		orders:    orders,
		logger:    logger,
	}
}

// Target identifies what a commission is resolved for
type Target struct {
	ProductID   string
	MerchantID  string
	CategoryIDs []string
}

// Resolve returns the commission that applies to productID sold by merchantID at the given instant
func (r *Resolver) Resolve(ctx context.Context, productID, merchantID string, at time.Time) (*models.CommissionResolution, error) {
	var res *models.CommissionResolution

	err := r.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		res, err = r.resolve(ctx, tx, productID, merchantID, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, db ports.DBTX, productID, merchantID string, at time.Time) (*models.CommissionResolution, error) {
	product, err := r.catalog.GetProduct(ctx, db, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}

	target := Target{ProductID: productID, MerchantID: merchantID, CategoryIDs: product.CategoryIDs}

	candidates, err := r.rules.ListCandidateRules(ctx, db, productID, product.CategoryIDs, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list commission rules: %w", err)
	}

	volume := func() (decimal.Decimal, error) {
		return r.merchants.GetSalesVolume(ctx, db, merchantID)
	}

	res, err := Waterfall(candidates, target, at, volume)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	// Nothing matched: fall back to the merchant's default percentage
	merchant, err := r.merchants.GetMerchant(ctx, db, merchantID)
	if err != nil {
		return nil, fmt.Errorf("get merchant %s: %w", merchantID, err)
	}
	return &models.CommissionResolution{
		Rate:   merchant.DefaultCommissionPercent,
		Type:   models.CommissionPercentage,
		Source: models.SourceMerchantDefault,
	}, nil
}

// Waterfall picks the first level with a matching active rule. It returns nil
// when no rule matches. volume is only called when a tier rule is in play.
func Waterfall(
	candidates []models.CommissionRule,
	target Target,
	at time.Time,
	volume func() (decimal.Decimal, error),
) (*models.CommissionResolution, error) {
	byLevel := make(map[models.RuleLevel][]models.CommissionRule)
	for _, rule := range candidates {
		if rule.Base().ActiveAt(at) && matches(rule, target) {
			byLevel[rule.Level()] = append(byLevel[rule.Level()], rule)
		}
	}

	for level := models.LevelProduct; level <= models.LevelGlobal; level++ {
		rules := byLevel[level]
		if len(rules) == 0 {
			continue
		}
		sortRules(rules)

		if level != models.LevelTier {
			return resolutionFor(rules[0], rules[0].Base().Pricing.Rate), nil
		}

		v, err := volume()
		if err != nil {
			return nil, fmt.Errorf("get merchant sales volume: %w", err)
		}
		for _, rule := range rules {
			tier := rule.(models.TierRule)
			for _, bracket := range tier.Brackets {
				if bracket.Contains(v) {
					return resolutionFor(rule, bracket.Rate), nil
				}
			}
		}
		// Volume fell outside every bracket, continue down the waterfall
	}

	return nil, nil
}

func matches(rule models.CommissionRule, t Target) bool {
	switch r := rule.(type) {
	case models.ProductRule:
		return r.ProductID == t.ProductID
	case models.CategoryRule:
		for _, id := range t.CategoryIDs {
			if id == r.CategoryID {
				return true
			}
		}
		return false
	case models.TierRule:
		return r.MerchantID == nil || *r.MerchantID == t.MerchantID
	case models.MerchantRule:
		return r.MerchantID == t.MerchantID
	case models.GlobalRule:
		return true
	}
	return false
}

// sortRules orders rules inside one level: merchant-scoped tiers first,
// then lowest priority number, then id.
func sortRules(rules []models.CommissionRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		si, sj := scoped(rules[i]), scoped(rules[j])
		if si != sj {
			return si
		}
		bi, bj := rules[i].Base(), rules[j].Base()
		if bi.Priority != bj.Priority {
			return bi.Priority < bj.Priority
		}
		return bi.ID < bj.ID
	})
}

func scoped(rule models.CommissionRule) bool {
	tier, ok := rule.(models.TierRule)
	return ok && tier.MerchantID != nil
}

func resolutionFor(rule models.CommissionRule, rate decimal.Decimal) *models.CommissionResolution {
	base := rule.Base()
	id := base.ID
	return &models.CommissionResolution{
		Rate:        rate,
		Type:        base.Pricing.Type,
		FixedAmount: base.Pricing.FixedAmount,
		Source:      sourceFor(rule.Level()),
		RuleID:      &id,
	}
}

func sourceFor(level models.RuleLevel) models.CommissionSource {
	switch level {
	case models.LevelProduct:
		return models.SourceProductRule
	case models.LevelCategory:
		return models.SourceCategoryRule
	case models.LevelTier:
		return models.SourceTierRule
	case models.LevelMerchant:
		return models.SourceMerchantRule
	default:
		return models.SourceGlobalRule
	}
}

// CalculateAmount turns a resolution into a commission amount for the subtotal.
// The result never exceeds the subtotal.
func CalculateAmount(subtotal decimal.Decimal, res *models.CommissionResolution) (decimal.Decimal, error) {
	if subtotal.IsNegative() {
		return decimal.Zero, domain.ErrNegativeAmount.WithDetail("subtotal", subtotal.String())
	}

	var amount decimal.Decimal
	switch res.Type {
	case models.CommissionPercentage:
		amount = tax.ApplyRate(subtotal, res.Rate)
	case models.CommissionFixed:
		amount = res.Rate.Round(2)
	case models.CommissionHybrid:
		amount = tax.ApplyRate(subtotal, res.Rate).Add(res.FixedAmount).Round(2)
	default:
		return decimal.Zero, domain.ErrDegenerateAmount.WithDetail("commission_type", string(res.Type))
	}

	if amount.IsNegative() {
		return decimal.Zero, domain.ErrNegativeAmount.WithDetail("commission", amount.String())
	}
	return decimal.Min(amount, subtotal), nil
}

// FreezeResult is the outcome of FreezeOrderLine
type FreezeResult struct {
	Line          *models.OrderLine
	AlreadyFrozen bool
}

// FreezeOrderLine resolves the commission for an order line at its order time and
// writes it onto the line exactly once. Later calls return the frozen values.
func (r *Resolver) FreezeOrderLine(ctx context.Context, lineID string) (*FreezeResult, error) {
	result := &FreezeResult{}

	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		line, err := r.orders.GetOrderLineForUpdate(ctx, tx, lineID)
		if err != nil {
			return fmt.Errorf("get order line: %w", err)
		}
		result.Line = line

		if line.IsCommissionFrozen() {
			result.AlreadyFrozen = true
			return nil
		}
		if line.MerchantID == "" {
			return domain.ErrValidationMissingField.WithDetail("field", "merchant_id")
		}
		if !line.Subtotal.Equal(line.ComputedSubtotal()) {
			return domain.ErrValidationFailed.
				WithDetail("order_line_id", lineID).
				WithDetail("subtotal", line.Subtotal.String()).
				WithDetail("quantity_x_unit_price", line.ComputedSubtotal().String())
		}

		res, err := r.resolve(ctx, tx, line.ProductID, line.MerchantID, line.CreatedAt)
		if err != nil {
			return err
		}
		amount, err := CalculateAmount(line.Subtotal, res)
		if err != nil {
			return err
		}

		frozenAt := timeutil.Now()
		updated, err := r.orders.FreezeCommission(ctx, tx, lineID, res, amount, frozenAt)
		if err != nil {
			return fmt.Errorf("freeze commission: %w", err)
		}
		if !updated {
			// Frozen concurrently; report what is stored
			stored, err := r.orders.GetOrderLine(ctx, tx, lineID)
			if err != nil {
				return fmt.Errorf("reload order line: %w", err)
			}
			result.Line = stored
			result.AlreadyFrozen = true
			return nil
		}

		line.CommissionRate = res.Rate
		line.CommissionType = res.Type
		line.CommissionFixedAmount = res.FixedAmount
		line.CommissionAmount = amount
		line.CommissionSource = res.Source
		line.CommissionRuleID = res.RuleID
		line.CommissionFrozenAt = &frozenAt
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to freeze commission",
			zap.String("order_line_id", lineID),
			zap.Error(err),
		)
		return nil, err
	}

	if !result.AlreadyFrozen {
		observability.RecordCommissionFreeze(string(result.Line.CommissionSource))
		r.logger.Info("Commission frozen",
			zap.String("order_line_id", lineID),
			zap.String("source", string(result.Line.CommissionSource)),
			zap.String("amount", result.Line.CommissionAmount.String()),
		)
	}

	return result, nil
}
