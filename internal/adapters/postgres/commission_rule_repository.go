package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
)

// CommissionRuleRepository implements ports.CommissionRuleRepository
type CommissionRuleRepository struct {
	queryer
}

// NewCommissionRuleRepository creates a new commission rule repository
func NewCommissionRuleRepository(db ports.DBPort) *CommissionRuleRepository {
	return &CommissionRuleRepository{queryer{pool: db.GetDB()}}
}

type ruleRow struct {
	base        models.RuleBase
	ruleType    string
	productID   pgtype.Text
	categoryID  pgtype.Text
	merchantID  pgtype.Text
	pricingType string
}

// ListCandidateRules loads every rule that could apply to the product, with tier brackets
func (r *CommissionRuleRepository) ListCandidateRules(ctx context.Context, db ports.DBTX, productID string, categoryIDs []string, merchantID string) ([]models.CommissionRule, error) {
	conn := r.conn(db)
	if categoryIDs == nil {
		categoryIDs = []string{}
	}

	rows, err := conn.Query(ctx, `
		SELECT id, rule_type, product_id, category_id, merchant_id,
		       pricing_type, rate, fixed_amount, priority, valid_from, valid_to, is_active
		FROM commission_rules
		WHERE (rule_type = 'product' AND product_id = $1)
		   OR (rule_type = 'category' AND category_id = ANY($2))
		   OR (rule_type = 'tier' AND (merchant_id IS NULL OR merchant_id = $3))
		   OR (rule_type = 'merchant' AND merchant_id = $3)
		   OR rule_type = 'global'
		ORDER BY priority, id`,
		productID, categoryIDs, merchantID)
	if err != nil {
		return nil, classify(err, "list commission rules")
	}

	ruleRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ruleRow, error) {
		var rr ruleRow
		err := row.Scan(&rr.base.ID, &rr.ruleType, &rr.productID, &rr.categoryID, &rr.merchantID,
			&rr.pricingType, &rr.base.Pricing.Rate, &rr.base.Pricing.FixedAmount, &rr.base.Priority,
			&rr.base.ValidFrom, &rr.base.ValidTo, &rr.base.IsActive)
		rr.base.Pricing.Type = models.CommissionType(rr.pricingType)
		return rr, err
	})
	if err != nil {
		return nil, classify(err, "scan commission rules")
	}

	var tierIDs []string
	for _, rr := range ruleRows {
		if rr.ruleType == "tier" {
			tierIDs = append(tierIDs, rr.base.ID)
		}
	}

	brackets, err := r.loadBrackets(ctx, conn, tierIDs)
	if err != nil {
		return nil, err
	}

	rules := make([]models.CommissionRule, 0, len(ruleRows))
	for _, rr := range ruleRows {
		switch rr.ruleType {
		case "product":
			rules = append(rules, models.ProductRule{RuleBase: rr.base, ProductID: rr.productID.String})
		case "category":
			rules = append(rules, models.CategoryRule{RuleBase: rr.base, CategoryID: rr.categoryID.String})
		case "tier":
			tier := models.TierRule{RuleBase: rr.base, Brackets: brackets[rr.base.ID]}
			if rr.merchantID.Valid {
				id := rr.merchantID.String
				tier.MerchantID = &id
			}
			rules = append(rules, tier)
		case "merchant":
			rules = append(rules, models.MerchantRule{RuleBase: rr.base, MerchantID: rr.merchantID.String})
		case "global":
			rules = append(rules, models.GlobalRule{RuleBase: rr.base})
		default:
			return nil, fmt.Errorf("commission rule %s: unknown rule type %q", rr.base.ID, rr.ruleType)
		}
	}
	return rules, nil
}

func (r *CommissionRuleRepository) loadBrackets(ctx context.Context, conn ports.DBTX, ruleIDs []string) (map[string][]models.TierBracket, error) {
	out := make(map[string][]models.TierBracket, len(ruleIDs))
	if len(ruleIDs) == 0 {
		return out, nil
	}

	rows, err := conn.Query(ctx, `
		SELECT rule_id, min_volume, max_volume, rate
		FROM commission_tier_brackets
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, min_volume`, ruleIDs)
	if err != nil {
		return nil, classify(err, "list tier brackets")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ruleID    string
			b         models.TierBracket
			maxVolume pgtype.Numeric
		)
		if err := rows.Scan(&ruleID, &b.Min, &maxVolume, &b.Rate); err != nil {
			return nil, fmt.Errorf("scan tier bracket: %w", err)
		}
		if b.Max, err = nullNumericToDecimal(maxVolume); err != nil {
			return nil, fmt.Errorf("tier bracket max for rule %s: %w", ruleID, err)
		}
		out[ruleID] = append(out[ruleID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate tier brackets")
	}
	return out, nil
}

// CreateRule stores a commission rule with its brackets. Used by seeding and tests.
func (r *CommissionRuleRepository) CreateRule(ctx context.Context, tx ports.DBTX, rule models.CommissionRule) error {
	conn := r.conn(tx)
	base := rule.Base()

	var ruleType string
	var productID, categoryID, merchantID *string
	var brackets []models.TierBracket

	switch v := rule.(type) {
	case models.ProductRule:
		ruleType, productID = "product", &v.ProductID
	case models.CategoryRule:
		ruleType, categoryID = "category", &v.CategoryID
	case models.TierRule:
		ruleType, merchantID, brackets = "tier", v.MerchantID, v.Brackets
	case models.MerchantRule:
		ruleType, merchantID = "merchant", &v.MerchantID
	case models.GlobalRule:
		ruleType = "global"
	default:
		return fmt.Errorf("unsupported commission rule %T", rule)
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO commission_rules (
			id, rule_type, product_id, category_id, merchant_id,
			pricing_type, rate, fixed_amount, priority, valid_from, valid_to, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		base.ID, ruleType, productID, categoryID, merchantID,
		string(base.Pricing.Type), base.Pricing.Rate, base.Pricing.FixedAmount, base.Priority,
		nullTime(base.ValidFrom), nullTime(base.ValidTo), base.IsActive)
	if err != nil {
		return classify(err, "create commission rule")
	}

	for _, b := range brackets {
		if _, err := conn.Exec(ctx,
			`INSERT INTO commission_tier_brackets (rule_id, min_volume, max_volume, rate) VALUES ($1, $2, $3, $4)`,
			base.ID, b.Min, b.Max, b.Rate,
		); err != nil {
			return classify(err, "create tier bracket")
		}
	}
	return nil
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
