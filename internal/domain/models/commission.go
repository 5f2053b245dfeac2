package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType is how a rule turns a subtotal into a commission amount
type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
	CommissionHybrid     CommissionType = "hybrid"
)

// CommissionSource records which waterfall level produced a commission
type CommissionSource string

const (
	SourceProductRule     CommissionSource = "product_rule"
	SourceCategoryRule    CommissionSource = "category_rule"
	SourceTierRule        CommissionSource = "tier_rule"
	SourceMerchantRule    CommissionSource = "merchant_rule"
	SourceGlobalRule      CommissionSource = "global_rule"
	SourceMerchantDefault CommissionSource = "merchant_default"
)

// RuleLevel orders the waterfall; lower levels win
type RuleLevel int

const (
	LevelProduct RuleLevel = iota + 1
	LevelCategory
	LevelTier
	LevelMerchant
	LevelGlobal
)

// Pricing is the rate part shared by every rule variant.
// Rate is a percentage for percentage/hybrid and an absolute amount for fixed.
type Pricing struct {
	Type        CommissionType
	Rate        decimal.Decimal
	FixedAmount decimal.Decimal // hybrid only
}

// RuleBase carries the fields common to all commission rules
type RuleBase struct {
	ID        string
	Pricing   Pricing
	Priority  int
	ValidFrom *time.Time
	ValidTo   *time.Time // exclusive
	IsActive  bool
}

// Base returns the common fields
func (b RuleBase) Base() RuleBase { return b }

// ActiveAt reports whether the rule is active and inside its validity window
func (b RuleBase) ActiveAt(at time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.ValidFrom != nil && at.Before(*b.ValidFrom) {
		return false
	}
	if b.ValidTo != nil && !at.Before(*b.ValidTo) {
		return false
	}
	return true
}

// CommissionRule is a tagged union over the rule variants below.
type CommissionRule interface {
	Level() RuleLevel
	Base() RuleBase
}

// ProductRule applies to one exact product
type ProductRule struct {
	RuleBase
	ProductID string
}

// CategoryRule applies to every product in a category
type CategoryRule struct {
	RuleBase
	CategoryID string
}

// TierBracket is a [Min, Max) sales-volume band. Nil Max means unbounded.
type TierBracket struct {
	Min  decimal.Decimal
	Max  *decimal.Decimal
	Rate decimal.Decimal
}

// Contains reports whether volume falls inside the bracket
func (b TierBracket) Contains(volume decimal.Decimal) bool {
	if volume.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || volume.LessThan(*b.Max)
}

// TierRule picks a rate by merchant sales volume. MerchantID nil applies to all merchants.
type TierRule struct {
	RuleBase
	MerchantID *string
	Brackets   []TierBracket // ordered by Min
}

// MerchantRule applies to every product of one merchant
type MerchantRule struct {
	RuleBase
	MerchantID string
}

// GlobalRule applies to everything
type GlobalRule struct {
	RuleBase
}

func (ProductRule) Level() RuleLevel  { return LevelProduct }
func (CategoryRule) Level() RuleLevel { return LevelCategory }
func (TierRule) Level() RuleLevel     { return LevelTier }
func (MerchantRule) Level() RuleLevel { return LevelMerchant }
func (GlobalRule) Level() RuleLevel   { return LevelGlobal }

// CommissionResolution is the output of the resolver, frozen onto an order line
type CommissionResolution struct {
	Rate        decimal.Decimal
	Type        CommissionType
	FixedAmount decimal.Decimal
	Source      CommissionSource
	RuleID      *string
}
