package fixtures

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/shopspring/decimal"
)

// OrderTime is the default creation time of fixture orders and lines
var OrderTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// Rule returns an active percentage rule base with no validity window
func Rule(id, rate string, priority int) models.RuleBase {
	return models.RuleBase{
		ID: id,
		Pricing: models.Pricing{
			Type: models.CommissionPercentage,
			Rate: decimal.RequireFromString(rate),
		},
		Priority: priority,
		IsActive: true,
	}
}

// Brackets parses "min:max:rate" entries. An empty max is unbounded.
func Brackets(entries ...string) []models.TierBracket {
	out := make([]models.TierBracket, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		b := models.TierBracket{
			Min:  decimal.RequireFromString(parts[0]),
			Rate: decimal.RequireFromString(parts[2]),
		}
		if parts[1] != "" {
			b.Max = DecimalPtr(parts[1])
		}
		out = append(out, b)
	}
	return out
}

// DeliveredOrder returns a paid, delivered order that became eligible on eligibleAt
func DeliveredOrder(id, grandTotal string, eligibleAt time.Time) *models.Order {
	delivered := eligibleAt.AddDate(0, 0, -15)
	return &models.Order{
		ID:                   id,
		Status:               models.OrderDelivered,
		PaymentStatus:        models.PaymentPaid,
		GrandTotal:           decimal.RequireFromString(grandTotal),
		DeliveredAt:          &delivered,
		SettlementEligibleAt: &eligibleAt,
		CreatedAt:            OrderTime,
		UpdatedAt:            OrderTime,
	}
}

// OrderLine returns a line with a frozen 10% commission
func OrderLine(id, orderID, merchantID string, quantity int, unitPrice string) *models.OrderLine {
	price := decimal.RequireFromString(unitPrice)
	subtotal := price.Mul(decimal.NewFromInt(int64(quantity)))
	frozenAt := OrderTime
	return &models.OrderLine{
		ID:                 id,
		OrderID:            orderID,
		ProductID:          "prod-" + id,
		MerchantID:         merchantID,
		Quantity:           quantity,
		UnitPrice:          price,
		Subtotal:           subtotal,
		CommissionRate:     decimal.NewFromInt(10),
		CommissionType:     models.CommissionPercentage,
		CommissionAmount:   subtotal.Mul(decimal.NewFromInt(10)).Div(decimal.NewFromInt(100)).Round(2),
		CommissionSource:   models.SourceGlobalRule,
		CommissionFrozenAt: &frozenAt,
		CreatedAt:          OrderTime,
	}
}

// EligibleLine builds an eligible line for settlement tests
func EligibleLine(orderID, merchantID, subtotal, commission string) models.EligibleLine {
	return models.EligibleLine{
		OrderLineID:      uuid.New().String(),
		OrderID:          orderID,
		MerchantID:       merchantID,
		Subtotal:         decimal.RequireFromString(subtotal),
		CommissionAmount: decimal.RequireFromString(commission),
	}
}

// RefundBuilder provides fluent API for building test refunds.
type RefundBuilder struct {
	refund *models.Refund
}

// NewRefund creates a pending partial refund builder
func NewRefund(orderID, merchantID string) *RefundBuilder {
	return &RefundBuilder{
		refund: &models.Refund{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			MerchantID: merchantID,
			Type:       models.RefundPartial,
			Status:     models.RefundPending,
			Subtotal:   decimal.Zero,
			TaxAmount:  decimal.Zero,
			Total:      decimal.Zero,
			CreatedAt:  OrderTime,
			UpdatedAt:  OrderTime,
		},
	}
}

func (b *RefundBuilder) WithID(id string) *RefundBuilder {
	b.refund.ID = id
	return b
}

func (b *RefundBuilder) WithType(t models.RefundType) *RefundBuilder {
	b.refund.Type = t
	return b
}

func (b *RefundBuilder) WithStatus(s models.RefundStatus) *RefundBuilder {
	b.refund.Status = s
	return b
}

// WithAmounts sets tax-exclusive subtotal, tax, and commission to reverse; total is their sum
func (b *RefundBuilder) WithAmounts(subtotal, taxAmount, commission string) *RefundBuilder {
	b.refund.Subtotal = decimal.RequireFromString(subtotal)
	b.refund.TaxAmount = decimal.RequireFromString(taxAmount)
	b.refund.Total = b.refund.Subtotal.Add(b.refund.TaxAmount)
	b.refund.CommissionToReverse = decimal.RequireFromString(commission)
	return b
}

// PostSettlement marks the refund as created after settlement with the given recovery
func (b *RefundBuilder) PostSettlement(recovery string) *RefundBuilder {
	b.refund.IsPostSettlement = true
	b.refund.MerchantRecoveryAmount = decimal.RequireFromString(recovery)
	return b
}

func (b *RefundBuilder) WithLine(line models.RefundLine) *RefundBuilder {
	line.RefundID = b.refund.ID
	b.refund.Lines = append(b.refund.Lines, line)
	return b
}

func (b *RefundBuilder) Build() *models.Refund {
	return b.refund
}
