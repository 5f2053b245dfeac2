package ports

import (
	"context"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/shopspring/decimal"
)

// OrderRepository reads orders and order lines created upstream and writes
// the ledger bookkeeping fields on them.
type OrderRepository interface {
	GetOrder(ctx context.Context, db DBTX, id string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tx DBTX, id string, status models.OrderStatus) error

	// MarkEligible stamps settlement_eligible_at = delivered_at + window on every
	// delivered order that has not been stamped yet. Returns the number of rows updated.
	MarkEligible(ctx context.Context, tx DBTX, window time.Duration) (int64, error)

	GetOrderLine(ctx context.Context, db DBTX, id string) (*models.OrderLine, error)
	GetOrderLineForUpdate(ctx context.Context, tx DBTX, id string) (*models.OrderLine, error)
	ListOrderLines(ctx context.Context, db DBTX, orderID string) ([]*models.OrderLine, error)

	// FreezeCommission writes the resolved commission onto the line only if it was
	// never frozen. Returns false when the line already carried frozen values.
	FreezeCommission(ctx context.Context, tx DBTX, lineID string, res *models.CommissionResolution, amount decimal.Decimal, frozenAt time.Time) (bool, error)

	// RecordLineRefund adds refunded quantity and reversed commission to the line
	RecordLineRefund(ctx context.Context, tx DBTX, lineID string, quantity int, commissionReversed decimal.Decimal) error

	// GetInvoice returns the invoice for order and merchant, or nil when none was issued
	GetInvoice(ctx context.Context, db DBTX, orderID, merchantID string) (*models.Invoice, error)
}

// CatalogRepository reads products and restores stock
type CatalogRepository interface {
	GetProduct(ctx context.Context, db DBTX, id string) (*models.Product, error)
	RestoreStock(ctx context.Context, tx DBTX, productID string, quantity int) error
}

// MerchantRepository reads merchant data needed for commission resolution
type MerchantRepository interface {
	GetMerchant(ctx context.Context, db DBTX, id string) (*models.Merchant, error)

	// GetSalesVolume returns the sum of delivered order-line subtotals for the merchant
	GetSalesVolume(ctx context.Context, db DBTX, merchantID string) (decimal.Decimal, error)
}

// CommissionRuleRepository loads candidate commission rules
type CommissionRuleRepository interface {
	// ListCandidateRules returns every rule that could apply to the product:
	// product rules for productID, category rules for categoryIDs, tier rules scoped
	// to merchantID or unscoped, merchant rules for merchantID and global rules.
	// Active flag and validity window are evaluated by the caller.
	ListCandidateRules(ctx context.Context, db DBTX, productID string, categoryIDs []string, merchantID string) ([]models.CommissionRule, error)
}
