package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, status, payment_status, grand_total, platform_fee, gateway_fee,
	delivered_at, settlement_eligible_at, created_at, updated_at`

const orderLineColumns = `id, order_id, product_id, merchant_id, quantity, unit_price, subtotal,
	commission_rate, commission_type, commission_fixed_amount, commission_amount,
	commission_source, commission_rule_id, commission_frozen_at,
	refunded_quantity, commission_reversed, created_at`

// OrderRepository implements ports.OrderRepository
type OrderRepository struct {
	queryer
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db ports.DBPort) *OrderRepository {
	return &OrderRepository{queryer{pool: db.GetDB()}}
}

// GetOrder retrieves an order by its ID
func (r *OrderRepository) GetOrder(ctx context.Context, db ports.DBTX, id string) (*models.Order, error) {
	row := r.conn(db).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	var o models.Order
	err := row.Scan(&o.ID, &o.Status, &o.PaymentStatus, &o.GrandTotal, &o.PlatformFee, &o.GatewayFee,
		&o.DeliveredAt, &o.SettlementEligibleAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrOrderNotFound, id, "get order")
	}
	return &o, nil
}

// UpdateOrderStatus sets the order status
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, tx ports.DBTX, id string, status models.OrderStatus) error {
	tag, err := r.conn(tx).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return classify(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound.WithDetail("id", id)
	}
	return nil
}

// MarkEligible stamps settlement_eligible_at on delivered orders that have none yet
func (r *OrderRepository) MarkEligible(ctx context.Context, tx ports.DBTX, window time.Duration) (int64, error) {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE orders
		SET settlement_eligible_at = delivered_at + ($1::bigint * INTERVAL '1 second'),
		    updated_at = NOW()
		WHERE status = 'delivered'
		  AND delivered_at IS NOT NULL
		  AND settlement_eligible_at IS NULL`,
		int64(window/time.Second))
	if err != nil {
		return 0, classify(err, "mark orders eligible")
	}
	return tag.RowsAffected(), nil
}

// GetOrderLine retrieves an order line by its ID
func (r *OrderRepository) GetOrderLine(ctx context.Context, db ports.DBTX, id string) (*models.OrderLine, error) {
	row := r.conn(db).QueryRow(ctx, `SELECT `+orderLineColumns+` FROM order_lines WHERE id = $1`, id)
	line, err := scanOrderLine(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOrderLineNotFound, id, "get order line")
	}
	return line, nil
}

// GetOrderLineForUpdate retrieves an order line and locks its row
func (r *OrderRepository) GetOrderLineForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.OrderLine, error) {
	row := r.conn(tx).QueryRow(ctx, `SELECT `+orderLineColumns+` FROM order_lines WHERE id = $1 FOR UPDATE`, id)
	line, err := scanOrderLine(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOrderLineNotFound, id, "get order line for update")
	}
	return line, nil
}

// ListOrderLines returns the lines of an order
func (r *OrderRepository) ListOrderLines(ctx context.Context, db ports.DBTX, orderID string) ([]*models.OrderLine, error) {
	rows, err := r.conn(db).Query(ctx,
		`SELECT `+orderLineColumns+` FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, classify(err, "list order lines")
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.OrderLine, error) {
		return scanOrderLine(row)
	})
	if err != nil {
		return nil, classify(err, "scan order lines")
	}
	return lines, nil
}

// FreezeCommission writes the commission onto a line that was never frozen
func (r *OrderRepository) FreezeCommission(ctx context.Context, tx ports.DBTX, lineID string, res *models.CommissionResolution, amount decimal.Decimal, frozenAt time.Time) (bool, error) {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE order_lines
		SET commission_rate = $2,
		    commission_type = $3,
		    commission_fixed_amount = $4,
		    commission_amount = $5,
		    commission_source = $6,
		    commission_rule_id = $7,
		    commission_frozen_at = $8
		WHERE id = $1 AND commission_frozen_at IS NULL`,
		lineID, res.Rate, string(res.Type), res.FixedAmount, amount, string(res.Source), res.RuleID, frozenAt)
	if err != nil {
		return false, classify(err, "freeze commission")
	}
	return tag.RowsAffected() == 1, nil
}

// RecordLineRefund books refunded quantity and reversed commission on the line
func (r *OrderRepository) RecordLineRefund(ctx context.Context, tx ports.DBTX, lineID string, quantity int, commissionReversed decimal.Decimal) error {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE order_lines
		SET refunded_quantity = refunded_quantity + $2,
		    commission_reversed = commission_reversed + $3
		WHERE id = $1 AND refunded_quantity + $2 <= quantity`,
		lineID, quantity, commissionReversed)
	if err != nil {
		return classify(err, "record line refund")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidQuantity.
			WithDetail("order_line_id", lineID).
			WithDetail("requested", quantity)
	}
	return nil
}

// GetInvoice returns the invoice for the order and merchant, nil when none exists
func (r *OrderRepository) GetInvoice(ctx context.Context, db ports.DBTX, orderID, merchantID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.conn(db).QueryRow(ctx,
		`SELECT id, order_id, merchant_id, number FROM invoices WHERE order_id = $1 AND merchant_id = $2`,
		orderID, merchantID,
	).Scan(&inv.ID, &inv.OrderID, &inv.MerchantID, &inv.Number)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get invoice")
	}
	return &inv, nil
}

func scanOrderLine(row pgx.Row) (*models.OrderLine, error) {
	var (
		l                models.OrderLine
		merchantID       pgtype.Text
		commissionType   pgtype.Text
		commissionSource pgtype.Text
	)
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &merchantID, &l.Quantity, &l.UnitPrice, &l.Subtotal,
		&l.CommissionRate, &commissionType, &l.CommissionFixedAmount, &l.CommissionAmount,
		&commissionSource, &l.CommissionRuleID, &l.CommissionFrozenAt,
		&l.RefundedQuantity, &l.CommissionReversed, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.MerchantID = merchantID.String
	l.CommissionType = models.CommissionType(commissionType.String)
	l.CommissionSource = models.CommissionSource(commissionSource.String)
	return &l, nil
}
