package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
)

const settledLineConstraint = "settlement_lines_order_merchant_key"

// eligibleLineFilter selects order lines that may be settled up to $cutoff.
// It expects aliases ol (order_lines) and o (orders).
const eligibleLineFilter = `
	o.status = 'delivered'
	AND o.payment_status = 'paid'
	AND o.settlement_eligible_at IS NOT NULL
	AND ol.merchant_id IS NOT NULL
	AND NOT EXISTS (
		SELECT 1 FROM settlement_lines sl
		WHERE sl.order_id = ol.order_id AND sl.merchant_id = ol.merchant_id
	)`

const settlementColumns = `id, merchant_id, payout_date, total_order_amount, subtotal, tax_amount,
	commission_amount, commission_tax, merchant_payout, order_count, line_count,
	status, transaction_reference, paid_at, created_at, updated_at`

// SettlementRepository implements ports.SettlementRepository
type SettlementRepository struct {
	queryer
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db ports.DBPort) *SettlementRepository {
	return &SettlementRepository{queryer{pool: db.GetDB()}}
}

// LockMerchant takes a transaction-scoped advisory lock keyed by merchant id
func (r *SettlementRepository) LockMerchant(ctx context.Context, tx ports.DBTX, merchantID string) error {
	if _, err := r.conn(tx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('settlement:' || $1, 0))`, merchantID,
	); err != nil {
		return classify(err, "lock merchant")
	}
	return nil
}

// ListEligibleMerchants returns merchants with at least one eligible, unsettled line
func (r *SettlementRepository) ListEligibleMerchants(ctx context.Context, db ports.DBTX, cutoff time.Time) ([]string, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT DISTINCT ol.merchant_id
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.settlement_eligible_at <= $1 AND `+eligibleLineFilter+`
		ORDER BY ol.merchant_id`, cutoff)
	if err != nil {
		return nil, classify(err, "list eligible merchants")
	}

	merchants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err, "scan eligible merchants")
	}
	return merchants, nil
}

// ListEligibleLines returns the merchant's eligible, unsettled lines net of
// refunds already processed against them
func (r *SettlementRepository) ListEligibleLines(ctx context.Context, db ports.DBTX, merchantID string, cutoff time.Time) ([]models.EligibleLine, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT ol.id, ol.order_id, ol.merchant_id,
		       ol.unit_price * (ol.quantity - ol.refunded_quantity),
		       ol.commission_amount - ol.commission_reversed
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE ol.merchant_id = $1 AND o.settlement_eligible_at <= $2 AND `+eligibleLineFilter+`
		ORDER BY ol.order_id, ol.id`, merchantID, cutoff)
	if err != nil {
		return nil, classify(err, "list eligible lines")
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EligibleLine, error) {
		var l models.EligibleLine
		err := row.Scan(&l.OrderLineID, &l.OrderID, &l.MerchantID, &l.Subtotal, &l.CommissionAmount)
		return l, err
	})
	if err != nil {
		return nil, classify(err, "scan eligible lines")
	}
	return lines, nil
}

// Create inserts a settlement and its lines
func (r *SettlementRepository) Create(ctx context.Context, tx ports.DBTX, s *models.Settlement) error {
	conn := r.conn(tx)

	_, err := conn.Exec(ctx, `
		INSERT INTO settlements (
			id, merchant_id, payout_date, total_order_amount, subtotal, tax_amount,
			commission_amount, commission_tax, merchant_payout, order_count, line_count,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.MerchantID, dateParam(s.PayoutDate), s.TotalOrderAmount, s.Subtotal, s.TaxAmount,
		s.CommissionAmount, s.CommissionTax, s.MerchantPayout, s.OrderCount, s.LineCount,
		string(s.Status), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return classify(err, "insert settlement")
	}

	for _, l := range s.Lines {
		_, err := conn.Exec(ctx, `
			INSERT INTO settlement_lines (
				id, settlement_id, order_id, merchant_id, order_total, commission_amount, line_count, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			l.ID, s.ID, l.OrderID, l.MerchantID, l.OrderTotal, l.CommissionAmount, l.LineCount, l.CreatedAt)
		if isUniqueViolation(err, settledLineConstraint) {
			return domain.ErrAlreadySettled.
				WithDetail("order_id", l.OrderID).
				WithDetail("merchant_id", l.MerchantID)
		}
		if err != nil {
			return classify(err, "insert settlement line")
		}
	}
	return nil
}

// GetByID retrieves a settlement with its lines
func (r *SettlementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Settlement, error) {
	return r.get(ctx, r.conn(db), `SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a settlement with its lines and locks its row
func (r *SettlementRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.Settlement, error) {
	return r.get(ctx, r.conn(tx), `SELECT `+settlementColumns+` FROM settlements WHERE id = $1 FOR UPDATE`, id)
}

func (r *SettlementRepository) get(ctx context.Context, conn ports.DBTX, query, id string) (*models.Settlement, error) {
	s, err := scanSettlement(conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrSettlementNotFound, id, "get settlement")
	}

	rows, err := conn.Query(ctx, `
		SELECT id, settlement_id, order_id, merchant_id, order_total, commission_amount, line_count, created_at
		FROM settlement_lines
		WHERE settlement_id = $1
		ORDER BY order_id`, id)
	if err != nil {
		return nil, classify(err, "list settlement lines")
	}

	s.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SettlementLine, error) {
		var l models.SettlementLine
		err := row.Scan(&l.ID, &l.SettlementID, &l.OrderID, &l.MerchantID,
			&l.OrderTotal, &l.CommissionAmount, &l.LineCount, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, classify(err, "scan settlement lines")
	}
	return s, nil
}

// ListByMerchant returns a merchant's settlements without lines, newest payout date first
func (r *SettlementRepository) ListByMerchant(ctx context.Context, db ports.DBTX, merchantID string, limit, offset int32) ([]*models.Settlement, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT `+settlementColumns+`
		FROM settlements
		WHERE merchant_id = $1
		ORDER BY payout_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, merchantID, limit, offset)
	if err != nil {
		return nil, classify(err, "list settlements")
	}

	settlements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Settlement, error) {
		return scanSettlement(row)
	})
	if err != nil {
		return nil, classify(err, "scan settlements")
	}
	return settlements, nil
}

// MarkPaid moves a pending settlement to paid
func (r *SettlementRepository) MarkPaid(ctx context.Context, tx ports.DBTX, id string, transactionRef string, paidAt time.Time) error {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE settlements
		SET status = 'paid', transaction_reference = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, transactionRef, paidAt)
	if err != nil {
		return classify(err, "mark settlement paid")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSettlementAlreadyPaid.WithDetail("settlement_id", id)
	}
	return nil
}

// IsOrderSettled reports whether a settlement line exists for order and merchant
func (r *SettlementRepository) IsOrderSettled(ctx context.Context, db ports.DBTX, orderID, merchantID string) (bool, error) {
	var settled bool
	err := r.conn(db).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settlement_lines WHERE order_id = $1 AND merchant_id = $2)`,
		orderID, merchantID,
	).Scan(&settled)
	if err != nil {
		return false, classify(err, "check order settled")
	}
	return settled, nil
}

// LatestSettlementIDForOrder returns the newest settlement containing the order, nil when none
func (r *SettlementRepository) LatestSettlementIDForOrder(ctx context.Context, db ports.DBTX, orderID, merchantID string) (*string, error) {
	var id string
	err := r.conn(db).QueryRow(ctx, `
		SELECT s.id
		FROM settlements s
		JOIN settlement_lines sl ON sl.settlement_id = s.id
		WHERE sl.order_id = $1 AND sl.merchant_id = $2
		ORDER BY s.payout_date DESC, s.created_at DESC
		LIMIT 1`, orderID, merchantID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find settlement for order")
	}
	return &id, nil
}

func scanSettlement(row pgx.Row) (*models.Settlement, error) {
	var s models.Settlement
	err := row.Scan(&s.ID, &s.MerchantID, &s.PayoutDate, &s.TotalOrderAmount, &s.Subtotal, &s.TaxAmount,
		&s.CommissionAmount, &s.CommissionTax, &s.MerchantPayout, &s.OrderCount, &s.LineCount,
		&s.Status, &s.TransactionReference, &s.PaidAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
