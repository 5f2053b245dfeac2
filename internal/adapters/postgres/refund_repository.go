package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
)

const refundColumns = `id, order_id, merchant_id, type, reason_category, notes,
	subtotal, tax_amount, total, commission_to_reverse,
	is_post_settlement, merchant_recovery_amount,
	status, approved_by, approved_at, processed_at, created_at, updated_at`

// RefundRepository implements ports.RefundRepository
type RefundRepository struct {
	queryer
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db ports.DBPort) *RefundRepository {
	return &RefundRepository{queryer{pool: db.GetDB()}}
}

// Create inserts a refund and its lines
func (r *RefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *models.Refund) error {
	conn := r.conn(tx)

	_, err := conn.Exec(ctx, `
		INSERT INTO refunds (
			id, order_id, merchant_id, type, reason_category, notes,
			subtotal, tax_amount, total, commission_to_reverse,
			is_post_settlement, merchant_recovery_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		refund.ID, refund.OrderID, refund.MerchantID, string(refund.Type),
		nullText(refund.ReasonCategory), nullText(refund.Notes),
		refund.Subtotal, refund.TaxAmount, refund.Total, refund.CommissionToReverse,
		refund.IsPostSettlement, refund.MerchantRecoveryAmount, string(refund.Status),
		refund.CreatedAt, refund.UpdatedAt)
	if err != nil {
		return classify(err, "insert refund")
	}

	for _, l := range refund.Lines {
		if _, err := conn.Exec(ctx, `
			INSERT INTO refund_lines (
				id, refund_id, order_line_id, product_id, quantity, reason,
				subtotal, tax_amount, total, commission_reversed, stock_restored, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			l.ID, refund.ID, l.OrderLineID, l.ProductID, l.Quantity, nullText(l.Reason),
			l.Subtotal, l.TaxAmount, l.Total, l.CommissionReversed, l.StockRestored, l.CreatedAt,
		); err != nil {
			return classify(err, "insert refund line")
		}
	}
	return nil
}

// GetByID retrieves a refund with its lines
func (r *RefundRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Refund, error) {
	return r.get(ctx, r.conn(db), `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a refund with its lines and locks the refund row
func (r *RefundRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.Refund, error) {
	return r.get(ctx, r.conn(tx), `SELECT `+refundColumns+` FROM refunds WHERE id = $1 FOR UPDATE`, id)
}

func (r *RefundRepository) get(ctx context.Context, conn ports.DBTX, query, id string) (*models.Refund, error) {
	var (
		refund         models.Refund
		reasonCategory pgtype.Text
		notes          pgtype.Text
	)
	err := conn.QueryRow(ctx, query, id).Scan(
		&refund.ID, &refund.OrderID, &refund.MerchantID, &refund.Type, &reasonCategory, &notes,
		&refund.Subtotal, &refund.TaxAmount, &refund.Total, &refund.CommissionToReverse,
		&refund.IsPostSettlement, &refund.MerchantRecoveryAmount,
		&refund.Status, &refund.ApprovedBy, &refund.ApprovedAt, &refund.ProcessedAt,
		&refund.CreatedAt, &refund.UpdatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrRefundNotFound, id, "get refund")
	}
	refund.ReasonCategory = reasonCategory.String
	refund.Notes = notes.String

	rows, err := conn.Query(ctx, `
		SELECT id, refund_id, order_line_id, product_id, quantity, reason,
		       subtotal, tax_amount, total, commission_reversed, stock_restored, created_at
		FROM refund_lines
		WHERE refund_id = $1
		ORDER BY order_line_id`, id)
	if err != nil {
		return nil, classify(err, "list refund lines")
	}

	refund.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RefundLine, error) {
		var (
			l      models.RefundLine
			reason pgtype.Text
		)
		err := row.Scan(&l.ID, &l.RefundID, &l.OrderLineID, &l.ProductID, &l.Quantity, &reason,
			&l.Subtotal, &l.TaxAmount, &l.Total, &l.CommissionReversed, &l.StockRestored, &l.CreatedAt)
		l.Reason = reason.String
		return l, err
	})
	if err != nil {
		return nil, classify(err, "scan refund lines")
	}
	return &refund, nil
}

// Approve moves a pending refund to approved
func (r *RefundRepository) Approve(ctx context.Context, tx ports.DBTX, id string, approver string, at time.Time) error {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE refunds
		SET status = 'approved', approved_by = $2, approved_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, approver, at)
	if err != nil {
		return classify(err, "approve refund")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundTransition.WithDetail("refund_id", id)
	}
	return nil
}

// MarkProcessed moves an approved refund to processed
func (r *RefundRepository) MarkProcessed(ctx context.Context, tx ports.DBTX, id string, at time.Time) error {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE refunds
		SET status = 'processed', processed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'approved'`, id, at)
	if err != nil {
		return classify(err, "mark refund processed")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundTransition.WithDetail("refund_id", id)
	}
	return nil
}

// UpdateCommissionReversal rewrites the reversal figures computed at processing time
func (r *RefundRepository) UpdateCommissionReversal(ctx context.Context, tx ports.DBTX, refund *models.Refund) error {
	conn := r.conn(tx)

	for _, l := range refund.Lines {
		if _, err := conn.Exec(ctx,
			`UPDATE refund_lines SET commission_reversed = $2 WHERE id = $1`,
			l.ID, l.CommissionReversed,
		); err != nil {
			return classify(err, "update refund line reversal")
		}
	}

	tag, err := conn.Exec(ctx, `
		UPDATE refunds
		SET commission_to_reverse = $2, merchant_recovery_amount = $3, updated_at = NOW()
		WHERE id = $1`, refund.ID, refund.CommissionToReverse, refund.MerchantRecoveryAmount)
	if err != nil {
		return classify(err, "update refund reversal")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundNotFound.WithDetail("refund_id", refund.ID)
	}
	return nil
}

// MarkStockRestored flips stock_restored once; reports whether this call flipped it
func (r *RefundRepository) MarkStockRestored(ctx context.Context, tx ports.DBTX, refundLineID string) (bool, error) {
	tag, err := r.conn(tx).Exec(ctx,
		`UPDATE refund_lines SET stock_restored = true WHERE id = $1 AND stock_restored = false`,
		refundLineID)
	if err != nil {
		return false, classify(err, "mark stock restored")
	}
	return tag.RowsAffected() == 1, nil
}
