package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
)

const (
	creditNoteRefundConstraint = "credit_notes_refund_key"
	debitNoteRefundConstraint  = "merchant_debit_notes_refund_key"
)

const creditNoteColumns = `id, number, refund_id, order_id, merchant_id, invoice_id,
	subtotal, tax_amount, total, commission_reversed, issued_at`

const debitNoteColumns = `id, number, refund_id, order_id, merchant_id, settlement_id,
	recovery_amount, commission_reversed, status, issued_at`

// NoteRepository implements ports.NoteRepository
type NoteRepository struct {
	queryer
}

// NewNoteRepository creates a new credit/debit note repository
func NewNoteRepository(db ports.DBPort) *NoteRepository {
	return &NoteRepository{queryer{pool: db.GetDB()}}
}

// GetCreditNoteByRefund returns the refund's credit note, nil when none exists
func (r *NoteRepository) GetCreditNoteByRefund(ctx context.Context, db ports.DBTX, refundID string) (*models.CreditNote, error) {
	var n models.CreditNote
	err := r.conn(db).QueryRow(ctx,
		`SELECT `+creditNoteColumns+` FROM credit_notes WHERE refund_id = $1`, refundID,
	).Scan(&n.ID, &n.Number, &n.RefundID, &n.OrderID, &n.MerchantID, &n.InvoiceID,
		&n.Subtotal, &n.TaxAmount, &n.Total, &n.CommissionReversed, &n.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get credit note")
	}
	return &n, nil
}

// CreateCreditNote inserts a credit note
func (r *NoteRepository) CreateCreditNote(ctx context.Context, tx ports.DBTX, n *models.CreditNote) error {
	_, err := r.conn(tx).Exec(ctx, `
		INSERT INTO credit_notes (`+creditNoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.Number, n.RefundID, n.OrderID, n.MerchantID, n.InvoiceID,
		n.Subtotal, n.TaxAmount, n.Total, n.CommissionReversed, n.IssuedAt)
	if isUniqueViolation(err, creditNoteRefundConstraint) {
		return domain.ErrRefundAlreadyProcessed.WithDetail("refund_id", n.RefundID)
	}
	if err != nil {
		return classify(err, "insert credit note")
	}
	return nil
}

// GetDebitNoteByRefund returns the refund's debit note, nil when none exists
func (r *NoteRepository) GetDebitNoteByRefund(ctx context.Context, db ports.DBTX, refundID string) (*models.MerchantDebitNote, error) {
	n, err := scanDebitNote(r.conn(db).QueryRow(ctx,
		`SELECT `+debitNoteColumns+` FROM merchant_debit_notes WHERE refund_id = $1`, refundID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get debit note")
	}
	return n, nil
}

// CreateDebitNote inserts a debit note; a second note for the same refund is rejected
func (r *NoteRepository) CreateDebitNote(ctx context.Context, tx ports.DBTX, n *models.MerchantDebitNote) error {
	_, err := r.conn(tx).Exec(ctx, `
		INSERT INTO merchant_debit_notes (`+debitNoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.Number, n.RefundID, n.OrderID, n.MerchantID, n.SettlementID,
		n.RecoveryAmount, n.CommissionReversed, string(n.Status), n.IssuedAt)
	if isUniqueViolation(err, debitNoteRefundConstraint) {
		return domain.ErrDuplicateDebitNote.WithDetail("refund_id", n.RefundID)
	}
	if err != nil {
		return classify(err, "insert debit note")
	}
	return nil
}

// ListDebitNotes returns debit notes, newest first. Empty merchantID or status means any.
func (r *NoteRepository) ListDebitNotes(ctx context.Context, db ports.DBTX, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT `+debitNoteColumns+`
		FROM merchant_debit_notes
		WHERE ($1::text = '' OR merchant_id = $1)
		  AND ($2::text = '' OR status = $2)
		ORDER BY issued_at DESC, id
		LIMIT $3 OFFSET $4`, merchantID, string(status), limit, offset)
	if err != nil {
		return nil, classify(err, "list debit notes")
	}

	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.MerchantDebitNote, error) {
		return scanDebitNote(row)
	})
	if err != nil {
		return nil, classify(err, "scan debit notes")
	}
	return notes, nil
}

func scanDebitNote(row pgx.Row) (*models.MerchantDebitNote, error) {
	var n models.MerchantDebitNote
	err := row.Scan(&n.ID, &n.Number, &n.RefundID, &n.OrderID, &n.MerchantID, &n.SettlementID,
		&n.RecoveryAmount, &n.CommissionReversed, &n.Status, &n.IssuedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
