package ports

import (
	"context"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
)

// RefundRepository persists refunds and their lines
type RefundRepository interface {
	Create(ctx context.Context, tx DBTX, refund *models.Refund) error
	GetByID(ctx context.Context, db DBTX, id string) (*models.Refund, error)
	GetByIDForUpdate(ctx context.Context, tx DBTX, id string) (*models.Refund, error)

	// Approve moves a pending refund to approved
	Approve(ctx context.Context, tx DBTX, id string, approver string, at time.Time) error
	MarkProcessed(ctx context.Context, tx DBTX, id string, at time.Time) error

	// UpdateCommissionReversal stores the per-line commission reversed, the
	// refund's commission to reverse and its merchant recovery amount
	UpdateCommissionReversal(ctx context.Context, tx DBTX, refund *models.Refund) error

	// MarkStockRestored flips stock_restored on the refund line if it was false.
	// Returns true only for the call that flipped it.
	MarkStockRestored(ctx context.Context, tx DBTX, refundLineID string) (bool, error)
}

// NoteRepository persists credit notes and merchant debit notes
type NoteRepository interface {
	// GetCreditNoteByRefund returns nil when no credit note exists for the refund
	GetCreditNoteByRefund(ctx context.Context, db DBTX, refundID string) (*models.CreditNote, error)
	CreateCreditNote(ctx context.Context, tx DBTX, note *models.CreditNote) error

	// GetDebitNoteByRefund returns nil when no debit note exists for the refund
	GetDebitNoteByRefund(ctx context.Context, db DBTX, refundID string) (*models.MerchantDebitNote, error)

	// CreateDebitNote yields domain.ErrDuplicateDebitNote when the refund already has one
	CreateDebitNote(ctx context.Context, tx DBTX, note *models.MerchantDebitNote) error
	ListDebitNotes(ctx context.Context, db DBTX, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error)
}
