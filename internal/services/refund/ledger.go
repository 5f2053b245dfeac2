// Package refund records refunds, reverses commission and recovers funds
// from merchants whose orders were already settled.
package refund

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineRequest asks to refund quantity units of one order line
type LineRequest struct {
	OrderLineID string
	Quantity    int
	Reason      string
}

// CreateRefundRequest is the input of CreateRefund
type CreateRefundRequest struct {
	OrderID        string
	Lines          []LineRequest
	Type           models.RefundType
	MerchantID     *string // resolved from the lines when nil
	ReasonCategory string
	Notes          string
}

// ProcessResult is what ProcessRefund produced
type ProcessResult struct {
	Refund        *models.Refund
	CreditNote    *models.CreditNote
	DebitNote     *models.MerchantDebitNote // nil unless funds are recovered from the merchant
	StockRestored int                       // refund lines whose stock was restored by this call
}

// Ledger implements the refund lifecycle: pending -> approved -> processed
type Ledger struct {
	db          ports.DBPort
	orders      ports.OrderRepository
	catalog     ports.CatalogRepository
	settlements ports.SettlementRepository
	refunds     ports.RefundRepository
	notes       ports.NoteRepository
	cfg         config.LedgerConfig
	logger      *zap.Logger
}

// NewLedger creates a new refund ledger
func NewLedger(
	db ports.DBPort,
	orders ports.OrderRepository,
	catalog ports.CatalogRepository,
	settlements ports.SettlementRepository,
	refunds ports.RefundRepository,
	notes ports.NoteRepository,
	cfg config.LedgerConfig,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		db:          db,
		orders:      orders,
		catalog:     catalog,
		settlements: settlements,
		refunds:     refunds,
		notes:       notes,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateRefund validates the request against the order and records a pending refund.
// Commission is reversed from the amount frozen on each line, never re-resolved.
func (l *Ledger) CreateRefund(ctx context.Context, req CreateRefundRequest) (*models.Refund, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var refund *models.Refund

	err := l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := l.orders.GetOrder(ctx, tx, req.OrderID); err != nil {
			return fmt.Errorf("get order: %w", err)
		}

		// Lock requested lines in a stable order
		requested := append([]LineRequest(nil), req.Lines...)
		sort.Slice(requested, func(i, j int) bool { return requested[i].OrderLineID < requested[j].OrderLineID })

		orderLines := make(map[string]*models.OrderLine, len(requested))
		for _, lr := range requested {
			ol, err := l.orders.GetOrderLineForUpdate(ctx, tx, lr.OrderLineID)
			if err != nil {
				if domain.IsNotFoundError(err) {
					return domain.ErrOrderLineNotInOrder.WithDetail("order_line_id", lr.OrderLineID)
				}
				return fmt.Errorf("get order line %s: %w", lr.OrderLineID, err)
			}
			if ol.OrderID != req.OrderID {
				return domain.ErrOrderLineNotInOrder.WithDetail("order_line_id", lr.OrderLineID)
			}
			if lr.Quantity > ol.UnrefundedQuantity() {
				return domain.ErrInvalidQuantity.
					WithDetail("order_line_id", lr.OrderLineID).
					WithDetail("requested", lr.Quantity).
					WithDetail("refundable", ol.UnrefundedQuantity())
			}
			orderLines[lr.OrderLineID] = ol
		}

		merchantID, err := resolveMerchant(req, orderLines)
		if err != nil {
			return err
		}

		refund, err = l.buildRefund(req, merchantID, orderLines)
		if err != nil {
			return err
		}

		settled, err := l.settlements.IsOrderSettled(ctx, tx, req.OrderID, merchantID)
		if err != nil {
			return fmt.Errorf("check settlement: %w", err)
		}
		if settled {
			refund.IsPostSettlement = true
			refund.MerchantRecoveryAmount = recoveryAmount(refund)
		}

		if err := l.refunds.Create(ctx, tx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to create refund",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordRefund("created", string(refund.Type))
	l.logger.Info("Refund created",
		zap.String("refund_id", refund.ID),
		zap.String("order_id", refund.OrderID),
		zap.String("merchant_id", refund.MerchantID),
		zap.String("total", refund.Total.String()),
		zap.Bool("post_settlement", refund.IsPostSettlement),
	)
	return refund, nil
}

// ApproveRefund moves a pending refund to approved
func (l *Ledger) ApproveRefund(ctx context.Context, refundID, approver string) (*models.Refund, error) {
	if approver == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "approved_by")
	}

	var refund *models.Refund

	err := l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := l.refunds.GetByIDForUpdate(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if !r.CanApprove() {
			return domain.ErrRefundTransition.
				WithDetail("refund_id", refundID).
				WithDetail("status", string(r.Status))
		}

		now := timeutil.Now()
		if err := l.refunds.Approve(ctx, tx, refundID, approver, now); err != nil {
			return fmt.Errorf("approve refund: %w", err)
		}
		r.Status = models.RefundApproved
		r.ApprovedBy = &approver
		r.ApprovedAt = &now
		refund = r
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to approve refund",
			zap.String("refund_id", refundID),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordRefund("approved", string(refund.Type))
	l.logger.Info("Refund approved",
		zap.String("refund_id", refundID),
		zap.String("approved_by", approver),
	)
	return refund, nil
}

// ProcessRefund applies every side effect of an approved refund in one transaction:
// stock restoration, order-line bookkeeping, credit note, debit note when the
// order was already settled, order status for full refunds, and the final status.
func (l *Ledger) ProcessRefund(ctx context.Context, refundID string) (*ProcessResult, error) {
	result := &ProcessResult{}

	err := l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := l.refunds.GetByIDForUpdate(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if r.IsProcessed() {
			return domain.ErrRefundAlreadyProcessed.WithDetail("refund_id", refundID)
		}
		if !r.CanProcess() {
			return domain.ErrRefundNotApproved.WithDetail("refund_id", refundID)
		}
		result.Refund = r

		sort.Slice(r.Lines, func(i, j int) bool { return r.Lines[i].OrderLineID < r.Lines[j].OrderLineID })

		for i := range r.Lines {
			line := &r.Lines[i]

			ol, err := l.orders.GetOrderLineForUpdate(ctx, tx, line.OrderLineID)
			if err != nil {
				return fmt.Errorf("get order line %s: %w", line.OrderLineID, err)
			}
			// Another refund may have consumed the quantity since creation
			if line.Quantity > ol.UnrefundedQuantity() {
				return domain.ErrInvalidQuantity.
					WithDetail("order_line_id", line.OrderLineID).
					WithDetail("requested", line.Quantity).
					WithDetail("refundable", ol.UnrefundedQuantity())
			}

			// Earlier refunds of this line may have been processed since creation
			line.CommissionReversed = ReverseCommission(ol, line.Quantity)

			restored, err := l.RestoreStock(ctx, tx, line)
			if err != nil {
				return err
			}
			if restored {
				result.StockRestored++
			}

			if err := l.orders.RecordLineRefund(ctx, tx, ol.ID, line.Quantity, line.CommissionReversed); err != nil {
				return fmt.Errorf("record refund on order line %s: %w", ol.ID, err)
			}
		}

		r.CommissionToReverse = decimal.Zero
		for _, line := range r.Lines {
			r.CommissionToReverse = r.CommissionToReverse.Add(line.CommissionReversed)
		}
		if r.IsPostSettlement {
			r.MerchantRecoveryAmount = recoveryAmount(r)
		}
		if err := l.refunds.UpdateCommissionReversal(ctx, tx, r); err != nil {
			return fmt.Errorf("update commission reversal: %w", err)
		}

		if result.CreditNote, err = l.issueCreditNote(ctx, tx, r); err != nil {
			return err
		}

		if r.NeedsDebitNote() {
			if result.DebitNote, err = l.issueDebitNote(ctx, tx, r); err != nil {
				return err
			}
		}

		if r.Type == models.RefundFull {
			if err := l.orders.UpdateOrderStatus(ctx, tx, r.OrderID, models.OrderRefunded); err != nil {
				return fmt.Errorf("mark order refunded: %w", err)
			}
		}

		now := timeutil.Now()
		if err := l.refunds.MarkProcessed(ctx, tx, refundID, now); err != nil {
			return fmt.Errorf("mark refund processed: %w", err)
		}
		r.Status = models.RefundProcessed
		r.ProcessedAt = &now
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to process refund",
			zap.String("refund_id", refundID),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordRefund("processed", string(result.Refund.Type))
	if result.DebitNote != nil {
		observability.RecordDebitNote(result.DebitNote.RecoveryAmount.Shift(2).IntPart())
	}
	l.logger.Info("Refund processed",
		zap.String("refund_id", refundID),
		zap.String("order_id", result.Refund.OrderID),
		zap.String("credit_note", result.CreditNote.Number),
		zap.Bool("debit_note_issued", result.DebitNote != nil),
		zap.Int("stock_restored_lines", result.StockRestored),
	)
	return result, nil
}

// RestoreStock returns the refunded units of one line to stock at most once.
// It reports whether this call performed the restoration.
func (l *Ledger) RestoreStock(ctx context.Context, tx ports.DBTX, line *models.RefundLine) (bool, error) {
	flipped, err := l.refunds.MarkStockRestored(ctx, tx, line.ID)
	if err != nil {
		return false, fmt.Errorf("mark stock restored for refund line %s: %w", line.ID, err)
	}
	if !flipped {
		return false, nil
	}

	if err := l.catalog.RestoreStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
		return false, fmt.Errorf("restore stock for product %s: %w", line.ProductID, err)
	}
	line.StockRestored = true
	return true, nil
}

// GetRefund returns a refund with its lines
func (l *Ledger) GetRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	return l.refunds.GetByID(ctx, nil, refundID)
}

// ListDebitNotes returns debit notes, optionally filtered by merchant and status
func (l *Ledger) ListDebitNotes(ctx context.Context, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.notes.ListDebitNotes(ctx, nil, merchantID, status, limit, offset)
}

func (l *Ledger) issueCreditNote(ctx context.Context, tx ports.DBTX, r *models.Refund) (*models.CreditNote, error) {
	existing, err := l.notes.GetCreditNoteByRefund(ctx, tx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("get credit note: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	invoice, err := l.orders.GetInvoice(ctx, tx, r.OrderID, r.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	now := timeutil.Now()
	note := &models.CreditNote{
		ID:                 uuid.New().String(),
		RefundID:           r.ID,
		OrderID:            r.OrderID,
		MerchantID:         r.MerchantID,
		Subtotal:           r.Subtotal,
		TaxAmount:          r.TaxAmount,
		Total:              r.Total,
		CommissionReversed: r.CommissionToReverse,
		IssuedAt:           now,
	}
	note.Number = noteNumber("CN", now, note.ID)
	if invoice != nil {
		note.InvoiceID = &invoice.ID
	}

	if err := l.notes.CreateCreditNote(ctx, tx, note); err != nil {
		return nil, fmt.Errorf("create credit note: %w", err)
	}
	return note, nil
}

func (l *Ledger) issueDebitNote(ctx context.Context, tx ports.DBTX, r *models.Refund) (*models.MerchantDebitNote, error) {
	existing, err := l.notes.GetDebitNoteByRefund(ctx, tx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("get debit note: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	settlementID, err := l.settlements.LatestSettlementIDForOrder(ctx, tx, r.OrderID, r.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("find settlement for debit note: %w", err)
	}

	now := timeutil.Now()
	note := &models.MerchantDebitNote{
		ID:                 uuid.New().String(),
		RefundID:           r.ID,
		OrderID:            r.OrderID,
		MerchantID:         r.MerchantID,
		SettlementID:       settlementID,
		RecoveryAmount:     r.MerchantRecoveryAmount,
		CommissionReversed: r.CommissionToReverse,
		Status:             models.DebitNoteOutstanding,
		IssuedAt:           now,
	}
	note.Number = noteNumber("DN", now, note.ID)

	if err := l.notes.CreateDebitNote(ctx, tx, note); err != nil {
		return nil, fmt.Errorf("create debit note: %w", err)
	}

	l.logger.Info("Merchant debit note issued",
		zap.String("debit_note", note.Number),
		zap.String("merchant_id", note.MerchantID),
		zap.String("recovery_amount", note.RecoveryAmount.String()),
	)
	return note, nil
}

func (l *Ledger) buildRefund(req CreateRefundRequest, merchantID string, orderLines map[string]*models.OrderLine) (*models.Refund, error) {
	now := timeutil.Now()
	refund := &models.Refund{
		ID:                     uuid.New().String(),
		OrderID:                req.OrderID,
		MerchantID:             merchantID,
		Type:                   req.Type,
		ReasonCategory:         req.ReasonCategory,
		Notes:                  req.Notes,
		Subtotal:               decimal.Zero,
		TaxAmount:              decimal.Zero,
		Total:                  decimal.Zero,
		CommissionToReverse:    decimal.Zero,
		MerchantRecoveryAmount: decimal.Zero,
		Status:                 models.RefundPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	for _, lr := range req.Lines {
		ol := orderLines[lr.OrderLineID]

		total := ol.UnitPrice.Mul(decimal.NewFromInt(int64(lr.Quantity))).Round(2)
		split, err := tax.BackOut(total, l.cfg.VATRate)
		if err != nil {
			return nil, err
		}
		reversed := ReverseCommission(ol, lr.Quantity)

		refund.Lines = append(refund.Lines, models.RefundLine{
			ID:                 uuid.New().String(),
			RefundID:           refund.ID,
			OrderLineID:        ol.ID,
			ProductID:          ol.ProductID,
			Quantity:           lr.Quantity,
			Reason:             lr.Reason,
			Subtotal:           split.Exclusive,
			TaxAmount:          split.Tax,
			Total:              total,
			CommissionReversed: reversed,
			CreatedAt:          now,
		})

		refund.Subtotal = refund.Subtotal.Add(split.Exclusive)
		refund.TaxAmount = refund.TaxAmount.Add(split.Tax)
		refund.Total = refund.Total.Add(total)
		refund.CommissionToReverse = refund.CommissionToReverse.Add(reversed)
	}

	return refund, nil
}

// ReverseCommission returns the share of the line's frozen commission for
// quantity units: round(frozen * qty / line_qty, 2). Refunding the last
// remaining units reverses exactly what is left, so the total reversed never
// exceeds the frozen amount.
func ReverseCommission(ol *models.OrderLine, quantity int) decimal.Decimal {
	remaining := ol.RemainingCommission()
	if quantity >= ol.UnrefundedQuantity() || ol.Quantity == 0 {
		return decimal.Max(decimal.Zero, remaining)
	}

	share := ol.CommissionAmount.
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(decimal.NewFromInt(int64(ol.Quantity))).
		Round(2)
	return decimal.Max(decimal.Zero, decimal.Min(share, remaining))
}

// recoveryAmount is what a settled merchant owes back: the refunded subtotal
// less the commission the platform returns, floored at zero
func recoveryAmount(r *models.Refund) decimal.Decimal {
	return decimal.Max(decimal.Zero, r.Subtotal.Sub(r.CommissionToReverse))
}

func validateCreate(req CreateRefundRequest) error {
	if req.OrderID == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "order_id")
	}
	if len(req.Lines) == 0 {
		return domain.ErrValidationMissingField.WithDetail("field", "lines")
	}
	if !req.Type.IsValid() {
		return domain.ErrValidationFailed.WithDetail("type", string(req.Type))
	}

	seen := make(map[string]bool, len(req.Lines))
	for _, lr := range req.Lines {
		if lr.OrderLineID == "" {
			return domain.ErrValidationMissingField.WithDetail("field", "order_line_id")
		}
		if seen[lr.OrderLineID] {
			return domain.ErrValidationFailed.WithDetail("duplicate_order_line_id", lr.OrderLineID)
		}
		seen[lr.OrderLineID] = true
		if lr.Quantity < 1 {
			return domain.ErrInvalidQuantity.
				WithDetail("order_line_id", lr.OrderLineID).
				WithDetail("requested", lr.Quantity)
		}
	}
	return nil
}

func resolveMerchant(req CreateRefundRequest, orderLines map[string]*models.OrderLine) (string, error) {
	merchants := make(map[string]bool)
	for _, ol := range orderLines {
		merchants[ol.MerchantID] = true
	}

	if req.MerchantID != nil {
		for id, ol := range orderLines {
			if ol.MerchantID != *req.MerchantID {
				return "", domain.ErrValidationFailed.
					WithDetail("order_line_id", id).
					WithDetail("merchant_id", *req.MerchantID)
			}
		}
		return *req.MerchantID, nil
	}

	if len(merchants) > 1 {
		return "", domain.ErrMerchantAmbiguous.WithDetail("order_id", req.OrderID)
	}
	for id := range merchants {
		if id == "" {
			return "", domain.ErrValidationMissingField.WithDetail("field", "merchant_id")
		}
		return id, nil
	}
	return "", domain.ErrValidationMissingField.WithDetail("field", "merchant_id")
}

func noteNumber(prefix string, at time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}
