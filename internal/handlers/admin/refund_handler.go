package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/marketplace-ledger/internal/converters"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/response"
	"github.com/kevin07696/marketplace-ledger/internal/services/refund"
	"go.uber.org/zap"
)

// RefundLineRequest is one line of a refund request
type RefundLineRequest struct {
	OrderLineID string `json:"order_line_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"max=500"`
}

// CreateRefundRequest is the body of POST /api/v1/refunds
type CreateRefundRequest struct {
	OrderID        string              `json:"order_id" validate:"required"`
	MerchantID     *string             `json:"merchant_id" validate:"omitempty,min=1"`
	Type           string              `json:"type" validate:"required,oneof=full partial"`
	ReasonCategory string              `json:"reason_category" validate:"max=100"`
	Notes          string              `json:"notes" validate:"max=2000"`
	Lines          []RefundLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ApproveRefundRequest is the body of POST /api/v1/refunds/{id}/approve
type ApproveRefundRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// ProcessRefundResponse is what processing a refund produced
type ProcessRefundResponse struct {
	Refund        converters.RefundResponse      `json:"refund"`
	CreditNote    *converters.CreditNoteResponse `json:"credit_note,omitempty"`
	DebitNote     *converters.DebitNoteResponse  `json:"debit_note,omitempty"`
	StockRestored int                            `json:"stock_restored"`
}

// CreateRefund handles POST /api/v1/refunds
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	svcReq := refund.CreateRefundRequest{
		OrderID:        req.OrderID,
		Type:           models.RefundType(req.Type),
		MerchantID:     req.MerchantID,
		ReasonCategory: req.ReasonCategory,
		Notes:          req.Notes,
		Lines:          make([]refund.LineRequest, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		svcReq.Lines = append(svcReq.Lines, refund.LineRequest{
			OrderLineID: l.OrderLineID,
			Quantity:    l.Quantity,
			Reason:      l.Reason,
		})
	}

	created, err := h.refunds.CreateRefund(r.Context(), svcReq)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.ok(w, http.StatusCreated, converters.RefundToResponse(created))
}

// GetRefund handles GET /api/v1/refunds/{id}
func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	found, err := h.refunds.GetRefund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, converters.RefundToResponse(found))
}

// ApproveRefund handles POST /api/v1/refunds/{id}/approve
func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	var req ApproveRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	approved, err := h.refunds.ApproveRefund(r.Context(), chi.URLParam(r, "id"), req.ApprovedBy)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, converters.RefundToResponse(approved))
}

// ProcessRefund handles POST /api/v1/refunds/{id}/process
func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	refundID := chi.URLParam(r, "id")

	result, err := h.refunds.ProcessRefund(r.Context(), refundID)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("Refund processed via API",
		zap.String("refund_id", refundID),
		zap.Bool("debit_note_issued", result.DebitNote != nil),
	)

	h.ok(w, http.StatusOK, ProcessRefundResponse{
		Refund:        converters.RefundToResponse(result.Refund),
		CreditNote:    converters.CreditNoteToResponse(result.CreditNote),
		DebitNote:     converters.DebitNoteToResponse(result.DebitNote),
		StockRestored: result.StockRestored,
	})
}

// ListDebitNotes handles GET /api/v1/debit-notes?merchant_id=&status=
func (h *Handler) ListDebitNotes(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	status := models.DebitNoteStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.DebitNoteOutstanding, models.DebitNoteSettled:
	default:
		response.Error(w, h.logger, http.StatusBadRequest, "status must be outstanding or settled")
		return
	}

	notes, err := h.refunds.ListDebitNotes(r.Context(), r.URL.Query().Get("merchant_id"), status, limit, offset)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.list(w, converters.DebitNotesToResponse(notes), limit, offset)
}
