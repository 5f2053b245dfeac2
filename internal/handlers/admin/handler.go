// Package admin serves the ledger's operator API under /api/v1.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/response"
	"github.com/kevin07696/marketplace-ledger/internal/services/commission"
	"github.com/kevin07696/marketplace-ledger/internal/services/refund"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"go.uber.org/zap"
)

// RefundService is the refund lifecycle as seen by the API
type RefundService interface {
	CreateRefund(ctx context.Context, req refund.CreateRefundRequest) (*models.Refund, error)
	ApproveRefund(ctx context.Context, refundID, approver string) (*models.Refund, error)
	ProcessRefund(ctx context.Context, refundID string) (*refund.ProcessResult, error)
	GetRefund(ctx context.Context, refundID string) (*models.Refund, error)
	ListDebitNotes(ctx context.Context, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error)
}

// SettlementService reads and pays settlements
type SettlementService interface {
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)
	ListSettlements(ctx context.Context, merchantID string, limit, offset int32) ([]*models.Settlement, error)
	MarkPaid(ctx context.Context, settlementID, transactionRef string) (*models.Settlement, error)
}

// ReconciliationService lists stored reconciliation snapshots
type ReconciliationService interface {
	ListReconciliations(ctx context.Context, limit int32) ([]*models.Reconciliation, error)
}

// TaxService derives tax reports, optionally through the display cache
type TaxService interface {
	VATReturn(ctx context.Context, period models.Period) (*tax.VATReturn, error)
	CorporateTax(ctx context.Context, period models.Period) (*tax.CorporateTaxReport, error)
	CachedVATReturn(ctx context.Context, period models.Period) (*tax.VATReturn, error)
	CachedCorporateTax(ctx context.Context, period models.Period) (*tax.CorporateTaxReport, error)
}

// CommissionFreezer writes the resolved commission onto an order line
type CommissionFreezer interface {
	FreezeOrderLine(ctx context.Context, lineID string) (*commission.FreezeResult, error)
}

// Handler serves the admin API
type Handler struct {
	refunds         RefundService
	settlements     SettlementService
	reconciliations ReconciliationService
	tax             TaxService
	commission      CommissionFreezer
	validate        *validator.Validate
	logger          *zap.Logger
}

// NewHandler creates the admin API handler
func NewHandler(
	refunds RefundService,
	settlements SettlementService,
	reconciliations ReconciliationService,
	taxService TaxService,
	commissionFreezer CommissionFreezer,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		refunds:         refunds,
		settlements:     settlements,
		reconciliations: reconciliations,
		tax:             taxService,
		commission:      commissionFreezer,
		validate:        validator.New(),
		logger:          logger,
	}
}

// Routes mounts every admin endpoint on a fresh router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/refunds", func(r chi.Router) {
		r.Post("/", h.CreateRefund)
		r.Get("/{id}", h.GetRefund)
		r.Post("/{id}/approve", h.ApproveRefund)
		r.Post("/{id}/process", h.ProcessRefund)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Get("/", h.ListSettlements)
		r.Get("/{id}", h.GetSettlement)
		r.Post("/{id}/mark-paid", h.MarkSettlementPaid)
	})

	r.Get("/debit-notes", h.ListDebitNotes)
	r.Get("/reconciliations", h.ListReconciliations)

	r.Route("/tax", func(r chi.Router) {
		r.Get("/vat-return", h.VATReturn)
		r.Get("/corporate", h.CorporateTax)
	})

	r.Post("/commission/order-lines/{id}/freeze", h.FreezeCommission)

	return r
}

// decode reads a JSON body into dst and validates it
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		response.FromError(w, h.logger, err)
		return false
	}
	return true
}

// page parses limit and offset query parameters. Zero values fall back to service defaults.
func page(r *http.Request) (limit, offset int32, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, perr := strconv.ParseInt(v, 10, 32)
		if perr != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid limit: %q", v)
		}
		limit = int32(n)
	}
	if v := q.Get("offset"); v != "" {
		n, perr := strconv.ParseInt(v, 10, 32)
		if perr != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %q", v)
		}
		offset = int32(n)
	}
	return limit, offset, nil
}

type listResponse struct {
	Success bool        `json:"success"`
	Items   interface{} `json:"items"`
	Limit   int32       `json:"limit,omitempty"`
	Offset  int32       `json:"offset,omitempty"`
}

type itemResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func (h *Handler) ok(w http.ResponseWriter, status int, data interface{}) {
	response.JSON(w, h.logger, status, itemResponse{Success: true, Data: data})
}

func (h *Handler) list(w http.ResponseWriter, items interface{}, limit, offset int32) {
	response.JSON(w, h.logger, http.StatusOK, listResponse{Success: true, Items: items, Limit: limit, Offset: offset})
}
