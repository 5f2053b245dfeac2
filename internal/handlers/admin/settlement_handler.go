package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/marketplace-ledger/internal/converters"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/response"
)

// MarkPaidRequest is the body of POST /api/v1/settlements/{id}/mark-paid
type MarkPaidRequest struct {
	TransactionReference string `json:"transaction_reference" validate:"required,max=255"`
}

// ListSettlements handles GET /api/v1/settlements?merchant_id=
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	merchantID := r.URL.Query().Get("merchant_id")
	if merchantID == "" {
		response.Error(w, h.logger, http.StatusBadRequest, "merchant_id is required")
		return
	}

	limit, offset, err := page(r)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.settlements.ListSettlements(r.Context(), merchantID, limit, offset)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.list(w, converters.SettlementsToResponse(list), limit, offset)
}

// GetSettlement handles GET /api/v1/settlements/{id}
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.settlements.GetSettlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, converters.SettlementToResponse(s))
}

// MarkSettlementPaid handles POST /api/v1/settlements/{id}/mark-paid
func (h *Handler) MarkSettlementPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.settlements.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.TransactionReference)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, converters.SettlementToResponse(s))
}
