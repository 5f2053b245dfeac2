package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kevin07696/marketplace-ledger/internal/converters"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/response"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
)

// ListReconciliations handles GET /api/v1/reconciliations
func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	limit, _, err := page(r)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.reconciliations.ListReconciliations(r.Context(), limit)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.list(w, converters.ReconciliationsToResponse(list), limit, 0)
}

// VATReturn handles GET /api/v1/tax/vat-return?from=&to=&fresh=
func (h *Handler) VATReturn(w http.ResponseWriter, r *http.Request) {
	period, fresh, err := reportQuery(r)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	report := h.tax.CachedVATReturn
	if fresh {
		report = h.tax.VATReturn
	}

	vat, err := report(r.Context(), period)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, vat)
}

// CorporateTax handles GET /api/v1/tax/corporate?from=&to=&fresh=
func (h *Handler) CorporateTax(w http.ResponseWriter, r *http.Request) {
	period, fresh, err := reportQuery(r)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	report := h.tax.CachedCorporateTax
	if fresh {
		report = h.tax.CorporateTax
	}

	ct, err := report(r.Context(), period)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.ok(w, http.StatusOK, ct)
}

// FreezeCommission handles POST /api/v1/commission/order-lines/{id}/freeze
func (h *Handler) FreezeCommission(w http.ResponseWriter, r *http.Request) {
	result, err := h.commission.FreezeOrderLine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyFrozen {
		status = http.StatusOK
	}
	h.ok(w, status, converters.OrderLineCommissionToResponse(result.Line, result.AlreadyFrozen))
}

// reportQuery reads the inclusive from/to dates and the fresh flag of a tax report
func reportQuery(r *http.Request) (models.Period, bool, error) {
	q := r.URL.Query()

	from, err := timeutil.ParseDay(q.Get("from"))
	if err != nil {
		return models.Period{}, false, fmt.Errorf("invalid from: expected %s", timeutil.DateLayout)
	}
	to, err := timeutil.ParseDay(q.Get("to"))
	if err != nil {
		return models.Period{}, false, fmt.Errorf("invalid to: expected %s", timeutil.DateLayout)
	}
	start, end, err := timeutil.DayRange(from, to)
	if err != nil {
		return models.Period{}, false, err
	}

	fresh := false
	if v := q.Get("fresh"); v != "" {
		if fresh, err = strconv.ParseBool(v); err != nil {
			return models.Period{}, false, fmt.Errorf("invalid fresh: %q", v)
		}
	}

	return models.Period{From: start, To: end}, fresh, nil
}
