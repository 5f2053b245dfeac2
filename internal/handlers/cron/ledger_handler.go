package cron

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/marketplace-ledger/internal/converters"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/handlers/response"
	"github.com/kevin07696/marketplace-ledger/internal/services/eligibility"
	"github.com/kevin07696/marketplace-ledger/internal/services/settlement"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EligibilityRunner marks delivered orders eligible for settlement
type EligibilityRunner interface {
	CalculateEligibility(ctx context.Context) (*eligibility.Result, error)
}

// SettlementRunner batches eligible lines into settlements
type SettlementRunner interface {
	GenerateSettlements(ctx context.Context, req settlement.GenerateRequest) (*settlement.RunResult, error)
}

// Reconciler computes and stores reconciliation snapshots
type Reconciler interface {
	RunReconciliation(ctx context.Context, from, to time.Time) (*models.Reconciliation, error)
}

// LedgerHandler serves the scheduled ledger jobs under /cron
type LedgerHandler struct {
	eligibility EligibilityRunner
	settlements SettlementRunner
	reconciler  Reconciler
	validate    *validator.Validate
	tolerance   decimal.Decimal
	logger      *zap.Logger
	cronSecret  string // Secret token for authenticating cron requests
}

// NewLedgerHandler creates a new ledger cron handler
func NewLedgerHandler(
	eligibility EligibilityRunner,
	settlements SettlementRunner,
	reconciler Reconciler,
	tolerance decimal.Decimal,
	logger *zap.Logger,
	cronSecret string,
) *LedgerHandler {
	return &LedgerHandler{
		eligibility: eligibility,
		settlements: settlements,
		reconciler:  reconciler,
		validate:    validator.New(),
		tolerance:   tolerance,
		logger:      logger,
		cronSecret:  cronSecret,
	}
}

// GenerateSettlementsRequest is the optional body of POST /cron/generate-settlements
type GenerateSettlementsRequest struct {
	PayoutDate *string `json:"payout_date" validate:"omitempty,datetime=2006-01-02"` // defaults to today
	Force      bool    `json:"force"`
}

// ReconcileRequest is the body of POST /cron/reconcile. Both dates are inclusive.
type ReconcileRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// EligibilityResponse reports an eligibility run
type EligibilityResponse struct {
	Success bool      `json:"success"`
	Updated int64     `json:"updated"`
	RanAt   time.Time `json:"ran_at"`
}

// GenerateSettlementsResponse reports a settlement run
type GenerateSettlementsResponse struct {
	Success bool `json:"success"`
	*settlement.RunResult
	Settlements []converters.SettlementResponse `json:"settlements"`
}

// ReconcileResponse reports a stored reconciliation snapshot
type ReconcileResponse struct {
	Success        bool                              `json:"success"`
	HasDiscrepancy bool                              `json:"has_discrepancy"`
	Reconciliation converters.ReconciliationResponse `json:"reconciliation"`
}

// CalculateEligibility handles POST /cron/calculate-eligibility
func (h *LedgerHandler) CalculateEligibility(w http.ResponseWriter, r *http.Request) {
	if !h.begin(w, r, "eligibility") {
		return
	}

	result, err := h.eligibility.CalculateEligibility(r.Context())
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("Eligibility cron job completed",
		zap.Int64("updated", result.Updated),
	)

	response.JSON(w, h.logger, http.StatusOK, EligibilityResponse{
		Success: true,
		Updated: result.Updated,
		RanAt:   result.RanAt,
	})
}

// GenerateSettlements handles POST /cron/generate-settlements
func (h *LedgerHandler) GenerateSettlements(w http.ResponseWriter, r *http.Request) {
	if !h.begin(w, r, "settlements") {
		return
	}

	var req GenerateSettlementsRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	genReq := settlement.GenerateRequest{Force: req.Force}
	if req.PayoutDate != nil {
		day, err := timeutil.ParseDay(*req.PayoutDate)
		if err != nil {
			response.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid payout_date: %v", err))
			return
		}
		genReq.PayoutDate = &day
	}

	result, err := h.settlements.GenerateSettlements(r.Context(), genReq)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("Settlement cron job completed",
		zap.Time("payout_date", result.PayoutDate),
		zap.Bool("skipped", result.Skipped),
		zap.Int("settlements_created", result.SettlementsCreated),
		zap.String("total_payout", result.Totals.Payout.String()),
	)

	response.JSON(w, h.logger, http.StatusOK, GenerateSettlementsResponse{
		Success:     true,
		RunResult:   result,
		Settlements: converters.SettlementsToResponse(result.Settlements),
	})
}

// Reconcile handles POST /cron/reconcile
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if !h.begin(w, r, "reconciliation") {
		return
	}

	var req ReconcileRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	from, err := timeutil.ParseDay(req.From)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid from: %v", err))
		return
	}
	to, err := timeutil.ParseDay(req.To)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid to: %v", err))
		return
	}
	start, end, err := timeutil.DayRange(from, to)
	if err != nil {
		response.Error(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.reconciler.RunReconciliation(r.Context(), start, end)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	response.JSON(w, h.logger, http.StatusOK, ReconcileResponse{
		Success:        true,
		HasDiscrepancy: rec.HasDiscrepancy(h.tolerance),
		Reconciliation: converters.ReconciliationToResponse(rec),
	})
}

// begin logs the trigger and rejects wrong methods and unauthenticated callers
func (h *LedgerHandler) begin(w http.ResponseWriter, r *http.Request, job string) bool {
	h.logger.Info("Ledger cron job triggered",
		zap.String("job", job),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		response.Error(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return false
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("job", job),
			zap.String("remote_addr", r.RemoteAddr),
		)
		response.Error(w, h.logger, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

// decode reads and validates a JSON body. An empty body is accepted unless required.
func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, required bool) bool {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			response.Error(w, h.logger, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return false
		}
	} else if required {
		response.Error(w, h.logger, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		response.FromError(w, h.logger, err)
		return false
	}
	return true
}

// authenticateRequest verifies the cron request carries the shared secret
func (h *LedgerHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}

	if secret := r.Header.Get("X-Cron-Secret"); secret != "" {
		return subtle.ConstantTimeCompare([]byte(secret), []byte(h.cronSecret)) == 1
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) == 1
	}

	return false
}
