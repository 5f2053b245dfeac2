package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/services/eligibility"
	"github.com/kevin07696/marketplace-ledger/internal/services/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "cron-secret"

type mockEligibility struct{ mock.Mock }

func (m *mockEligibility) CalculateEligibility(ctx context.Context) (*eligibility.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eligibility.Result), args.Error(1)
}

type mockSettlements struct{ mock.Mock }

func (m *mockSettlements) GenerateSettlements(ctx context.Context, req settlement.GenerateRequest) (*settlement.RunResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.RunResult), args.Error(1)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) RunReconciliation(ctx context.Context, from, to time.Time) (*models.Reconciliation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reconciliation), args.Error(1)
}

func setupHandler() (*LedgerHandler, *mockEligibility, *mockSettlements, *mockReconciler) {
	e, s, r := new(mockEligibility), new(mockSettlements), new(mockReconciler)
	h := NewLedgerHandler(e, s, r, decimal.RequireFromString("0.01"), zap.NewNop(), testSecret)
	return h, e, s, r
}

func cronRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-Cron-Secret", testSecret)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthenticateRequest(t *testing.T) {
	h, _, _, _ := setupHandler()

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		allowed bool
	}{
		{"cron header", func(r *http.Request) { r.Header.Set("X-Cron-Secret", testSecret) }, true},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+testSecret) }, true},
		{"wrong header", func(r *http.Request) { r.Header.Set("X-Cron-Secret", "nope") }, false},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, false},
		{"query parameter is ignored", func(r *http.Request) { r.URL.RawQuery = "secret=" + testSecret }, false},
		{"no credentials", func(r *http.Request) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cron/calculate-eligibility", nil)
			tt.setup(req)
			assert.Equal(t, tt.allowed, h.authenticateRequest(req))
		})
	}

	t.Run("empty configured secret rejects everything", func(t *testing.T) {
		open := NewLedgerHandler(nil, nil, nil, decimal.Zero, zap.NewNop(), "")
		req := httptest.NewRequest(http.MethodPost, "/cron/calculate-eligibility", nil)
		req.Header.Set("X-Cron-Secret", "")
		assert.False(t, open.authenticateRequest(req))
	})
}

func TestCalculateEligibility(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, e, _, _ := setupHandler()
		ranAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		e.On("CalculateEligibility", mock.Anything).Return(&eligibility.Result{Updated: 3, RanAt: ranAt}, nil)

		rec := httptest.NewRecorder()
		h.CalculateEligibility(rec, cronRequest(http.MethodPost, "/cron/calculate-eligibility", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(3), body["updated"])
		e.AssertExpectations(t)
	})

	t.Run("unauthorized", func(t *testing.T) {
		h, e, _, _ := setupHandler()
		req := httptest.NewRequest(http.MethodPost, "/cron/calculate-eligibility", nil)

		rec := httptest.NewRecorder()
		h.CalculateEligibility(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		e.AssertNotCalled(t, "CalculateEligibility", mock.Anything)
	})

	t.Run("method not allowed", func(t *testing.T) {
		h, _, _, _ := setupHandler()
		rec := httptest.NewRecorder()
		h.CalculateEligibility(rec, cronRequest(http.MethodGet, "/cron/calculate-eligibility", ""))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("storage outage is retryable", func(t *testing.T) {
		h, e, _, _ := setupHandler()
		e.On("CalculateEligibility", mock.Anything).
			Return(nil, domain.WrapError(domain.ErrorCodeStorageUnavailable, "ledger storage unavailable", errors.New("dial tcp")))

		rec := httptest.NewRecorder()
		h.CalculateEligibility(rec, cronRequest(http.MethodPost, "/cron/calculate-eligibility", ""))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["retryable"])
	})
}

func TestGenerateSettlements(t *testing.T) {
	payoutDate := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)

	t.Run("explicit payout date", func(t *testing.T) {
		h, _, s, _ := setupHandler()
		result := &settlement.RunResult{
			PayoutDate:         payoutDate,
			SettlementsCreated: 1,
			OrdersSettled:      2,
			LinesSettled:       3,
			Merchants:          []string{"m-1"},
			Totals:             settlement.RunTotals{Payout: decimal.RequireFromString("94.50")},
			Settlements: []*models.Settlement{
				{ID: "s-1", MerchantID: "m-1", PayoutDate: payoutDate, MerchantPayout: decimal.RequireFromString("94.50")},
			},
		}
		s.On("GenerateSettlements", mock.Anything, mock.MatchedBy(func(req settlement.GenerateRequest) bool {
			return req.PayoutDate != nil && req.PayoutDate.Equal(payoutDate) && !req.Force
		})).Return(result, nil)

		rec := httptest.NewRecorder()
		h.GenerateSettlements(rec, cronRequest(http.MethodPost, "/cron/generate-settlements", `{"payout_date":"2025-03-08"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["settlements_created"])
		assert.Equal(t, false, body["skipped"])
		settlements := body["settlements"].([]interface{})
		require.Len(t, settlements, 1)
		assert.Equal(t, "94.50", settlements[0].(map[string]interface{})["merchant_payout"])
	})

	t.Run("defaults without body", func(t *testing.T) {
		h, _, s, _ := setupHandler()
		s.On("GenerateSettlements", mock.Anything, settlement.GenerateRequest{}).
			Return(&settlement.RunResult{PayoutDate: payoutDate, Skipped: true, SkipReason: "not a payout day"}, nil)

		rec := httptest.NewRecorder()
		h.GenerateSettlements(rec, cronRequest(http.MethodPost, "/cron/generate-settlements", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["skipped"])
		assert.Equal(t, "not a payout day", body["skip_reason"])
	})

	t.Run("invalid date", func(t *testing.T) {
		h, _, s, _ := setupHandler()
		rec := httptest.NewRecorder()
		h.GenerateSettlements(rec, cronRequest(http.MethodPost, "/cron/generate-settlements", `{"payout_date":"08/03/2025"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.AssertNotCalled(t, "GenerateSettlements", mock.Anything, mock.Anything)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		h, _, _, _ := setupHandler()
		rec := httptest.NewRecorder()
		h.GenerateSettlements(rec, cronRequest(http.MethodPost, "/cron/generate-settlements", `{"forse":true}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("integrity failure is a conflict", func(t *testing.T) {
		h, _, s, _ := setupHandler()
		s.On("GenerateSettlements", mock.Anything, mock.Anything).
			Return(nil, domain.ErrAlreadySettled.WithDetail("order_id", "o-1"))

		rec := httptest.NewRecorder()
		h.GenerateSettlements(rec, cronRequest(http.MethodPost, "/cron/generate-settlements", `{"force":true}`))

		require.Equal(t, http.StatusConflict, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, string(domain.ErrorCodeStateAlreadySettled), body["code"])
		assert.Nil(t, body["retryable"])
	})
}

func TestReconcile(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("inclusive dates become half-open range", func(t *testing.T) {
		h, _, _, r := setupHandler()
		r.On("RunReconciliation", mock.Anything, from, end).Return(&models.Reconciliation{
			ID:                 "rec-1",
			PeriodStart:        from,
			PeriodEnd:          end,
			DiscrepancyAmount:  decimal.RequireFromString("100"),
			PendingSettlements: models.PendingSettlementSummary{OrderCount: 1, Total: decimal.RequireFromString("100")},
		}, nil)

		rec := httptest.NewRecorder()
		h.Reconcile(rec, cronRequest(http.MethodPost, "/cron/reconcile", `{"from":"2025-03-01","to":"2025-03-31"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["has_discrepancy"])
		snapshot := body["reconciliation"].(map[string]interface{})
		assert.Equal(t, float64(1), snapshot["pending_order_count"])
		r.AssertExpectations(t)
	})

	t.Run("body required", func(t *testing.T) {
		h, _, _, _ := setupHandler()
		rec := httptest.NewRecorder()
		h.Reconcile(rec, cronRequest(http.MethodPost, "/cron/reconcile", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing to", func(t *testing.T) {
		h, _, _, _ := setupHandler()
		rec := httptest.NewRecorder()
		h.Reconcile(rec, cronRequest(http.MethodPost, "/cron/reconcile", `{"from":"2025-03-01"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reversed range", func(t *testing.T) {
		h, _, _, r := setupHandler()
		rec := httptest.NewRecorder()
		h.Reconcile(rec, cronRequest(http.MethodPost, "/cron/reconcile", `{"from":"2025-03-31","to":"2025-03-01"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		r.AssertNotCalled(t, "RunReconciliation", mock.Anything, mock.Anything, mock.Anything)
	})
}
