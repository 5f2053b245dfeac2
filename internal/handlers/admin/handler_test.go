package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/services/commission"
	"github.com/kevin07696/marketplace-ledger/internal/services/refund"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mocks
// =============================================================================

type mockRefunds struct{ mock.Mock }

func (m *mockRefunds) CreateRefund(ctx context.Context, req refund.CreateRefundRequest) (*models.Refund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *mockRefunds) ApproveRefund(ctx context.Context, refundID, approver string) (*models.Refund, error) {
	args := m.Called(ctx, refundID, approver)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *mockRefunds) ProcessRefund(ctx context.Context, refundID string) (*refund.ProcessResult, error) {
	args := m.Called(ctx, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.ProcessResult), args.Error(1)
}

func (m *mockRefunds) GetRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	args := m.Called(ctx, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *mockRefunds) ListDebitNotes(ctx context.Context, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error) {
	args := m.Called(ctx, merchantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MerchantDebitNote), args.Error(1)
}

type mockSettlements struct{ mock.Mock }

func (m *mockSettlements) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *mockSettlements) ListSettlements(ctx context.Context, merchantID string, limit, offset int32) ([]*models.Settlement, error) {
	args := m.Called(ctx, merchantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Settlement), args.Error(1)
}

func (m *mockSettlements) MarkPaid(ctx context.Context, settlementID, transactionRef string) (*models.Settlement, error) {
	args := m.Called(ctx, settlementID, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

type mockReconciliations struct{ mock.Mock }

func (m *mockReconciliations) ListReconciliations(ctx context.Context, limit int32) ([]*models.Reconciliation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reconciliation), args.Error(1)
}

type mockTax struct{ mock.Mock }

func (m *mockTax) VATReturn(ctx context.Context, period models.Period) (*tax.VATReturn, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.VATReturn), args.Error(1)
}

func (m *mockTax) CorporateTax(ctx context.Context, period models.Period) (*tax.CorporateTaxReport, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.CorporateTaxReport), args.Error(1)
}

func (m *mockTax) CachedVATReturn(ctx context.Context, period models.Period) (*tax.VATReturn, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.VATReturn), args.Error(1)
}

func (m *mockTax) CachedCorporateTax(ctx context.Context, period models.Period) (*tax.CorporateTaxReport, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.CorporateTaxReport), args.Error(1)
}

type mockFreezer struct{ mock.Mock }

func (m *mockFreezer) FreezeOrderLine(ctx context.Context, lineID string) (*commission.FreezeResult, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.FreezeResult), args.Error(1)
}

// =============================================================================
// Test Setup
// =============================================================================

type testDeps struct {
	refunds         *mockRefunds
	settlements     *mockSettlements
	reconciliations *mockReconciliations
	tax             *mockTax
	freezer         *mockFreezer
	router          http.Handler
}

func setup(t *testing.T) *testDeps {
	t.Helper()
	d := &testDeps{
		refunds:         new(mockRefunds),
		settlements:     new(mockSettlements),
		reconciliations: new(mockReconciliations),
		tax:             new(mockTax),
		freezer:         new(mockFreezer),
	}
	h := NewHandler(d.refunds, d.settlements, d.reconciliations, d.tax, d.freezer, zap.NewNop())
	d.router = h.Routes()
	return d
}

func (d *testDeps) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	d.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	return body["data"].(map[string]interface{})
}

// =============================================================================
// Refunds
// =============================================================================

func TestCreateRefund(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := setup(t)
		d.refunds.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req refund.CreateRefundRequest) bool {
			return req.OrderID == "o-1" &&
				req.Type == models.RefundPartial &&
				req.MerchantID == nil &&
				len(req.Lines) == 1 &&
				req.Lines[0].OrderLineID == "l-1" &&
				req.Lines[0].Quantity == 1
		})).Return(&models.Refund{
			ID:                     "r-1",
			OrderID:                "o-1",
			MerchantID:             "m-1",
			Type:                   models.RefundPartial,
			Status:                 models.RefundPending,
			Subtotal:               decimal.RequireFromString("47.62"),
			IsPostSettlement:       true,
			MerchantRecoveryAmount: decimal.RequireFromString("42.86"),
		}, nil)

		rec := d.do(http.MethodPost, "/refunds",
			`{"order_id":"o-1","type":"partial","lines":[{"order_line_id":"l-1","quantity":1,"reason":"damaged"}]}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		got := data(t, rec)
		assert.Equal(t, "r-1", got["id"])
		assert.Equal(t, "42.86", got["merchant_recovery_amount"])
		assert.Equal(t, true, got["is_post_settlement"])
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing order", `{"type":"full","lines":[{"order_line_id":"l-1","quantity":1}]}`},
		{"bad type", `{"order_id":"o-1","type":"store_credit","lines":[{"order_line_id":"l-1","quantity":1}]}`},
		{"no lines", `{"order_id":"o-1","type":"full","lines":[]}`},
		{"zero quantity", `{"order_id":"o-1","type":"full","lines":[{"order_line_id":"l-1","quantity":0}]}`},
		{"malformed json", `{"order_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setup(t)
			rec := d.do(http.MethodPost, "/refunds", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			d.refunds.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
		})
	}

	t.Run("quantity exceeds unrefunded", func(t *testing.T) {
		d := setup(t)
		d.refunds.On("CreateRefund", mock.Anything, mock.Anything).
			Return(nil, domain.ErrInvalidQuantity.WithDetail("order_line_id", "l-1"))

		rec := d.do(http.MethodPost, "/refunds",
			`{"order_id":"o-1","type":"partial","lines":[{"order_line_id":"l-1","quantity":9}]}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, string(domain.ErrorCodeValidationInvalidQuantity), body["code"])
	})
}

func TestApproveRefund(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := setup(t)
		approver := "ops@example.com"
		now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		d.refunds.On("ApproveRefund", mock.Anything, "r-1", approver).
			Return(&models.Refund{ID: "r-1", Status: models.RefundApproved, ApprovedBy: &approver, ApprovedAt: &now}, nil)

		rec := d.do(http.MethodPost, "/refunds/r-1/approve", `{"approved_by":"ops@example.com"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		got := data(t, rec)
		assert.Equal(t, "approved", got["status"])
		assert.Equal(t, approver, got["approved_by"])
	})

	t.Run("invalid transition is a conflict", func(t *testing.T) {
		d := setup(t)
		d.refunds.On("ApproveRefund", mock.Anything, "r-1", "ops").
			Return(nil, domain.ErrRefundTransition.WithDetail("status", "processed"))

		rec := d.do(http.MethodPost, "/refunds/r-1/approve", `{"approved_by":"ops"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("approver required", func(t *testing.T) {
		d := setup(t)
		rec := d.do(http.MethodPost, "/refunds/r-1/approve", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcessRefund(t *testing.T) {
	t.Run("post settlement issues debit note", func(t *testing.T) {
		d := setup(t)
		settlementID := "s-1"
		d.refunds.On("ProcessRefund", mock.Anything, "r-1").Return(&refund.ProcessResult{
			Refund:     &models.Refund{ID: "r-1", Status: models.RefundProcessed},
			CreditNote: &models.CreditNote{ID: "cn-1", Number: "CN-20250310-ABCD1234", Total: decimal.RequireFromString("50")},
			DebitNote: &models.MerchantDebitNote{
				ID:             "dn-1",
				SettlementID:   &settlementID,
				RecoveryAmount: decimal.RequireFromString("42.86"),
				Status:         models.DebitNoteOutstanding,
			},
			StockRestored: 1,
		}, nil)

		rec := d.do(http.MethodPost, "/refunds/r-1/process", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := data(t, rec)
		assert.Equal(t, float64(1), got["stock_restored"])
		debit := got["debit_note"].(map[string]interface{})
		assert.Equal(t, "42.86", debit["recovery_amount"])
		assert.Equal(t, "s-1", debit["settlement_id"])
		assert.NotNil(t, got["credit_note"])
	})

	t.Run("not approved", func(t *testing.T) {
		d := setup(t)
		d.refunds.On("ProcessRefund", mock.Anything, "r-2").Return(nil, domain.ErrRefundNotApproved)

		rec := d.do(http.MethodPost, "/refunds/r-2/process", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestGetRefund_NotFound(t *testing.T) {
	d := setup(t)
	d.refunds.On("GetRefund", mock.Anything, "missing").Return(nil, domain.ErrRefundNotFound.WithDetail("refund_id", "missing"))

	rec := d.do(http.MethodGet, "/refunds/missing", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(domain.ErrorCodeRefundNotFound), decode(t, rec)["code"])
}

func TestListDebitNotes(t *testing.T) {
	t.Run("filters pass through", func(t *testing.T) {
		d := setup(t)
		d.refunds.On("ListDebitNotes", mock.Anything, "m-1", models.DebitNoteOutstanding, int32(10), int32(20)).
			Return([]*models.MerchantDebitNote{{ID: "dn-1", Status: models.DebitNoteOutstanding}}, nil)

		rec := d.do(http.MethodGet, "/debit-notes?merchant_id=m-1&status=outstanding&limit=10&offset=20", "")

		require.Equal(t, http.StatusOK, rec.Code)
		items := decode(t, rec)["items"].([]interface{})
		assert.Len(t, items, 1)
	})

	t.Run("unknown status", func(t *testing.T) {
		d := setup(t)
		rec := d.do(http.MethodGet, "/debit-notes?status=written_off", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		d := setup(t)
		rec := d.do(http.MethodGet, "/debit-notes?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// Settlements
// =============================================================================

func TestListSettlements(t *testing.T) {
	t.Run("merchant required", func(t *testing.T) {
		d := setup(t)
		rec := d.do(http.MethodGet, "/settlements", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("defaults passed as zero", func(t *testing.T) {
		d := setup(t)
		d.settlements.On("ListSettlements", mock.Anything, "m-1", int32(0), int32(0)).
			Return([]*models.Settlement{{ID: "s-1", MerchantID: "m-1", Status: models.SettlementPending}}, nil)

		rec := d.do(http.MethodGet, "/settlements?merchant_id=m-1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		items := decode(t, rec)["items"].([]interface{})
		require.Len(t, items, 1)
		assert.Equal(t, "pending", items[0].(map[string]interface{})["status"])
	})
}

func TestMarkSettlementPaid(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := setup(t)
		ref := "WIRE-42"
		paidAt := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
		d.settlements.On("MarkPaid", mock.Anything, "s-1", ref).
			Return(&models.Settlement{ID: "s-1", Status: models.SettlementPaid, TransactionReference: &ref, PaidAt: &paidAt}, nil)

		rec := d.do(http.MethodPost, "/settlements/s-1/mark-paid", `{"transaction_reference":"WIRE-42"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		got := data(t, rec)
		assert.Equal(t, "paid", got["status"])
		assert.Equal(t, "WIRE-42", got["transaction_reference"])
	})

	t.Run("already paid", func(t *testing.T) {
		d := setup(t)
		d.settlements.On("MarkPaid", mock.Anything, "s-1", "WIRE-43").Return(nil, domain.ErrSettlementAlreadyPaid)

		rec := d.do(http.MethodPost, "/settlements/s-1/mark-paid", `{"transaction_reference":"WIRE-43"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("reference required", func(t *testing.T) {
		d := setup(t)
		rec := d.do(http.MethodPost, "/settlements/s-1/mark-paid", `{"transaction_reference":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetSettlement_NotFound(t *testing.T) {
	d := setup(t)
	d.settlements.On("GetSettlement", mock.Anything, "nope").Return(nil, domain.ErrSettlementNotFound)

	rec := d.do(http.MethodGet, "/settlements/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Reports
// =============================================================================

func TestListReconciliations(t *testing.T) {
	d := setup(t)
	d.reconciliations.On("ListReconciliations", mock.Anything, int32(5)).
		Return([]*models.Reconciliation{{ID: "rec-1", DiscrepancyAmount: decimal.RequireFromString("-3.2")}}, nil)

	rec := d.do(http.MethodGet, "/reconciliations?limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "-3.20", items[0].(map[string]interface{})["discrepancy_amount"])
}

func TestTaxReports(t *testing.T) {
	march := models.Period{
		From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("vat return served from cache by default", func(t *testing.T) {
		d := setup(t)
		d.tax.On("CachedVATReturn", mock.Anything, march).Return(&tax.VATReturn{
			GMV:       decimal.RequireFromString("10500"),
			OutputVAT: decimal.RequireFromString("500"),
		}, nil)

		rec := d.do(http.MethodGet, "/tax/vat-return?from=2025-03-01&to=2025-03-31", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "500", data(t, rec)["output_vat"])
		d.tax.AssertNotCalled(t, "VATReturn", mock.Anything, mock.Anything)
	})

	t.Run("fresh bypasses cache", func(t *testing.T) {
		d := setup(t)
		d.tax.On("CorporateTax", mock.Anything, march).Return(&tax.CorporateTaxReport{
			TaxDue: decimal.RequireFromString("4050"),
		}, nil)

		rec := d.do(http.MethodGet, "/tax/corporate?from=2025-03-01&to=2025-03-31&fresh=true", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "4050", data(t, rec)["tax_due"])
		d.tax.AssertNotCalled(t, "CachedCorporateTax", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name  string
		query string
	}{
		{"missing from", "?to=2025-03-31"},
		{"bad to", "?from=2025-03-01&to=31-03-2025"},
		{"reversed", "?from=2025-03-31&to=2025-03-01"},
		{"bad fresh", "?from=2025-03-01&to=2025-03-31&fresh=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setup(t)
			rec := d.do(http.MethodGet, "/tax/vat-return"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestFreezeCommission(t *testing.T) {
	frozenAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	line := &models.OrderLine{
		ID:                 "l-1",
		OrderID:            "o-1",
		MerchantID:         "m-1",
		Subtotal:           decimal.RequireFromString("100"),
		CommissionType:     models.CommissionPercentage,
		CommissionRate:     decimal.RequireFromString("10"),
		CommissionAmount:   decimal.RequireFromString("10"),
		CommissionSource:   models.SourceProductRule,
		CommissionFrozenAt: &frozenAt,
	}

	t.Run("first freeze creates", func(t *testing.T) {
		d := setup(t)
		d.freezer.On("FreezeOrderLine", mock.Anything, "l-1").Return(&commission.FreezeResult{Line: line}, nil)

		rec := d.do(http.MethodPost, "/commission/order-lines/l-1/freeze", "")

		require.Equal(t, http.StatusCreated, rec.Code)
		got := data(t, rec)
		assert.Equal(t, "product_rule", got["commission_source"])
		assert.Equal(t, "10.00", got["commission_amount"])
		assert.Equal(t, false, got["already_frozen"])
	})

	t.Run("repeat freeze returns stored values", func(t *testing.T) {
		d := setup(t)
		d.freezer.On("FreezeOrderLine", mock.Anything, "l-1").Return(&commission.FreezeResult{Line: line, AlreadyFrozen: true}, nil)

		rec := d.do(http.MethodPost, "/commission/order-lines/l-1/freeze", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, data(t, rec)["already_frozen"])
	})

	t.Run("unknown line", func(t *testing.T) {
		d := setup(t)
		d.freezer.On("FreezeOrderLine", mock.Anything, "l-9").Return(nil, domain.ErrOrderLineNotFound)

		rec := d.do(http.MethodPost, "/commission/order-lines/l-9/freeze", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
