package reconciliation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/services/reconciliation"
	"github.com/kevin07696/marketplace-ledger/internal/testutil/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	from   = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to     = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	period = models.Period{From: from, To: to}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAuditor() (*reconciliation.Auditor, *mocks.MockLedgerReader, *mocks.MockReconciliationRepository, *mocks.MockDBPort) {
	db := &mocks.MockDBPort{}
	ledger := new(mocks.MockLedgerReader)
	repo := new(mocks.MockReconciliationRepository)
	return reconciliation.NewAuditor(db, ledger, repo, config.DefaultLedger(), zap.NewNop()), ledger, repo, db
}

func expectFigures(ledger *mocks.MockLedgerReader, settlementsPaid string) {
	ledger.On("SumGMV", mock.Anything, mock.Anything, period).Return(d("21000.00"), nil)
	ledger.On("SumCommissionEarned", mock.Anything, mock.Anything, period).Return(d("2000.00"), nil)
	ledger.On("SumCommissionAccrued", mock.Anything, mock.Anything).Return(d("350.00"), nil)
	ledger.On("SummarizeRefunds", mock.Anything, mock.Anything, period).Return(models.RefundSummary{
		Count:              1,
		TotalRefunded:      d("1050.00"),
		CommissionReversed: d("105.00"),
		MerchantRecovery:   d("895.00"),
	}, nil)
	ledger.On("SumSettlementsPaid", mock.Anything, mock.Anything, period).Return(d(settlementsPaid), nil)
	ledger.On("SummarizeDebitNotes", mock.Anything, mock.Anything, period).Return(models.DebitNoteSummary{
		Count: 1,
		Total: d("895.00"),
	}, nil)
	ledger.On("SummarizePendingSettlements", mock.Anything, mock.Anything).Return(models.PendingSettlementSummary{
		OrderCount: 3,
		Total:      d("2950.00"),
	}, nil)
}

func TestReconcile_Balanced(t *testing.T) {
	ctx := context.Background()
	a, ledger, _, _ := newAuditor()
	expectFigures(ledger, "17950.00")

	rec, err := a.Reconcile(ctx, from, to)
	require.NoError(t, err)

	assert.Equal(t, from, rec.PeriodStart)
	assert.Equal(t, to, rec.PeriodEnd)
	assert.True(t, rec.TaxCollected.Equal(d("1000.00")))
	assert.True(t, rec.CommissionAccrued.Equal(d("350.00")))
	assert.True(t, rec.NetPlatformRevenue.Equal(d("1895.00")))
	assert.True(t, rec.ExpectedMerchantPayables.Equal(d("17950.00")))
	assert.True(t, rec.DiscrepancyAmount.IsZero())
	assert.Empty(t, rec.DiscrepancyNotes)
	assert.Equal(t, 1, rec.DebitNotes.Count)
	ledger.AssertExpectations(t)
}

func TestReconcile_DiscrepancyNotes(t *testing.T) {
	ctx := context.Background()
	a, ledger, _, _ := newAuditor()
	expectFigures(ledger, "15000.00")

	rec, err := a.Reconcile(ctx, from, to)
	require.NoError(t, err)

	assert.True(t, rec.DiscrepancyAmount.Equal(d("2950.00")))
	assert.Contains(t, rec.DiscrepancyNotes, "2950.00")
	assert.Contains(t, rec.DiscrepancyNotes, "3 delivered, paid, unsettled orders")
}

func TestReconcile_SingleUnsettledOrder(t *testing.T) {
	a, ledger, _, _ := newAuditor()
	ledger.On("SumGMV", mock.Anything, mock.Anything, period).Return(d("10500.00"), nil)
	ledger.On("SumCommissionEarned", mock.Anything, mock.Anything, period).Return(decimal.Zero, nil)
	ledger.On("SumCommissionAccrued", mock.Anything, mock.Anything).Return(d("1050.00"), nil)
	ledger.On("SummarizeRefunds", mock.Anything, mock.Anything, period).Return(models.RefundSummary{}, nil)
	ledger.On("SumSettlementsPaid", mock.Anything, mock.Anything, period).Return(decimal.Zero, nil)
	ledger.On("SummarizeDebitNotes", mock.Anything, mock.Anything, period).Return(models.DebitNoteSummary{}, nil)
	ledger.On("SummarizePendingSettlements", mock.Anything, mock.Anything).Return(models.PendingSettlementSummary{
		OrderCount: 1,
		Total:      d("10500.00"),
	}, nil)

	rec, err := a.Reconcile(context.Background(), from, to)
	require.NoError(t, err)

	assert.False(t, rec.DiscrepancyAmount.IsZero())
	assert.True(t, rec.DiscrepancyAmount.Equal(d("10500.00")))
	assert.Equal(t, 1, rec.PendingSettlements.OrderCount)
	assert.Contains(t, rec.DiscrepancyNotes, "across 1 delivered, paid, unsettled orders")
}

func TestReconcile_Tolerance(t *testing.T) {
	tests := []struct {
		name            string
		settlementsPaid string
		wantNotes       bool
	}{
		{name: "one cent under", settlementsPaid: "17949.99", wantNotes: false},
		{name: "one cent over", settlementsPaid: "17950.01", wantNotes: false},
		{name: "two cents under", settlementsPaid: "17949.98", wantNotes: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ledger, _, _ := newAuditor()
			expectFigures(ledger, tt.settlementsPaid)

			rec, err := a.Reconcile(context.Background(), from, to)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNotes, rec.DiscrepancyNotes != "")
		})
	}
}

func TestReconcile_InvalidPeriod(t *testing.T) {
	a, _, _, _ := newAuditor()

	_, err := a.Reconcile(context.Background(), to, from)
	assert.True(t, domain.IsValidationError(err))

	_, err = a.Reconcile(context.Background(), from, from)
	assert.True(t, domain.IsValidationError(err))
}

func TestReconcile_StorageFailure(t *testing.T) {
	a, ledger, _, _ := newAuditor()
	ledger.On("SumGMV", mock.Anything, mock.Anything, period).
		Return(decimal.Zero, domain.WrapError(domain.ErrorCodeStorageUnavailable, "ledger storage unavailable", errors.New("dial tcp: refused")))

	_, err := a.Reconcile(context.Background(), from, to)
	assert.True(t, domain.IsExternalDependencyError(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestRunReconciliation_Persists(t *testing.T) {
	ctx := context.Background()
	a, ledger, repo, db := newAuditor()
	expectFigures(ledger, "15000.00")

	var saved *models.Reconciliation
	repo.On("Save", ctx, mock.Anything, mock.AnythingOfType("*models.Reconciliation")).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*models.Reconciliation) }).
		Return(nil)

	rec, err := a.RunReconciliation(ctx, from, to)
	require.NoError(t, err)

	assert.Same(t, rec, saved)
	assert.Equal(t, 1, db.Transactions)
	assert.NotEmpty(t, rec.DiscrepancyNotes)
}

func TestRunReconciliation_SaveFailure(t *testing.T) {
	ctx := context.Background()
	a, ledger, repo, _ := newAuditor()
	expectFigures(ledger, "17950.00")
	repo.On("Save", ctx, mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	rec, err := a.RunReconciliation(ctx, from, to)
	assert.Nil(t, rec)
	assert.ErrorContains(t, err, "save reconciliation")
}

func TestListReconciliations_ClampsLimit(t *testing.T) {
	ctx := context.Background()
	a, _, repo, _ := newAuditor()

	want := []*models.Reconciliation{{ID: "rec-1"}}
	repo.On("List", ctx, nil, int32(20)).Return(want, nil)

	got, err := a.ListReconciliations(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
