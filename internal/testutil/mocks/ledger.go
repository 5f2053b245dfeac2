package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockSettlementRepository mocks ports.SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) LockMerchant(ctx context.Context, tx ports.DBTX, merchantID string) error {
	args := m.Called(ctx, tx, merchantID)
	return args.Error(0)
}

func (m *MockSettlementRepository) ListEligibleMerchants(ctx context.Context, db ports.DBTX, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, db, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSettlementRepository) ListEligibleLines(ctx context.Context, db ports.DBTX, merchantID string, cutoff time.Time) ([]models.EligibleLine, error) {
	args := m.Called(ctx, db, merchantID, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EligibleLine), args.Error(1)
}

func (m *MockSettlementRepository) Create(ctx context.Context, tx ports.DBTX, settlement *models.Settlement) error {
	args := m.Called(ctx, tx, settlement)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Settlement, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.Settlement, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) ListByMerchant(ctx context.Context, db ports.DBTX, merchantID string, limit, offset int32) ([]*models.Settlement, error) {
	args := m.Called(ctx, db, merchantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) MarkPaid(ctx context.Context, tx ports.DBTX, id string, transactionRef string, paidAt time.Time) error {
	args := m.Called(ctx, tx, id, transactionRef, paidAt)
	return args.Error(0)
}

func (m *MockSettlementRepository) IsOrderSettled(ctx context.Context, db ports.DBTX, orderID, merchantID string) (bool, error) {
	args := m.Called(ctx, db, orderID, merchantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) LatestSettlementIDForOrder(ctx context.Context, db ports.DBTX, orderID, merchantID string) (*string, error) {
	args := m.Called(ctx, db, orderID, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

// MockRefundRepository mocks ports.RefundRepository
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *models.Refund) error {
	args := m.Called(ctx, tx, refund)
	return args.Error(0)
}

func (m *MockRefundRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.Refund, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *MockRefundRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.Refund, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Refund), args.Error(1)
}

func (m *MockRefundRepository) Approve(ctx context.Context, tx ports.DBTX, id string, approver string, at time.Time) error {
	args := m.Called(ctx, tx, id, approver, at)
	return args.Error(0)
}

func (m *MockRefundRepository) MarkProcessed(ctx context.Context, tx ports.DBTX, id string, at time.Time) error {
	args := m.Called(ctx, tx, id, at)
	return args.Error(0)
}

func (m *MockRefundRepository) UpdateCommissionReversal(ctx context.Context, tx ports.DBTX, refund *models.Refund) error {
	args := m.Called(ctx, tx, refund)
	return args.Error(0)
}

func (m *MockRefundRepository) MarkStockRestored(ctx context.Context, tx ports.DBTX, refundLineID string) (bool, error) {
	args := m.Called(ctx, tx, refundLineID)
	return args.Bool(0), args.Error(1)
}

// MockNoteRepository mocks ports.NoteRepository
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) GetCreditNoteByRefund(ctx context.Context, db ports.DBTX, refundID string) (*models.CreditNote, error) {
	args := m.Called(ctx, db, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditNote), args.Error(1)
}

func (m *MockNoteRepository) CreateCreditNote(ctx context.Context, tx ports.DBTX, note *models.CreditNote) error {
	args := m.Called(ctx, tx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) GetDebitNoteByRefund(ctx context.Context, db ports.DBTX, refundID string) (*models.MerchantDebitNote, error) {
	args := m.Called(ctx, db, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MerchantDebitNote), args.Error(1)
}

func (m *MockNoteRepository) CreateDebitNote(ctx context.Context, tx ports.DBTX, note *models.MerchantDebitNote) error {
	args := m.Called(ctx, tx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) ListDebitNotes(ctx context.Context, db ports.DBTX, merchantID string, status models.DebitNoteStatus, limit, offset int32) ([]*models.MerchantDebitNote, error) {
	args := m.Called(ctx, db, merchantID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MerchantDebitNote), args.Error(1)
}

// MockLedgerReader mocks ports.LedgerReader
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) decimalResult(args mock.Arguments) (decimal.Decimal, error) {
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerReader) SumGMV(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SumCommissionEarned(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SumCommissionAccrued(ctx context.Context, db ports.DBTX) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db))
}

func (m *MockLedgerReader) SummarizeRefunds(ctx context.Context, db ports.DBTX, period models.Period) (models.RefundSummary, error) {
	args := m.Called(ctx, db, period)
	return args.Get(0).(models.RefundSummary), args.Error(1)
}

func (m *MockLedgerReader) SumSettlementsPaid(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SummarizeDebitNotes(ctx context.Context, db ports.DBTX, period models.Period) (models.DebitNoteSummary, error) {
	args := m.Called(ctx, db, period)
	return args.Get(0).(models.DebitNoteSummary), args.Error(1)
}

func (m *MockLedgerReader) SummarizePendingSettlements(ctx context.Context, db ports.DBTX) (models.PendingSettlementSummary, error) {
	args := m.Called(ctx, db)
	return args.Get(0).(models.PendingSettlementSummary), args.Error(1)
}

func (m *MockLedgerReader) SumPlatformFees(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SumGatewayFees(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SumReclaimableInputVAT(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

func (m *MockLedgerReader) SumDeductibleExpenses(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return m.decimalResult(m.Called(ctx, db, period))
}

// MockReconciliationRepository mocks ports.ReconciliationRepository
type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) Save(ctx context.Context, tx ports.DBTX, rec *models.Reconciliation) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func (m *MockReconciliationRepository) List(ctx context.Context, db ports.DBTX, limit int32) ([]*models.Reconciliation, error) {
	args := m.Called(ctx, db, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reconciliation), args.Error(1)
}

// MockReportCache mocks ports.ReportCache
type MockReportCache struct {
	mock.Mock
}

func (m *MockReportCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockReportCache) Set(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
