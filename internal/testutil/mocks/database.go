// Package mocks provides shared mock implementations of the ledger ports for testing.
package mocks

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDBPort runs transaction callbacks inline with a nil transaction.
// Set TxErr to make WithTransaction fail before the callback runs.
type MockDBPort struct {
	mock.Mock
	TxErr        error
	Transactions int
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.Transactions++
	if m.TxErr != nil {
		return m.TxErr
	}
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	return fn(ctx, nil)
}

// MockOrderRepository mocks ports.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetOrder(ctx context.Context, db ports.DBTX, id string) (*models.Order, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateOrderStatus(ctx context.Context, tx ports.DBTX, id string, status models.OrderStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkEligible(ctx context.Context, tx ports.DBTX, window time.Duration) (int64, error) {
	args := m.Called(ctx, tx, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) GetOrderLine(ctx context.Context, db ports.DBTX, id string) (*models.OrderLine, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderLine), args.Error(1)
}

func (m *MockOrderRepository) GetOrderLineForUpdate(ctx context.Context, tx ports.DBTX, id string) (*models.OrderLine, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderLine), args.Error(1)
}

func (m *MockOrderRepository) ListOrderLines(ctx context.Context, db ports.DBTX, orderID string) ([]*models.OrderLine, error) {
	args := m.Called(ctx, db, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OrderLine), args.Error(1)
}

func (m *MockOrderRepository) FreezeCommission(ctx context.Context, tx ports.DBTX, lineID string, res *models.CommissionResolution, amount decimal.Decimal, frozenAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, lineID, res, amount, frozenAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) RecordLineRefund(ctx context.Context, tx ports.DBTX, lineID string, quantity int, commissionReversed decimal.Decimal) error {
	args := m.Called(ctx, tx, lineID, quantity, commissionReversed)
	return args.Error(0)
}

func (m *MockOrderRepository) GetInvoice(ctx context.Context, db ports.DBTX, orderID, merchantID string) (*models.Invoice, error) {
	args := m.Called(ctx, db, orderID, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

// MockCatalogRepository mocks ports.CatalogRepository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetProduct(ctx context.Context, db ports.DBTX, id string) (*models.Product, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCatalogRepository) RestoreStock(ctx context.Context, tx ports.DBTX, productID string, quantity int) error {
	args := m.Called(ctx, tx, productID, quantity)
	return args.Error(0)
}

// MockMerchantRepository mocks ports.MerchantRepository
type MockMerchantRepository struct {
	mock.Mock
}

func (m *MockMerchantRepository) GetMerchant(ctx context.Context, db ports.DBTX, id string) (*models.Merchant, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

func (m *MockMerchantRepository) GetSalesVolume(ctx context.Context, db ports.DBTX, merchantID string) (decimal.Decimal, error) {
	args := m.Called(ctx, db, merchantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockCommissionRuleRepository mocks ports.CommissionRuleRepository
type MockCommissionRuleRepository struct {
	mock.Mock
}

func (m *MockCommissionRuleRepository) ListCandidateRules(ctx context.Context, db ports.DBTX, productID string, categoryIDs []string, merchantID string) ([]models.CommissionRule, error) {
	args := m.Called(ctx, db, productID, categoryIDs, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CommissionRule), args.Error(1)
}
