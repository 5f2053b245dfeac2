package ports

import (
	"context"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
)

// SettlementRepository defines the interface for settlement data persistence
type SettlementRepository interface {
	// LockMerchant takes a transaction-scoped advisory lock for the merchant
	LockMerchant(ctx context.Context, tx DBTX, merchantID string) error

	// Eligibility queries. cutoff is the end of the payout date.
	ListEligibleMerchants(ctx context.Context, db DBTX, cutoff time.Time) ([]string, error)
	ListEligibleLines(ctx context.Context, db DBTX, merchantID string, cutoff time.Time) ([]models.EligibleLine, error)

	// Create inserts the settlement and its lines. A line for an (order, merchant)
	// pair that is already settled yields domain.ErrAlreadySettled.
	Create(ctx context.Context, tx DBTX, settlement *models.Settlement) error

	GetByID(ctx context.Context, db DBTX, id string) (*models.Settlement, error)
	GetByIDForUpdate(ctx context.Context, tx DBTX, id string) (*models.Settlement, error)
	ListByMerchant(ctx context.Context, db DBTX, merchantID string, limit, offset int32) ([]*models.Settlement, error)
	MarkPaid(ctx context.Context, tx DBTX, id string, transactionRef string, paidAt time.Time) error

	// IsOrderSettled reports whether a settlement line exists for order and merchant
	IsOrderSettled(ctx context.Context, db DBTX, orderID, merchantID string) (bool, error)

	// LatestSettlementIDForOrder returns the most recent settlement containing the
	// order for the merchant, or nil when there is none
	LatestSettlementIDForOrder(ctx context.Context, db DBTX, orderID, merchantID string) (*string, error)
}
