// Package eligibility stamps delivered orders with the date their revenue becomes payable.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"go.uber.org/zap"
)

// Result reports one eligibility run
type Result struct {
	Updated int64     `json:"updated"`
	RanAt   time.Time `json:"ran_at"`
}

// Tracker marks delivered orders eligible for settlement
type Tracker struct {
	db     ports.DBPort
	orders ports.OrderRepository
	cfg    config.LedgerConfig
	logger *zap.Logger
}

// NewTracker creates a new eligibility tracker
func NewTracker(db ports.DBPort, orders ports.OrderRepository, cfg config.LedgerConfig, logger *zap.Logger) *Tracker {
	return &Tracker{
		db:     db,
		orders: orders,
		cfg:    cfg,
		logger: logger,
	}
}

// CalculateEligibility sets settlement_eligible_at = delivered_at + window on every
// delivered order not yet stamped. Re-running it updates nothing new.
func (t *Tracker) CalculateEligibility(ctx context.Context) (*Result, error) {
	result := &Result{RanAt: timeutil.Now()}

	err := t.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		updated, err := t.orders.MarkEligible(ctx, tx, t.cfg.EligibilityWindow)
		if err != nil {
			return fmt.Errorf("mark orders eligible: %w", err)
		}
		result.Updated = updated
		return nil
	})
	if err != nil {
		t.logger.Error("Eligibility calculation failed", zap.Error(err))
		return nil, err
	}

	observability.RecordEligibilityRun(result.Updated)
	t.logger.Info("Eligibility calculated",
		zap.Int64("orders_updated", result.Updated),
		zap.Int("window_days", t.cfg.EligibilityDays()),
	)

	return result, nil
}
