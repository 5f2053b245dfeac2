package tax

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service loads ledger figures and computes tax reports.
// The ledger is authoritative; the cache only serves dashboards.
type Service struct {
	db     ports.DBPort
	ledger ports.LedgerReader
	cache  ports.ReportCache // optional
	cfg    config.LedgerConfig
	logger *zap.Logger
}

// NewService creates a new tax service. cache may be nil.
func NewService(
	db ports.DBPort,
	ledger ports.LedgerReader,
	cache ports.ReportCache,
	cfg config.LedgerConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:     db,
		ledger: ledger,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// VATReturn recomputes the VAT return for the period from the ledger
func (s *Service) VATReturn(ctx context.Context, period models.Period) (*VATReturn, error) {
	var gmv, inputVAT decimal.Decimal

	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if gmv, err = s.ledger.SumGMV(ctx, tx, period); err != nil {
			return fmt.Errorf("sum gmv: %w", err)
		}
		if inputVAT, err = s.ledger.SumReclaimableInputVAT(ctx, tx, period); err != nil {
			return fmt.Errorf("sum input vat: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report, err := ComputeVATReturn(period.From, period.To, gmv, inputVAT, s.cfg.VATRate)
	if err != nil {
		return nil, err
	}

	s.store(ctx, vatKey(period), report)
	return report, nil
}

// CorporateTax recomputes corporate tax for the period from the ledger
func (s *Service) CorporateTax(ctx context.Context, period models.Period) (*CorporateTaxReport, error) {
	var in CorporateTaxInput

	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if in.CommissionEarned, err = s.ledger.SumCommissionEarned(ctx, tx, period); err != nil {
			return fmt.Errorf("sum commission earned: %w", err)
		}
		if in.PlatformFeeRevenue, err = s.ledger.SumPlatformFees(ctx, tx, period); err != nil {
			return fmt.Errorf("sum platform fees: %w", err)
		}
		if in.GatewayFees, err = s.ledger.SumGatewayFees(ctx, tx, period); err != nil {
			return fmt.Errorf("sum gateway fees: %w", err)
		}
		refunds, err := s.ledger.SummarizeRefunds(ctx, tx, period)
		if err != nil {
			return fmt.Errorf("summarize refunds: %w", err)
		}
		in.CommissionReversed = refunds.CommissionReversed
		if in.OperationalExpenses, err = s.ledger.SumDeductibleExpenses(ctx, tx, period); err != nil {
			return fmt.Errorf("sum deductible expenses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := ComputeCorporateTax(period.From, period.To, in, s.cfg)
	s.store(ctx, corporateKey(period), report)
	return report, nil
}

// CachedVATReturn serves the VAT return from the display cache, computing it on a miss
func (s *Service) CachedVATReturn(ctx context.Context, period models.Period) (*VATReturn, error) {
	var report VATReturn
	if s.load(ctx, vatKey(period), &report) {
		return &report, nil
	}
	return s.VATReturn(ctx, period)
}

// CachedCorporateTax serves corporate tax from the display cache, computing it on a miss
func (s *Service) CachedCorporateTax(ctx context.Context, period models.Period) (*CorporateTaxReport, error) {
	var report CorporateTaxReport
	if s.load(ctx, corporateKey(period), &report) {
		return &report, nil
	}
	return s.CorporateTax(ctx, period)
}

// load returns true on a cache hit. Cache failures are logged and treated as misses.
func (s *Service) load(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (s *Service) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func vatKey(p models.Period) string {
	return "tax:vat:" + p.From.Format(timeutil.DateLayout) + ":" + p.To.Format(timeutil.DateLayout)
}

func corporateKey(p models.Period) string {
	return "tax:corporate:" + p.From.Format(timeutil.DateLayout) + ":" + p.To.Format(timeutil.DateLayout)
}
