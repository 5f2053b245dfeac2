// Package app wires configuration, storage and the ledger services together
// for the server and CLI binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kevin07696/marketplace-ledger/internal/adapters/cache"
	"github.com/kevin07696/marketplace-ledger/internal/adapters/database"
	"github.com/kevin07696/marketplace-ledger/internal/adapters/postgres"
	"github.com/kevin07696/marketplace-ledger/internal/adapters/secrets"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/internal/services/commission"
	"github.com/kevin07696/marketplace-ledger/internal/services/eligibility"
	"github.com/kevin07696/marketplace-ledger/internal/services/reconciliation"
	"github.com/kevin07696/marketplace-ledger/internal/services/refund"
	"github.com/kevin07696/marketplace-ledger/internal/services/settlement"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App holds the long-lived dependencies of a ledger process
type App struct {
	Config *config.Config
	Ledger config.LedgerConfig
	Logger *zap.Logger

	Database *database.PostgreSQLAdapter
	Redis    *redis.Client // nil when the report cache is disabled or unreachable

	Commission     *commission.Resolver
	Eligibility    *eligibility.Tracker
	Settlements    *settlement.Batcher
	Refunds        *refund.Ledger
	Reconciliation *reconciliation.Auditor
	Tax            *tax.Service
}

// NewLogger builds the process logger: production JSON unless development is set
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// New resolves secrets, opens the database and Redis, and builds every service.
// Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sm, err := secrets.New(ctx, cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("init secret manager: %w", err)
	}
	if err := secrets.ResolveDatabasePassword(ctx, sm, &cfg.Database); err != nil {
		return nil, err
	}

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns

	db, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	a := &App{
		Config:   cfg,
		Ledger:   config.DefaultLedger(),
		Logger:   logger,
		Database: db,
	}

	var reportCache ports.ReportCache
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// Reports fall back to recomputation
			logger.Warn("Report cache unavailable, continuing without it",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		} else {
			a.Redis = client
			reportCache = cache.NewRedisReportCache(client, time.Duration(cfg.Redis.TTL)*time.Second, logger)
		}
	}

	a.build(postgres.NewDBExecutor(db.Pool()), reportCache)

	logger.Info("Ledger services initialized",
		zap.String("database", cfg.Database.Database),
		zap.Bool("report_cache", reportCache != nil),
	)
	return a, nil
}

func (a *App) build(exec ports.DBPort, reportCache ports.ReportCache) {
	orders := postgres.NewOrderRepository(exec)
	catalog := postgres.NewCatalogRepository(exec)
	merchants := postgres.NewMerchantRepository(exec)
	rules := postgres.NewCommissionRuleRepository(exec)
	settlements := postgres.NewSettlementRepository(exec)
	refunds := postgres.NewRefundRepository(exec)
	notes := postgres.NewNoteRepository(exec)
	ledgerReader := postgres.NewLedgerReader(exec)
	reconciliations := postgres.NewReconciliationRepository(exec)

	a.Commission = commission.NewResolver(exec, rules, catalog, merchants, orders, a.Logger)
	a.Eligibility = eligibility.NewTracker(exec, orders, a.Ledger, a.Logger)
	a.Settlements = settlement.NewBatcher(exec, settlements, a.Ledger, a.Logger)
	a.Refunds = refund.NewLedger(exec, orders, catalog, settlements, refunds, notes, a.Ledger, a.Logger)
	a.Reconciliation = reconciliation.NewAuditor(exec, ledgerReader, reconciliations, a.Ledger, a.Logger)
	a.Tax = tax.NewService(exec, ledgerReader, reportCache, a.Ledger, a.Logger)
}

// Close releases Redis and the database pool
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	a.Database.Close()
}
