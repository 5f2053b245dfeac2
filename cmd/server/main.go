package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/marketplace-ledger/internal/app"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/pkg/middleware"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/shutdown"
)

const poolMonitorInterval = 30 * time.Second

func main() {
	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting marketplace ledger service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
		zap.String("secret_manager", cfg.Secrets.Manager),
	)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ledgerApp, err := app.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}

	shutdownMgr := shutdown.NewManager(logger, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)

	// Registered first, closed last
	shutdownMgr.RegisterNoErr("storage", ledgerApp.Close)

	poolMonitor := shutdown.NewPeriodicWorker("db-pool-monitor", poolMonitorInterval, logger)
	poolMonitor.Start(func(ctx context.Context) { ledgerApp.Database.LogPoolStats() })
	shutdownMgr.Register("db-pool-monitor", poolMonitor.Shutdown)

	rateLimiter := middleware.NewRateLimiter(float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst, logger)
	shutdownMgr.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	cronJobs := shutdown.NewInFlightTracker("cron-jobs", logger)
	shutdownMgr.Register("cron-jobs", cronJobs.Shutdown)

	healthChecker := observability.NewHealthChecker(ledgerApp.Database.Pool(), ledgerApp.Redis)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           newRouter(ledgerApp, rateLimiter, cronJobs),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	shutdownMgr.RegisterHTTPServer("http-server", httpServer)

	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	if err := shutdownMgr.WaitForShutdown(context.Background()); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Servers stopped")
}
