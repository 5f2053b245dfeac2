package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_component_shutdown_duration_seconds",
		Help:    "Time taken to shutdown individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc represents a function that shuts down a component
type ShutdownFunc func(context.Context) error

// Component represents a registered shutdown component
type Component struct {
	Name         string
	ShutdownFunc ShutdownFunc
}

// Manager coordinates graceful shutdown of the service.
// Components stop one at a time in REVERSE registration order (LIFO), so the
// HTTP servers drain before the cron tracker, and the database pool closes last.
type Manager struct {
	logger     *zap.Logger
	components []Component
	mu         sync.Mutex
	timeout    time.Duration
	signals    []os.Signal
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Register adds a component. Register dependencies first: they are stopped last.
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, Component{Name: name, ShutdownFunc: fn})

	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// RegisterHTTPServer registers an HTTP server
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterNoErr registers a shutdown function that cannot fail
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts everything down
func (sm *Manager) WaitForShutdown(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, sm.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		sm.logger.Info("Received shutdown signal - initiating graceful shutdown",
			zap.String("signal", sig.String()),
			zap.Duration("timeout", sm.timeout),
		)
	case <-ctx.Done():
		sm.logger.Info("Context done - initiating graceful shutdown",
			zap.Duration("timeout", sm.timeout),
		)
	}

	return sm.Shutdown()
}

// Shutdown stops every registered component within the manager's timeout.
// It returns the joined component errors.
func (sm *Manager) Shutdown() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]Component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	sm.logger.Info("Starting graceful shutdown",
		zap.Int("component_count", len(components)),
		zap.Duration("timeout", sm.timeout),
	)

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		if err := sm.stop(ctx, components[i]); err != nil {
			errs = append(errs, err)
		}
	}

	elapsed := time.Since(start)
	shutdownDuration.Observe(elapsed.Seconds())

	if len(errs) > 0 {
		sm.logger.Error("Graceful shutdown completed with errors",
			zap.Int("error_count", len(errs)),
			zap.Duration("elapsed", elapsed),
		)
		return errors.Join(errs...)
	}

	sm.logger.Info("Graceful shutdown completed successfully",
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (sm *Manager) stop(ctx context.Context, comp Component) error {
	start := time.Now()
	sm.logger.Info("Shutting down component", zap.String("component", comp.Name))

	err := comp.ShutdownFunc(ctx)
	componentShutdownDuration.WithLabelValues(comp.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		shutdownErrors.WithLabelValues(comp.Name).Inc()
		sm.logger.Error("Component shutdown failed",
			zap.String("component", comp.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	sm.logger.Info("Component shut down successfully",
		zap.String("component", comp.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
