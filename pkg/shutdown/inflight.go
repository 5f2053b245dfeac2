package shutdown

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InFlightTracker tracks running ledger jobs so shutdown waits for a settlement
// or reconciliation run to commit instead of cutting its connection.
type InFlightTracker struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
	logger   *zap.Logger
	name     string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		logger: logger,
		name:   name,
	}
}

// Add registers one unit of work.
// Returns false if shutdown has been initiated (don't start new work)
func (ift *InFlightTracker) Add() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()

	if ift.stopping {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done marks one unit of work complete
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return ift.stopping
}

// Shutdown rejects new work and waits for in-flight work to complete.
// Returns ctx.Err() if the deadline passes first.
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	ift.stopping = true
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// Middleware tracks each request as in-flight work and answers 503 once shutdown began.
// The job runs on a context detached from the client so a dropped caller does not
// roll back a run that is about to commit.
func (ift *InFlightTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ift.Add() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success":   false,
				"error":     "service is shutting down",
				"retryable": true,
			})
			return
		}
		defer ift.Done()

		next.ServeHTTP(w, r.WithContext(context.WithoutCancel(r.Context())))
	})
}

// PeriodicWorker runs a function on an interval until shut down
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// NewPeriodicWorker creates a new periodic worker
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs work every interval in a goroutine. work should respect ctx.Done().
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	pw.cancel = cancel

	go func() {
		defer close(pw.done)

		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		pw.logger.Info("Periodic worker started",
			zap.String("worker", pw.name),
			zap.Duration("interval", pw.interval),
		)

		for {
			select {
			case <-ctx.Done():
				pw.logger.Info("Periodic worker stopped", zap.String("worker", pw.name))
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	}()
}

// Shutdown stops the worker and waits for the current run to return
func (pw *PeriodicWorker) Shutdown(ctx context.Context) error {
	pw.once.Do(func() {
		if pw.cancel != nil {
			pw.cancel()
		}
	})
	if pw.cancel == nil {
		return nil
	}

	select {
	case <-pw.done:
		return nil
	case <-ctx.Done():
		pw.logger.Warn("Periodic worker shutdown timeout", zap.String("worker", pw.name))
		return ctx.Err()
	}
}
