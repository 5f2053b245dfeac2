package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ShutdownOrderIsLIFO(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) ShutdownFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	sm.Register("database", record("database"))
	sm.Register("cron-jobs", record("cron-jobs"))
	sm.Register("http", record("http"))

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"http", "cron-jobs", "database"}, order)
}

func TestManager_ShutdownCollectsErrors(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	closed := false
	sm.RegisterNoErr("database", func() { closed = true })
	sm.Register("http", func(ctx context.Context) error { return errors.New("listener stuck") })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener stuck")
	assert.True(t, closed, "later components still stop after a failure")
}

func TestManager_WaitForShutdownOnContext(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	stopped := false
	sm.RegisterNoErr("worker", func() { stopped = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.True(t, stopped)
}

func TestInFlightTracker_WaitsForWork(t *testing.T) {
	tracker := NewInFlightTracker("cron", zap.NewNop())

	require.True(t, tracker.Add())
	release := make(chan struct{})
	go func() {
		<-release
		tracker.Done()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- tracker.Shutdown(context.Background()) }()

	assert.Eventually(t, tracker.IsShuttingDown, time.Second, 5*time.Millisecond)
	assert.False(t, tracker.Add(), "no new work after shutdown began")

	close(release)
	require.NoError(t, <-errCh)
}

func TestInFlightTracker_ShutdownTimeout(t *testing.T) {
	tracker := NewInFlightTracker("cron", zap.NewNop())
	require.True(t, tracker.Add())
	defer tracker.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tracker.Shutdown(ctx), context.DeadlineExceeded)
}

func TestInFlightTracker_Middleware(t *testing.T) {
	tracker := NewInFlightTracker("cron", zap.NewNop())

	var ctxErr error
	h := tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxErr = r.Context().Err()
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("detached from client cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/cron/generate-settlements", nil).WithContext(ctx)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, ctxErr)
	})

	t.Run("rejects after shutdown", func(t *testing.T) {
		require.NoError(t, tracker.Shutdown(context.Background()))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cron/generate-settlements", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"retryable":true`)
	})
}

func TestPeriodicWorker(t *testing.T) {
	pw := NewPeriodicWorker("pool-monitor", 5*time.Millisecond, zap.NewNop())

	var runs atomic.Int32
	pw.Start(func(ctx context.Context) { runs.Add(1) })

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pw.Shutdown(context.Background()))
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after shutdown")

	assert.NoError(t, pw.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestPeriodicWorker_ShutdownBeforeStart(t *testing.T) {
	pw := NewPeriodicWorker("idle", time.Second, zap.NewNop())
	assert.NoError(t, pw.Shutdown(context.Background()))
}
