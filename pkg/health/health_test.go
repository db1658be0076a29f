package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func serve(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func runChecks(h *Health, times int) {
	for range times {
		runAll(context.Background(), h.checks)
	}
}

func TestLiveness(t *testing.T) {
	h := New()
	h.Add(Liveness, "ok", time.Second, func(context.Context) error { return nil })

	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	h.Add(Liveness, "db", time.Second, func(context.Context) error { return errors.New("connection refused") })
	runChecks(h, 2)
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "two failures stay below the threshold")

	runChecks(h, 1)
	code, body = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadiness(t *testing.T) {
	h := New()
	var failing atomic.Bool
	h.Add(Readiness, "postgres", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("timeout")
		}
		return nil
	})

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)

	failing.Store(true)
	runChecks(h, 3)
	assert.False(t, h.IsReady())

	failing.Store(false)
	runChecks(h, 1)
	assert.True(t, h.IsReady(), "a single success recovers")

	// Liveness ignores readiness checks.
	failing.Store(true)
	runChecks(h, 3)
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestStartStop(t *testing.T) {
	h := New()
	var calls atomic.Int32
	h.Add(Readiness, "counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()

	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Add(Readiness, "slow", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.SetReady(true)
	runChecks(h, 3)

	_, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type result struct{ err error }

func (r result) Err() error { return r.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, GoroutineCountCheck(1<<20)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.EqualError(t, PingCheck(pinger{err: errors.New("down")})(ctx), "down")

	check := ErrCheck(func(context.Context) result { return result{err: errors.New("refused")} })
	assert.EqualError(t, check(ctx), "refused")
}
