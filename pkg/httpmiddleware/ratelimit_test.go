package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:9999", nil).Code)
	}

	w := hit(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])

	// Other clients are unaffected.
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234", nil).Code)
}

func TestRateLimit_KeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-User") },
	})(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "2.2.2.2:2", map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "1.1.1.1:1", map[string]string{"X-User": "b"}).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, hit(handler, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "192.168.1.2:5555", xff).Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Time) (int, time.Time, bool, error) {
	return 0, time.Time{}, false, errors.New("redis: connection refused")
}

func TestRateLimit_LimiterErrorFailsOpen(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute, Limiter: brokenLimiter{}})(okHandler())

	for range 3 {
		w := hit(handler, "10.0.0.1:1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestSlidingWindow(t *testing.T) {
	l := NewSlidingWindow(4, time.Minute)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 4 {
		remaining, resetAt, ok, err := l.Allow(ctx, "k", start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 3-i, remaining)
		assert.Equal(t, start.Add(time.Minute), resetAt)
	}
	_, _, ok, _ := l.Allow(ctx, "k", start.Add(30*time.Second))
	assert.False(t, ok)

	// A quarter into the next window, 3/4 of the previous count still weighs in.
	_, _, ok, _ = l.Allow(ctx, "k", start.Add(75*time.Second))
	assert.True(t, ok)
	_, _, ok, _ = l.Allow(ctx, "k", start.Add(75*time.Second))
	assert.False(t, ok)

	// Two idle windows reset the counter.
	_, _, ok, _ = l.Allow(ctx, "k", start.Add(5*time.Minute))
	assert.True(t, ok)

	l.Sweep(start.Add(10 * time.Minute))
	assert.Empty(t, l.window)
}
