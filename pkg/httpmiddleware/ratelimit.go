package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Limiter decides whether a client identified by key may make a request.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (remaining int, resetAt time.Time, allowed bool, err error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Limiter overrides the in-process sliding window, e.g. with a counter
	// shared by all instances.
	Limiter Limiter
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one key in the current and previous window.
type window struct {
	prev, curr float64
	start      time.Time
}

// SlidingWindow is an in-process Limiter that approximates a sliding window
// by weighting the previous fixed window.
type SlidingWindow struct {
	max    int
	size   time.Duration
	mu     sync.Mutex
	window map[string]*window
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow allows max requests per key in any window of size.
func NewSlidingWindow(max int, size time.Duration) *SlidingWindow {
	return &SlidingWindow{max: max, size: size, window: make(map[string]*window)}
}

// Allow implements Limiter. It never fails.
func (l *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (int, time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w, ok := l.window[key]
	switch {
	case !ok:
		w = &window{start: start}
		l.window[key] = w
	case start.Sub(w.start) >= 2*l.size:
		*w = window{start: start}
	case start.After(w.start):
		*w = window{prev: w.curr, start: start}
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	count := w.prev*max(overlap, 0) + w.curr
	resetAt := w.start.Add(l.size)
	if count >= float64(l.max) {
		return 0, resetAt, false, nil
	}
	w.curr++
	return max(int(float64(l.max)-count-1), 0), resetAt, true, nil
}

// Sweep drops keys idle for two windows.
func (l *SlidingWindow) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.window {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.window, key)
		}
	}
}

// SweepEvery calls Sweep periodically until ctx is done.
func (l *SlidingWindow) SweepEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Sweep(now)
			}
		}
	}()
}

// RateLimit rejects clients over the limit with 429. Every response carries
// X-RateLimit-* headers. Limiter errors let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewSlidingWindow(cfg.Max, cfg.Window)
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, resetAt, allowed, err := limiter.Allow(r.Context(), keyFunc(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if !allowed {
				retry := max(resetAt.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
