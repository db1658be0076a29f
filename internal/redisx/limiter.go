package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Counts hits and starts the window on the first one. Returns the count and
// the milliseconds left in the window.
const fixedWindowScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// Limiter is a fixed window rate limiter shared by every API instance.
type Limiter struct {
	rdb    Client
	max    int
	window time.Duration
}

// NewLimiter allows max hits per key in each window.
func NewLimiter(rdb Client, max int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, max: max, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) (remaining int, resetAt time.Time, allowed bool, err error) {
	windowID := now.UnixMilli() / l.window.Milliseconds()
	res, err := l.rdb.Eval(ctx, fixedWindowScript,
		[]string{fmt.Sprintf(KeyRateLimit, key, windowID)},
		l.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, false, errors.Wrap(err, "eval")
	}
	if len(res) != 2 {
		return 0, time.Time{}, false, errors.Errorf("unexpected script result %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	resetAt = now.Add(ttl)
	if count > l.max {
		return 0, resetAt, false, nil
	}
	return l.max - count, resetAt, true, nil
}
