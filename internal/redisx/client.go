// Package redisx holds the Redis-backed helpers: the idempotency key cache,
// per-user notification channels and the shared rate limit counter.
package redisx

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyIdemOrderConfirm maps an idempotency key to the committed order id.
	KeyIdemOrderConfirm = "idem:order:confirm:%s"
	// ChannelUserNotifications is the pub/sub channel of one user.
	ChannelUserNotifications = "notifications:user:%d"
	// KeyRateLimit is the counter of one client in one window.
	KeyRateLimit = "ratelimit:%s:%d"

	// TTLIdempotency is how long an idempotency key is remembered. The unique
	// key on the order row covers retries after it expires.
	TTLIdempotency = 24 * time.Hour
)

// Client is the subset of redis.Cmdable used by this package.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// New connects to Redis. addr is either a redis:// URL or host:port.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping")
	}
	return rdb, nil
}
