package redisx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/delifood-checkout/internal/domain/order"
)

// IdempotencyStore is the fast path for idempotent commits.
type IdempotencyStore struct {
	rdb Client
	ttl time.Duration
}

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store that remembers keys for ttl, or
// TTLIdempotency when ttl is zero.
func NewIdempotencyStore(rdb Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Lookup returns the order id stored for key.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderConfirm, key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, false, nil
	case err != nil:
		return 0, false, errors.Wrap(err, "get")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "parse order id %q", v)
	}
	return id, true, nil
}

// Remember stores orderID under key. The first writer wins.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, orderID int64) error {
	err := s.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemOrderConfirm, key), orderID, s.ttl).Err()
	if err != nil {
		return errors.Wrap(err, "setnx")
	}
	return nil
}
