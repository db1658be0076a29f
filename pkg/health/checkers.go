package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// ErrCheck adapts calls returning a command whose Err reports the outcome,
// such as redis.Client.Ping.
func ErrCheck[C interface{ Err() error }](fn func(ctx context.Context) C) CheckFunc {
	return func(ctx context.Context) error {
		return fn(ctx).Err()
	}
}
