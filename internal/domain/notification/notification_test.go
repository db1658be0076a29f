package notification

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestOrderConfirmed(t *testing.T) {
	now := time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC)
	n := OrderConfirmed(7, 42, 35, now)

	assert.Equal(t, KindOrderConfirmed, n.Kind)
	assert.Equal(t, int64(7), n.UserID)
	assert.Equal(t, int64(42), n.OrderID)
	assert.Equal(t, "Tu pedido #42 ha sido confirmado. Tiempo estimado: 35 min.", n.Message)
	assert.Equal(t, now, n.CreatedAt)
	assert.NotEqual(t, [16]byte{}, [16]byte(n.ID))
}

func TestNotification_JSON(t *testing.T) {
	now := time.Date(2025, 5, 10, 13, 0, 0, 0, time.UTC)
	in := StatusChanged(3, 9, "preparing", "en preparación", now)

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "order.status_changed", fields["kind"])
	assert.Equal(t, float64(9), fields["orderId"])
	assert.Equal(t, "preparing", fields["status"])

	var out Notification
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestNotification_DecodeSkipsUnknown(t *testing.T) {
	var n Notification
	err := json.Unmarshal([]byte(`{"orderId":5,"extra":{"a":[1,2]},"message":"hi"}`), &n)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.OrderID)
	assert.Equal(t, "hi", n.Message)
}

func TestFanout_AllSinksCalled(t *testing.T) {
	var calls atomic.Int32
	count := NotifierFunc(func(context.Context, Notification) error {
		calls.Add(1)
		return nil
	})

	f := NewFanout(
		Sink{Name: "a", Notifier: count},
		Sink{Name: "b", Notifier: count},
		Sink{Name: "skipped"},
	)
	require.Equal(t, 2, f.Len())

	require.NoError(t, f.Notify(context.Background(), Notification{OrderID: 1}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFanout_CombinesErrors(t *testing.T) {
	var delivered atomic.Bool
	f := NewFanout(
		Sink{Name: "kafka", Notifier: NotifierFunc(func(context.Context, Notification) error {
			return errors.New("broker down")
		})},
		Sink{Name: "store", Notifier: NotifierFunc(func(context.Context, Notification) error {
			delivered.Store(true)
			return nil
		})},
		Sink{Name: "redis", Notifier: NotifierFunc(func(context.Context, Notification) error {
			return errors.New("timeout")
		})},
	)

	err := f.Notify(context.Background(), Notification{OrderID: 1})
	require.Error(t, err)
	assert.True(t, delivered.Load(), "healthy sink must still receive the notification")

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, err.Error(), "kafka: broker down")
	assert.Contains(t, err.Error(), "redis: timeout")
}

func TestFanout_WaitsForSlowSinks(t *testing.T) {
	release := make(chan struct{})
	var delivered atomic.Bool
	f := NewFanout(
		Sink{Name: "kafka", Notifier: NotifierFunc(func(context.Context, Notification) error {
			defer close(release)
			return errors.New("broker down")
		})},
		Sink{Name: "store", Notifier: NotifierFunc(func(context.Context, Notification) error {
			<-release
			delivered.Store(true)
			return nil
		})},
	)

	err := f.Notify(context.Background(), Notification{OrderID: 1})
	require.Error(t, err)
	assert.True(t, delivered.Load())
	require.Len(t, multierr.Errors(err), 1)
}

func TestFanout_Empty(t *testing.T) {
	require.NoError(t, NewFanout().Notify(context.Background(), Notification{}))
}
