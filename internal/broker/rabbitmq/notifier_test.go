package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/delifood-checkout/internal/domain/notification"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestNotifier(t *testing.T) {
	ch := &fakeChannel{}
	n := NewNotifier(ch, "")
	msg := notification.StatusChanged(3, 11, "preparing", "en preparación", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, n.Notify(context.Background(), msg))
	require.Len(t, ch.sent, 1)

	p := ch.sent[0]
	assert.Equal(t, DefaultExchange, p.exchange)
	assert.Empty(t, p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.Equal(t, msg.ID.String(), p.msg.MessageId)
	assert.Equal(t, "order.status_changed", p.msg.Type)

	var got notification.Notification
	require.NoError(t, got.UnmarshalJSON(p.msg.Body))
	assert.Equal(t, "preparing", got.Status)
	assert.Equal(t, int64(11), got.OrderID)

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

func TestNotifier_PublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	err := NewNotifier(ch, "custom").Notify(context.Background(), notification.Notification{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrClosed))
	assert.Contains(t, err.Error(), `"custom"`)
}
