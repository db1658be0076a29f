// Package rabbitmq broadcasts order notifications on a fanout exchange.
package rabbitmq

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/xenking/delifood-checkout/internal/domain/notification"
)

// DefaultExchange is the fanout exchange notifications are published to.
const DefaultExchange = "notifications_fanout"

// Channel is the subset of *amqp.Channel used by Notifier.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Notifier publishes persistent JSON messages to a fanout exchange. Every
// bound queue gets a copy.
type Notifier struct {
	mu       sync.Mutex
	ch       Channel
	conn     *amqp.Connection
	exchange string
}

var _ notification.Notifier = (*Notifier)(nil)

// Dial connects to url and declares a durable fanout exchange.
func Dial(url, exchange string) (*Notifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}

	n := NewNotifier(ch, exchange)
	n.conn = conn
	return n, nil
}

// NewNotifier publishes through an already configured channel.
func NewNotifier(ch Channel, exchange string) *Notifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Notifier{ch: ch, exchange: exchange}
}

// Notify implements notification.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg notification.Notification) error {
	body, err := msg.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx, n.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         string(msg.Kind),
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish to %q", n.exchange)
	}
	return nil
}

// Close closes the channel and, when dialed by Dial, the connection.
func (n *Notifier) Close() error {
	err := n.ch.Close()
	if n.conn != nil {
		err = multierr.Append(err, n.conn.Close())
	}
	return err
}
