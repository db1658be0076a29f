// Package kafka publishes order notifications to a Kafka topic.
package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/delifood-checkout/internal/domain/notification"
)

// Writer is the subset of *kafka.Writer used by Notifier.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier writes each notification as one message keyed by user id, so all
// events of a user land on the same partition in order.
type Notifier struct {
	w Writer
}

var _ notification.Notifier = (*Notifier)(nil)

// NewWriter returns a synchronous writer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewNotifier creates a Notifier on top of w.
func NewNotifier(w Writer) *Notifier {
	return &Notifier{w: w}
}

// Notify implements notification.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg notification.Notification) error {
	body, err := msg.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.UserID, 10)),
		Value: body,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (n *Notifier) Close() error {
	return n.w.Close()
}
