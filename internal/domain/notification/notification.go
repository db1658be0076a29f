// Package notification defines the events emitted to users after an order
// changes, and fans them out to the configured sinks.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindOrderConfirmed Kind = "order.confirmed"
	KindStatusChanged  Kind = "order.status_changed"
)

// Notification is a message addressed to a single user about one order.
type Notification struct {
	ID        uuid.UUID
	UserID    int64
	OrderID   int64
	Kind      Kind
	Status    string
	Message   string
	CreatedAt time.Time
}

// Notifier delivers a notification. Implementations must honour ctx
// cancellation; callers treat every error as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Nop discards notifications.
var Nop Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })

// OrderConfirmed builds the message sent once an order is committed.
func OrderConfirmed(userID, orderID int64, etaMinutes int, now time.Time) Notification {
	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		OrderID:   orderID,
		Kind:      KindOrderConfirmed,
		Status:    "pending",
		Message:   fmt.Sprintf("Tu pedido #%d ha sido confirmado. Tiempo estimado: %d min.", orderID, etaMinutes),
		CreatedAt: now.UTC(),
	}
}

// StatusChanged builds the message sent when an order moves to a new status.
func StatusChanged(userID, orderID int64, status, label string, now time.Time) Notification {
	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		OrderID:   orderID,
		Kind:      KindStatusChanged,
		Status:    status,
		Message:   fmt.Sprintf("Tu pedido #%d está ahora: %s.", orderID, label),
		CreatedAt: now.UTC(),
	}
}

// Encode writes n as a JSON object.
func (n Notification) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(n.ID.String()) })
	e.Field("userId", func(e *jx.Encoder) { e.Int64(n.UserID) })
	e.Field("orderId", func(e *jx.Encoder) { e.Int64(n.OrderID) })
	e.Field("kind", func(e *jx.Encoder) { e.Str(string(n.Kind)) })
	if n.Status != "" {
		e.Field("status", func(e *jx.Encoder) { e.Str(n.Status) })
	}
	e.Field("message", func(e *jx.Encoder) { e.Str(n.Message) })
	e.Field("createdAt", func(e *jx.Encoder) { e.Str(n.CreatedAt.Format(time.RFC3339Nano)) })
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (n Notification) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	n.Encode(&e)
	return e.Bytes(), nil
}

// Decode reads a notification written by Encode.
func (n *Notification) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return errors.Wrap(err, "parse id")
			}
			n.ID = id
		case "userId":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			n.UserID = v
		case "orderId":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			n.OrderID = v
		case "kind":
			s, err := d.Str()
			if err != nil {
				return err
			}
			n.Kind = Kind(s)
		case "status":
			s, err := d.Str()
			if err != nil {
				return err
			}
			n.Status = s
		case "message":
			s, err := d.Str()
			if err != nil {
				return err
			}
			n.Message = s
		case "createdAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return errors.Wrap(err, "parse createdAt")
			}
			n.CreatedAt = ts
		default:
			return d.Skip()
		}
		return nil
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Notification) UnmarshalJSON(data []byte) error {
	return n.Decode(jx.DecodeBytes(data))
}
