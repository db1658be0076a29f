package redisx

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/delifood-checkout/internal/domain/notification"
)

// Notifier publishes notifications on the owner's pub/sub channel for
// clients connected right now. Nothing is stored.
type Notifier struct {
	rdb Client
}

var _ notification.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier.
func NewNotifier(rdb Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Notify implements notification.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg notification.Notification) error {
	body, err := msg.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	channel := fmt.Sprintf(ChannelUserNotifications, msg.UserID)
	if err := n.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", channel)
	}
	return nil
}
