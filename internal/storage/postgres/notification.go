package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/delifood-checkout/internal/domain/notification"
)

const insertNotificationSQL = `INSERT INTO notifications (id, user_id, order_id, kind, message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING`

var _ notification.Notifier = (*NotificationStore)(nil)

// NotificationStore records notifications in the user's inbox table.
type NotificationStore struct {
	pool *pgxpool.Pool
}

// NewNotificationStore returns a NotificationStore that uses the given pool.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Notify inserts n. Re-delivering the same notification is a no-op.
func (s *NotificationStore) Notify(ctx context.Context, n notification.Notification) error {
	var orderID *int64
	if n.OrderID > 0 {
		orderID = &n.OrderID
	}
	_, err := s.pool.Exec(ctx, insertNotificationSQL,
		n.ID, n.UserID, orderID, string(n.Kind), n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification for user %d: %w", n.UserID, err)
	}
	return nil
}
