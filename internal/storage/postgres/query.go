package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/delifood-checkout/internal/domain/order"
)

const (
	// The delivery board names a single restaurant per order, the one with
	// the lowest id, and reports how many restaurants the order spans.
	deliveryOrdersSQL = `SELECT ` + orderColumns + `,
			c.name, c.username,
			COALESCE(agg.restaurant_id, 0), COALESCE(r.name, ''), COALESCE(r.username, ''),
			COALESCE(agg.restaurant_count, 0)
		FROM orders o
		JOIN users c ON c.id = o.user_id
		LEFT JOIN LATERAL (
			SELECT MIN(p.restaurant_id) AS restaurant_id,
				COUNT(DISTINCT p.restaurant_id) AS restaurant_count
			FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id
		) agg ON TRUE
		LEFT JOIN users r ON r.id = agg.restaurant_id
		WHERE o.status = ANY($1)
		ORDER BY o.created_at DESC, o.id DESC`

	restaurantOrdersSQL = `SELECT ` + orderColumns + `, c.name, c.username
		FROM orders o
		JOIN users c ON c.id = o.user_id
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.restaurant_id = $1
		)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2`
)

// ForDelivery lists orders in the given statuses, newest first.
func (s *OrderStore) ForDelivery(ctx context.Context, statuses []order.Status) ([]order.DeliveryView, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, deliveryOrdersSQL, names)
	if err != nil {
		return nil, fmt.Errorf("listing delivery orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.DeliveryView, error) {
		var (
			v      order.DeliveryView
			eta    int32
			status string
			count  int64
		)
		err := row.Scan(
			&v.Order.ID, &v.Order.UserID, &v.Order.Total, &v.Order.DeliveryFee, &eta, &status,
			&v.Order.IdempotencyKey, &v.Order.CreatedAt, &v.Order.UpdatedAt,
			&v.Client.Name, &v.Client.Username,
			&v.RestaurantID, &v.RestaurantName, &v.RestaurantUsername, &count,
		)
		if err != nil {
			return order.DeliveryView{}, fmt.Errorf("scanning delivery order: %w", err)
		}
		v.Order.ETAMinutes = int(eta)
		v.Order.Status = order.Status(status)
		v.RestaurantCount = int(count)
		return v, nil
	})
}

// ForRestaurant lists up to limit of the newest orders containing a product
// of restaurantID.
func (s *OrderStore) ForRestaurant(ctx context.Context, restaurantID int64, limit int) ([]order.RestaurantView, error) {
	rows, err := s.pool.Query(ctx, restaurantOrdersSQL, restaurantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders of restaurant %d: %w", restaurantID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.RestaurantView, error) {
		var (
			v      order.RestaurantView
			eta    int32
			status string
		)
		err := row.Scan(
			&v.Order.ID, &v.Order.UserID, &v.Order.Total, &v.Order.DeliveryFee, &eta, &status,
			&v.Order.IdempotencyKey, &v.Order.CreatedAt, &v.Order.UpdatedAt,
			&v.Client.Name, &v.Client.Username,
		)
		if err != nil {
			return order.RestaurantView{}, fmt.Errorf("scanning restaurant order: %w", err)
		}
		v.Order.ETAMinutes = int(eta)
		v.Order.Status = order.Status(status)
		return v, nil
	})
}
