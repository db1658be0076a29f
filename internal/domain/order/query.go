package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ForDelivery lists the orders a courier may pick up, newest first.
func (s *Service) ForDelivery(ctx context.Context) (_ []DeliveryView, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.ForDelivery")
	defer func() { endSpan(span, rerr) }()

	views, err := s.store.ForDelivery(ctx, ActiveStatuses)
	if err != nil {
		return nil, &PersistenceError{Op: "list delivery orders", Err: err}
	}
	return views, nil
}

// ForRestaurant lists the most recent orders containing at least one product
// of the given restaurant.
func (s *Service) ForRestaurant(ctx context.Context, restaurantID int64) (_ []RestaurantView, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.ForRestaurant",
		trace.WithAttributes(attribute.Int64("restaurant.id", restaurantID)))
	defer func() { endSpan(span, rerr) }()

	if restaurantID <= 0 {
		return nil, errors.Wrapf(ErrMissingRestaurant, "got %d", restaurantID)
	}
	views, err := s.store.ForRestaurant(ctx, restaurantID, RestaurantOrdersLimit)
	if err != nil {
		return nil, &PersistenceError{Op: "list restaurant orders", Err: err}
	}
	return views, nil
}
