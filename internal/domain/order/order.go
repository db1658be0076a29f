package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single cart line supplied by the caller.
type Item struct {
	ProductID int64
	Quantity  int
}

// Order is a committed order header with its frozen lines.
type Order struct {
	ID             int64
	UserID         int64
	Total          decimal.Decimal
	DeliveryFee    decimal.Decimal
	ETAMinutes     int
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []Line
}

// Subtotal returns the line total before delivery.
func (o *Order) Subtotal() decimal.Decimal {
	return o.Total.Sub(o.DeliveryFee)
}

// Line is a persisted order line. UnitPrice is the catalog price at commit
// time and never changes afterwards.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Tx is the set of writes performed atomically by Commit.
type Tx interface {
	// CreateOrder inserts the header and fills in ID and timestamps.
	// It returns ErrDuplicateIdempotencyKey if the key is already taken.
	CreateOrder(ctx context.Context, o *Order) error
	// CreateLines inserts all lines of an order.
	CreateLines(ctx context.Context, orderID int64, lines []Line) error
	// TryDecrement subtracts qty from an active product's stock only if at
	// least qty units remain. It reports whether the row was updated.
	TryDecrement(ctx context.Context, productID int64, qty int) (bool, error)
}

// UnitOfWork runs fn inside a single transaction. The transaction commits
// iff fn returns nil.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Repository reads and updates committed orders.
type Repository interface {
	Get(ctx context.Context, id int64) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	// UpdateStatus moves an order from one status to another. It reports
	// false when the order is no longer in status from.
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
}

// QueryRepository serves the read-only order views.
type QueryRepository interface {
	ForDelivery(ctx context.Context, statuses []Status) ([]DeliveryView, error)
	ForRestaurant(ctx context.Context, restaurantID int64, limit int) ([]RestaurantView, error)
}

// Store is the full persistence surface needed by Service.
type Store interface {
	UnitOfWork
	Repository
	QueryRepository
}

// IdempotencyStore maps client idempotency keys to committed order ids.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (orderID int64, ok bool, err error)
	Remember(ctx context.Context, key string, orderID int64) error
}

// Client identifies the user who placed an order.
type Client struct {
	Name     string
	Username string
}

// DeliveryView is an order on the delivery board.
type DeliveryView struct {
	Order  Order
	Client Client
	// RestaurantID is the lowest restaurant id among the order's lines, zero
	// when the order has no lines.
	RestaurantID       int64
	RestaurantName     string
	RestaurantUsername string
	// RestaurantCount is the number of distinct restaurants in the order.
	// Values above one mean RestaurantID names only one of them.
	RestaurantCount int
}

// MultiRestaurant reports whether the order spans several restaurants.
func (v DeliveryView) MultiRestaurant() bool { return v.RestaurantCount > 1 }

// RestaurantView is an order as seen by one of its restaurants.
type RestaurantView struct {
	Order  Order
	Client Client
}
