package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultPrepTimeMinutes is used when a product row carries no preparation time.
const DefaultPrepTimeMinutes = 15

// Product is a catalog item owned by a restaurant.
type Product struct {
	ID              int64
	RestaurantID    int64
	Name            string
	Description     string
	Price           decimal.Decimal
	Stock           int
	PrepTimeMinutes int
	IsActive        bool
}

// PrepTime returns the preparation time, falling back to the default for
// rows that carry none.
func (p Product) PrepTime() int {
	if p.PrepTimeMinutes <= 0 {
		return DefaultPrepTimeMinutes
	}
	return p.PrepTimeMinutes
}

// Catalog fetches current product rows. Ids with no matching row are simply
// absent from the result.
type Catalog interface {
	FetchByIDs(ctx context.Context, ids []int64) ([]Product, error)
}

// Lister provides the read-only menu views.
type Lister interface {
	ListActive(ctx context.Context) ([]Product, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]Product, error)
}

// Snapshot is an immutable view of catalog rows keyed by product id, taken
// once per request.
type Snapshot struct {
	byID map[int64]Product
}

// NewSnapshot indexes the given rows.
func NewSnapshot(products []Product) Snapshot {
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return Snapshot{byID: byID}
}

// Get returns the product with the given id.
func (s Snapshot) Get(id int64) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len reports the number of products in the snapshot.
func (s Snapshot) Len() int { return len(s.byID) }

// Fetch loads a snapshot for the given ids with a single catalog call.
func Fetch(ctx context.Context, c Catalog, ids []int64) (Snapshot, error) {
	rows, err := c.FetchByIDs(ctx, UniqueIDs(ids))
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "fetch products")
	}
	return NewSnapshot(rows), nil
}

// UniqueIDs returns the distinct ids in ascending order.
func UniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
