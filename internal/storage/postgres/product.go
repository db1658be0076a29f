package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/delifood-checkout/internal/domain/product"
)

const (
	productColumns = `id, restaurant_id, name, description, price, stock, preparation_time, is_active`

	fetchProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	listActiveProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE is_active ORDER BY name, id`

	listRestaurantProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE is_active AND restaurant_id = $1 ORDER BY name, id`
)

var (
	_ product.Catalog = (*ProductStore)(nil)
	_ product.Lister  = (*ProductStore)(nil)
)

// ProductStore reads catalog rows.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore returns a ProductStore that uses the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// FetchByIDs returns the rows for ids, inactive ones included, in a single
// statement so all lines of a cart are read from the same snapshot.
func (s *ProductStore) FetchByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, fetchProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListActive returns every active product.
func (s *ProductStore) ListActive(ctx context.Context) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx, listActiveProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListByRestaurant returns the active products of one restaurant.
func (s *ProductStore) ListByRestaurant(ctx context.Context, restaurantID int64) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx, listRestaurantProductsSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("listing products of restaurant %d: %w", restaurantID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		stock int32
		prep  int32
	)
	err := row.Scan(
		&p.ID, &p.RestaurantID, &p.Name, &p.Description,
		&p.Price, &stock, &prep, &p.IsActive,
	)
	if err != nil {
		return product.Product{}, fmt.Errorf("scanning product: %w", err)
	}
	p.Stock = int(stock)
	p.PrepTimeMinutes = int(prep)
	return p, nil
}
