package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/delifood-checkout/internal/domain/identity"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

const (
	upsertUserSQL = `INSERT INTO users (name, username, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role, is_active = TRUE
		RETURNING id`

	upsertProductSQL = `INSERT INTO products (restaurant_id, name, description, price, stock, preparation_time, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (restaurant_id, name) DO UPDATE
			SET description = EXCLUDED.description, price = EXCLUDED.price, stock = EXCLUDED.stock,
				preparation_time = EXCLUDED.preparation_time, is_active = EXCLUDED.is_active
		RETURNING id`
)

// Seeder loads reference data. Rows are matched on their natural keys, so
// seeding twice converges to the same state.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// UpsertUser inserts or updates a user by username and returns its id.
func (s *Seeder) UpsertUser(ctx context.Context, u identity.User, email string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, upsertUserSQL, u.Name, u.Username, email, string(u.Role)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", u.Username, err)
	}
	return id, nil
}

// UpsertProduct inserts or updates a product by restaurant and name and
// returns its id.
func (s *Seeder) UpsertProduct(ctx context.Context, p product.Product) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, upsertProductSQL,
		p.RestaurantID, p.Name, p.Description, p.Price, int32(p.Stock), int32(p.PrepTime()), p.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting product %q: %w", p.Name, err)
	}
	return id, nil
}
