package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/delifood-checkout/internal/domain/identity"
)

const lookupUserSQL = `SELECT id, name, username, role FROM users WHERE id = $1 AND is_active`

var _ identity.Directory = (*UserStore)(nil)

// UserStore resolves user ids against the users table.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a UserStore that uses the given pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Lookup returns the active user with the given id.
func (s *UserStore) Lookup(ctx context.Context, id int64) (*identity.User, error) {
	var (
		u    identity.User
		role string
	)
	err := s.pool.QueryRow(ctx, lookupUserSQL, id).Scan(&u.ID, &u.Name, &u.Username, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user %d: %w", id, err)
	}
	u.Role = identity.Role(role)
	return &u, nil
}
