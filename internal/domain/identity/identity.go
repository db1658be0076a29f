// Package identity resolves callers to users. Authentication itself happens
// upstream; this package only answers who a user id belongs to.
package identity

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUserNotFound is returned when a user id has no active account.
var ErrUserNotFound = errors.New("user not found")

// Role is the kind of account.
type Role string

const (
	RoleClient     Role = "client"
	RoleRestaurant Role = "restaurant"
	RoleDelivery   Role = "delivery"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleRestaurant, RoleDelivery, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is a read-only view of an account.
type User struct {
	ID       int64
	Name     string
	Username string
	Role     Role
}

// Directory looks up active users by id.
type Directory interface {
	Lookup(ctx context.Context, id int64) (*User, error)
}
