// Package user holds the shopper identity consumed by promotion conditions.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// User is a registered shopper.
type User struct {
	ID   string
	Role string
}

// Repository looks users up by id.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
