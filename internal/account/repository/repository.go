package repository

import (
	"context"
	"errors"

	"mynotes-auth-service/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when an account with the same email
// already exists. The unique constraint, not an application-level check, is
// what makes two concurrent signups safe.
var ErrDuplicateEmail = errors.New("account email already exists")

// Repository defines persistence for accounts.
type Repository interface {
	// GetByEmail returns the account for email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Create persists the account. The account must have ID set. Returns
	// ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, a *domain.Account) error
	// UpdatePasswordHash replaces the password hash for the account with the
	// given email.
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
}
