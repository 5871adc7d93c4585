package repository

import (
	"context"
	"sync"

	"mynotes-auth-service/internal/account/domain"
)

// MemoryRepository is an in-memory Repository implementation. Used by tests
// and when the server runs without a database (dev mode).
type MemoryRepository struct {
	mu      sync.Mutex
	byEmail map[string]domain.Account
}

// NewMemoryRepository returns a new in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]domain.Account)}
}

// GetByEmail returns the account for email, or nil if not found.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Create persists the account; ErrDuplicateEmail if the email is taken.
func (r *MemoryRepository) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return ErrDuplicateEmail
	}
	r.byEmail[a.Email] = *a
	return nil
}

// UpdatePasswordHash replaces the password hash for the account with email.
func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byEmail[email]; ok {
		a.PasswordHash = passwordHash
		r.byEmail[email] = a
	}
	return nil
}
