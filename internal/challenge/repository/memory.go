package repository

import (
	"context"
	"sync"
	"time"

	"mynotes-auth-service/internal/challenge/domain"
	"mynotes-auth-service/internal/otp"
)

// MemoryRepository is an in-memory Repository implementation. Used by tests
// and when the server runs without a database (dev mode). The single mutex
// gives the same per-email atomicity the Postgres statements provide.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]domain.Challenge
}

// NewMemoryRepository returns a new in-memory challenge repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Challenge)}
}

// Upsert creates or replaces the challenge for c.Email.
func (r *MemoryRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.Email] = *c
	return nil
}

// GetByEmail returns the stored challenge for email, or nil if absent.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[email]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// MarkVerified flips verified to true iff a live challenge matches the code hash.
func (r *MemoryRepository) MarkVerified(ctx context.Context, email, codeHash string, notBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[email]
	if !ok || !otp.Equal(codeHash, c.CodeHash) || !c.CreatedAt.After(notBefore) {
		return false, nil
	}
	c.Verified = true
	r.m[email] = c
	return true, nil
}

// DeleteVerified deletes the challenge for email iff it is live and verified.
func (r *MemoryRepository) DeleteVerified(ctx context.Context, email string, notBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[email]
	if !ok || !c.Verified || !c.CreatedAt.After(notBefore) {
		return false, nil
	}
	delete(r.m, email)
	return true, nil
}

// DeleteExpired removes challenges created before the cutoff.
func (r *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for email, c := range r.m {
		if !c.CreatedAt.After(before) {
			delete(r.m, email)
			n++
		}
	}
	return n, nil
}
