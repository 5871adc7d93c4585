package repository

import (
	"context"
	"time"

	"mynotes-auth-service/internal/challenge/domain"
)

// Repository defines persistence for OTP challenges. All operations are
// atomic per email; implementations must not use read-then-write for Upsert,
// MarkVerified, or DeleteVerified.
//
// TTL is interpreted by the caller: notBefore is the oldest CreatedAt that
// still counts as live, so an expired row behaves like a missing one.
type Repository interface {
	// Upsert creates the challenge for c.Email or atomically replaces an
	// existing one, whatever state it was in.
	Upsert(ctx context.Context, c *domain.Challenge) error
	// GetByEmail returns the physically stored challenge for email, or nil if
	// no row exists. The row may be past its TTL; callers must check.
	GetByEmail(ctx context.Context, email string) (*domain.Challenge, error)
	// MarkVerified atomically flips verified to true iff a challenge for email
	// exists with the given code hash and CreatedAt after notBefore. Returns
	// true if a row matched (including one already verified; verified never
	// transitions back to false).
	MarkVerified(ctx context.Context, email, codeHash string, notBefore time.Time) (bool, error)
	// DeleteVerified atomically deletes the challenge for email iff it is
	// verified and CreatedAt is after notBefore. Returns true if a row was deleted.
	DeleteVerified(ctx context.Context, email string, notBefore time.Time) (bool, error)
	// DeleteExpired removes challenges created before the given cutoff and
	// returns how many were removed. Storage reclamation only; correctness
	// never depends on it.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// DefaultTTL is the default challenge expiry (10 minutes).
const DefaultTTL = 10 * time.Minute
