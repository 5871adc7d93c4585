package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mynotes-auth-service/internal/challenge/domain"
)

// PostgresRepository persists OTP challenges in the otp_challenges table.
// Per-email atomicity comes from single conditional statements; there is no
// read-then-write anywhere, so a re-issue racing a submission against the old
// passcode cannot lose updates.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates or atomically replaces the challenge for c.Email.
func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (email, code_hash, verified, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    verified = EXCLUDED.verified,
		    created_at = EXCLUDED.created_at`,
		c.Email, c.CodeHash, c.Verified, c.CreatedAt)
	return err
}

// GetByEmail returns the stored challenge for email, or nil if no row exists.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.db.QueryRowContext(ctx, `
		SELECT email, code_hash, verified, created_at
		FROM otp_challenges WHERE email = $1`, email).
		Scan(&c.Email, &c.CodeHash, &c.Verified, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// MarkVerified flips verified to true iff a live row matches the code hash.
func (r *PostgresRepository) MarkVerified(ctx context.Context, email, codeHash string, notBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET verified = TRUE
		WHERE email = $1 AND code_hash = $2 AND created_at > $3`,
		email, codeHash, notBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteVerified deletes the challenge for email iff it is live and verified.
func (r *PostgresRepository) DeleteVerified(ctx context.Context, email string, notBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_challenges
		WHERE email = $1 AND verified = TRUE AND created_at > $2`,
		email, notBefore)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteExpired removes challenges created before the cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_challenges WHERE created_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
