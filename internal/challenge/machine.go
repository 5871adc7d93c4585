// Package challenge implements the OTP challenge lifecycle: per email,
// Absent -> Pending (passcode issued) -> Verified (passcode submitted) ->
// Absent again (consumed by a guarded operation, or expired by TTL).
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mynotes-auth-service/internal/challenge/domain"
	"mynotes-auth-service/internal/challenge/repository"
	"mynotes-auth-service/internal/mailer"
	"mynotes-auth-service/internal/otp"
)

// Sentinel errors for challenge transitions; callers map them to responses.
var (
	// ErrNoChallenge means no live challenge exists for the email (never
	// issued, expired, or already consumed).
	ErrNoChallenge = errors.New("no challenge outstanding")
	// ErrIncorrectPasscode means a live challenge exists but the submitted
	// passcode does not match.
	ErrIncorrectPasscode = errors.New("incorrect OTP")
)

const (
	mailSubject = "One-Time Password (OTP) for MyNotes Account Verification"
	mailBody    = "Please use the following OTP code: %s  to verify your MyNotes account. \nDo not share it with anyone else."
)

// Machine owns the challenge lifecycle. Every decision reads the store and
// applies the TTL at that moment; nothing is cached. State transitions are
// delegated to the repository's atomic primitives so concurrent requests for
// the same email cannot race each other into a lost update.
type Machine struct {
	repo repository.Repository
	mail mailer.Mailer
	log  *logrus.Logger
	ttl  time.Duration
	now  func() time.Time
}

// NewMachine returns a Machine with the given store, delivery capability, and
// TTL. A non-positive ttl uses the 10 minute default.
func NewMachine(repo repository.Repository, mail mailer.Mailer, log *logrus.Logger, ttl time.Duration) *Machine {
	if ttl <= 0 {
		ttl = repository.DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Machine{
		repo: repo,
		mail: mail,
		log:  log,
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// notBefore is the oldest CreatedAt that still counts as a live challenge.
func (m *Machine) notBefore() time.Time {
	return m.now().Add(-m.ttl)
}

// Status returns the challenge state for email, computed from the record's
// existence and TTL at read time.
func (m *Machine) Status(ctx context.Context, email string) (domain.State, error) {
	c, err := m.repo.GetByEmail(ctx, email)
	if err != nil {
		return domain.StateAbsent, err
	}
	return c.State(m.now(), m.ttl), nil
}

// Request issues a fresh passcode for email: generates it, attempts exactly
// one delivery, and unconditionally creates or replaces the stored challenge
// with verified=false. A delivery failure is logged and swallowed; issuance
// itself never fails because of it. Re-requesting while a challenge is
// pending invalidates the old passcode.
func (m *Machine) Request(ctx context.Context, email string) error {
	code, err := otp.Generate()
	if err != nil {
		return fmt.Errorf("generate passcode: %w", err)
	}

	if err := m.mail.Send(ctx, email, mailSubject, fmt.Sprintf(mailBody, code)); err != nil {
		// Absorbing delivery failure is the documented contract: the challenge
		// is still issued and the caller is told the OTP was sent.
		m.log.WithError(err).WithField("email", email).Warn("OTP delivery failed")
	}

	return m.repo.Upsert(ctx, &domain.Challenge{
		Email:     email,
		CodeHash:  otp.Hash(code),
		Verified:  false,
		CreatedAt: m.now(),
	})
}

// Submit attempts the Pending -> Verified transition. The compare-and-set
// happens inside the store, so a submission racing a re-issue can only verify
// the passcode that is actually stored. Returns ErrNoChallenge when no live
// challenge exists and ErrIncorrectPasscode on a mismatch. Submitting the
// correct passcode for an already verified challenge succeeds (verified only
// ever moves false -> true).
func (m *Machine) Submit(ctx context.Context, email, code string) error {
	ok, err := m.repo.MarkVerified(ctx, email, otp.Hash(code), m.notBefore())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// No row matched: classify for the caller. The read is only for picking
	// the error; the transition above already failed atomically.
	c, err := m.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if c.State(m.now(), m.ttl) == domain.StateAbsent {
		return ErrNoChallenge
	}
	return ErrIncorrectPasscode
}

// Consume retires a Verified challenge after a guarded operation succeeded.
// The delete-if-verified is atomic, so a challenge is consumed at most once.
// Returns ErrNoChallenge when there is no live verified challenge.
func (m *Machine) Consume(ctx context.Context, email string) error {
	ok, err := m.repo.DeleteVerified(ctx, email, m.notBefore())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoChallenge
	}
	return nil
}

// SweepExpired deletes physically present but expired challenges. Reclamation
// only: reads already treat expired rows as absent.
func (m *Machine) SweepExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.notBefore())
}
