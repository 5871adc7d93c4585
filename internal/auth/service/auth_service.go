// Package service implements the credential operations gated by the OTP
// challenge machine: signup, signin, OTP issuance/verification, and the
// two-phase password reset.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	accountdomain "mynotes-auth-service/internal/account/domain"
	accountrepo "mynotes-auth-service/internal/account/repository"
	"mynotes-auth-service/internal/challenge"
	challengedomain "mynotes-auth-service/internal/challenge/domain"
	"mynotes-auth-service/internal/security"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("a user with the same email already exists")
	ErrUnknownEmail           = errors.New("no account with the entered email was found")
	ErrWrongPassword          = errors.New("incorrect password")
	ErrAccountExists          = errors.New("user exists")
	ErrAccountNotFound        = errors.New("user does not exist")
	// ErrNotVerified means a challenge is pending but its passcode has not
	// been verified yet, so the guarded operation may not proceed.
	ErrNotVerified = errors.New("OTP not verified")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
}

// SignupResult is the outcome of Signup. Exactly one of the two shapes holds:
// OTPSent true with no account (a challenge was issued and must be verified
// first), or OTPSent false with the created account.
type SignupResult struct {
	OTPSent bool
	Account *accountdomain.Account
}

// AuthService wires the account store, the challenge machine, and the opaque
// security primitives into the credential lifecycle operations.
type AuthService struct {
	accounts   AccountRepo
	challenges *challenge.Machine
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	log        *logrus.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	accounts AccountRepo,
	challenges *challenge.Machine,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	log *logrus.Logger,
) *AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthService{
		accounts:   accounts,
		challenges: challenges,
		hasher:     hasher,
		tokens:     tokens,
		log:        log,
	}
}

// Signup registers a new account once the email's challenge is verified.
// With no live challenge it issues one and returns OTPSent; with a pending
// challenge it refuses with ErrNotVerified; with a verified challenge it
// creates the account and then consumes the challenge. If account creation
// fails the challenge stays verified so the client can retry without
// re-verifying.
func (s *AuthService) Signup(ctx context.Context, email, name, password string) (*SignupResult, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	state, err := s.challenges.Status(ctx, email)
	if err != nil {
		return nil, err
	}
	switch state {
	case challengedomain.StateAbsent:
		if err := s.challenges.Request(ctx, email); err != nil {
			return nil, err
		}
		return &SignupResult{OTPSent: true}, nil
	case challengedomain.StatePending:
		return nil, ErrNotVerified
	}

	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	acct := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		// A concurrent signup for the same email lost the race; the unique
		// constraint is the arbiter. The challenge is left verified.
		if errors.Is(err, accountrepo.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	if err := s.challenges.Consume(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Error("failed to consume challenge after signup")
	}
	return &SignupResult{Account: acct}, nil
}

// Signin verifies the password and returns a signed assertion carrying the
// account ID. Unknown email and wrong password are reported as distinct
// errors, matching the service's long-standing contract.
func (s *AuthService) Signin(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if password == "" {
		return "", &ValidationError{Field: "password", Message: "password cannot be blank"}
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrUnknownEmail
	}
	if err := s.hasher.Compare(acct.PasswordHash, []byte(password)); err != nil {
		return "", ErrWrongPassword
	}
	token, _, err := s.tokens.Issue(acct.ID)
	return token, err
}

// SendOTP issues a signup challenge for an email that is not yet registered.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAccountExists
	}
	return s.challenges.Request(ctx, email)
}

// VerifyOTP submits a passcode against the email's pending challenge.
// Returns challenge.ErrNoChallenge or challenge.ErrIncorrectPasscode on failure.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	return s.challenges.Submit(ctx, normalizeEmail(email), code)
}

// RequestReset issues a fresh reset challenge for an existing account,
// unconditionally replacing any prior challenge (the old passcode stops
// working). A nonexistent account is a terminal error, not a silent success.
func (s *AuthService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}
	return s.challenges.Request(ctx, email)
}

// ConfirmReset replaces the account's password hash once the email's
// challenge is verified, then consumes the challenge. A consumption failure
// after the hash was replaced does not fail the call; it is logged and the
// success response stands.
func (s *AuthService) ConfirmReset(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}

	state, err := s.challenges.Status(ctx, email)
	if err != nil {
		return err
	}
	switch state {
	case challengedomain.StateAbsent:
		return challenge.ErrNoChallenge
	case challengedomain.StatePending:
		return ErrNotVerified
	}

	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, email, hashed); err != nil {
		return err
	}
	if err := s.challenges.Consume(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Error("failed to consume challenge after password reset")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	if ok, _ := regexp.MatchString(simpleEmail, email); !ok {
		return &ValidationError{Field: "email", Message: "enter a valid email"}
	}
	return nil
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return &ValidationError{Field: "name", Message: "enter a valid name (min 2 chars)"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Field: "password", Message: "password must be min 8 chars"}
	}
	return nil
}
