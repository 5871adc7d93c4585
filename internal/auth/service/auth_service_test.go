package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	accountdomain "mynotes-auth-service/internal/account/domain"
	accountrepo "mynotes-auth-service/internal/account/repository"
	"mynotes-auth-service/internal/challenge"
	challengedomain "mynotes-auth-service/internal/challenge/domain"
	challengerepo "mynotes-auth-service/internal/challenge/repository"
	"mynotes-auth-service/internal/security"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // bodies
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no mail sent")
	}
	code := codeRe.FindString(f.sent[len(f.sent)-1])
	if code == "" {
		t.Fatal("no passcode in mail body")
	}
	return code
}

type fixture struct {
	auth     *AuthService
	accounts *accountrepo.MemoryRepository
	machine  *challenge.Machine
	mail     *fakeMailer
	tokens   *security.TokenProvider
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	log := logrus.New()
	mail := &fakeMailer{}
	accounts := accountrepo.NewMemoryRepository()
	machine := challenge.NewMachine(challengerepo.NewMemoryRepository(), mail, log, ttl)
	tokens := security.NewTokenProvider([]byte("test-secret"), "mynotes-auth", time.Hour)
	auth := NewAuthService(accounts, machine, security.NewHasher(4), tokens, log)
	return &fixture{auth: auth, accounts: accounts, machine: machine, mail: mail, tokens: tokens}
}

// verify walks an email through issue + submit so guarded operations can proceed.
func (f *fixture) verify(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	if err := f.machine.Request(ctx, email); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := f.machine.Submit(ctx, email, f.mail.lastCode(t)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestSignup_FullFlow(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// First call: no challenge yet, an OTP is issued.
	res, err := f.auth.Signup(ctx, "A@X.com", "Alice", "password123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if !res.OTPSent || res.Account != nil {
		t.Fatalf("first Signup should only send OTP, got %+v", res)
	}
	if len(f.mail.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mail.sent))
	}

	// Second call while pending: refused.
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("Signup while pending: err = %v, want ErrNotVerified", err)
	}

	code := f.mail.lastCode(t)
	if code == "000000" {
		t.Skip("generated the test's wrong code; rerun")
	}

	// Wrong passcode keeps the challenge pending.
	if err := f.auth.VerifyOTP(ctx, "a@x.com", "000000"); err == nil {
		t.Fatal("VerifyOTP with wrong code should fail")
	}
	if err := f.auth.VerifyOTP(ctx, "a@x.com", code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}

	// Verified: signup creates the account and consumes the challenge.
	res, err = f.auth.Signup(ctx, "a@x.com", "Alice", "password123")
	if err != nil {
		t.Fatalf("Signup after verify: %v", err)
	}
	if res.OTPSent || res.Account == nil {
		t.Fatalf("Signup after verify should create account, got %+v", res)
	}
	if res.Account.Email != "a@x.com" {
		t.Errorf("account email = %q, want normalized a@x.com", res.Account.Email)
	}
	if res.Account.PasswordHash == "" || res.Account.PasswordHash == "password123" {
		t.Error("password must be stored hashed")
	}

	state, _ := f.machine.Status(ctx, "a@x.com")
	if state != challengedomain.StateAbsent {
		t.Errorf("challenge state after signup = %v, want absent (consumed)", state)
	}

	stored, _ := f.accounts.GetByEmail(ctx, "a@x.com")
	if stored == nil {
		t.Fatal("account not persisted")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("duplicate Signup: err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

// raceAccounts simulates a concurrent signup: the existence precheck sees no
// account, so the unique constraint in Create must be the arbiter.
type raceAccounts struct {
	*accountrepo.MemoryRepository
}

func (r *raceAccounts) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	return nil, nil
}

func TestSignup_ConcurrentDuplicateResolvedByStore(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.auth.accounts = &raceAccounts{f.accounts}

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); err != nil {
		t.Fatalf("first Signup: %v", err)
	}
	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("racing Signup: err = %v, want ErrEmailAlreadyRegistered from Create", err)
	}
	stored, _ := f.accounts.GetByEmail(ctx, "a@x.com")
	if stored == nil {
		t.Fatal("exactly one account should exist")
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	cases := []struct {
		name                   string
		email, uname, password string
	}{
		{"bad email", "not-an-email", "Alice", "password123"},
		{"short name", "a@x.com", "A", "password123"},
		{"short password", "a@x.com", "Alice", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Signup(ctx, tc.email, tc.uname, tc.password)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSignin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.verify(t, "a@x.com")
	res, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	token, err := f.auth.Signin(ctx, "a@x.com", "password123")
	if err != nil {
		t.Fatalf("Signin: %v", err)
	}
	accountID, err := f.tokens.Validate(token)
	if err != nil {
		t.Fatalf("token does not validate: %v", err)
	}
	if accountID != res.Account.ID {
		t.Errorf("token subject = %q, want %q", accountID, res.Account.ID)
	}

	if _, err := f.auth.Signin(ctx, "nobody@x.com", "password123"); !errors.Is(err, ErrUnknownEmail) {
		t.Errorf("unknown email: err = %v, want ErrUnknownEmail", err)
	}
	if _, err := f.auth.Signin(ctx, "a@x.com", "wrong-password"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password: err = %v, want ErrWrongPassword", err)
	}
}

func TestSendOTP(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if err := f.auth.SendOTP(ctx, "new@x.com"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	state, _ := f.machine.Status(ctx, "new@x.com")
	if state != challengedomain.StatePending {
		t.Errorf("state = %v, want pending (record persisted, not just mailed)", state)
	}

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if err := f.auth.SendOTP(ctx, "a@x.com"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("SendOTP for registered email: err = %v, want ErrAccountExists", err)
	}
}

func TestRequestReset(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if err := f.auth.RequestReset(ctx, "nobody@x.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("RequestReset unknown: err = %v, want ErrAccountNotFound", err)
	}

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "password123"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	// Issue, then re-issue: the first passcode must stop working.
	if err := f.auth.RequestReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	oldCode := f.mail.lastCode(t)
	if err := f.auth.RequestReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("second RequestReset: %v", err)
	}
	newCode := f.mail.lastCode(t)
	if oldCode == newCode {
		t.Skip("generated identical passcodes; cannot distinguish")
	}
	if err := f.auth.VerifyOTP(ctx, "a@x.com", oldCode); !errors.Is(err, challenge.ErrIncorrectPasscode) {
		t.Fatalf("stale code after re-issue: err = %v, want ErrIncorrectPasscode", err)
	}
	if err := f.auth.VerifyOTP(ctx, "a@x.com", newCode); err != nil {
		t.Fatalf("fresh code: %v", err)
	}
}

func TestConfirmReset(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "oldpassword"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if err := f.auth.ConfirmReset(ctx, "nobody@x.com", "newpassword1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown account: err = %v, want ErrAccountNotFound", err)
	}
	if err := f.auth.ConfirmReset(ctx, "a@x.com", "newpassword1"); !errors.Is(err, challenge.ErrNoChallenge) {
		t.Fatalf("no challenge: err = %v, want ErrNoChallenge", err)
	}

	if err := f.auth.RequestReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if err := f.auth.ConfirmReset(ctx, "a@x.com", "newpassword1"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("pending challenge: err = %v, want ErrNotVerified", err)
	}

	if err := f.auth.VerifyOTP(ctx, "a@x.com", f.mail.lastCode(t)); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if err := f.auth.ConfirmReset(ctx, "a@x.com", "newpassword1"); err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}

	// New password works, old one does not.
	if _, err := f.auth.Signin(ctx, "a@x.com", "newpassword1"); err != nil {
		t.Errorf("Signin with new password: %v", err)
	}
	if _, err := f.auth.Signin(ctx, "a@x.com", "oldpassword"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Signin with old password: err = %v, want ErrWrongPassword", err)
	}

	// The challenge was consumed: a repeat confirm finds nothing.
	if err := f.auth.ConfirmReset(ctx, "a@x.com", "anotherpass1"); !errors.Is(err, challenge.ErrNoChallenge) {
		t.Fatalf("repeat ConfirmReset: err = %v, want ErrNoChallenge", err)
	}
}

func TestConfirmReset_ExpiredChallenge(t *testing.T) {
	f := newFixture(t, 200*time.Millisecond)
	ctx := context.Background()

	f.verify(t, "a@x.com")
	if _, err := f.auth.Signup(ctx, "a@x.com", "Alice", "oldpassword"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if err := f.auth.RequestReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if err := f.auth.VerifyOTP(ctx, "a@x.com", f.mail.lastCode(t)); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if err := f.auth.ConfirmReset(ctx, "a@x.com", "newpassword1"); !errors.Is(err, challenge.ErrNoChallenge) {
		t.Fatalf("expired challenge: err = %v, want ErrNoChallenge", err)
	}
}
