package domain

import "time"

// State is the lifecycle state of an email's challenge, computed at read time.
type State int

const (
	// StateAbsent means no live record exists for the email: either none was
	// ever issued, the last one expired, or it was consumed.
	StateAbsent State = iota
	// StatePending means a live record exists but the passcode has not been verified.
	StatePending
	// StateVerified means the passcode was verified and a guarded operation may proceed.
	StateVerified
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateVerified:
		return "verified"
	default:
		return "absent"
	}
}

// Challenge is the per-email OTP record (stored in otp_challenges table).
// At most one live challenge exists per email; issuing a new one replaces it.
type Challenge struct {
	Email     string
	CodeHash  string
	Verified  bool
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its ttl at the given time.
// An expired record must be treated exactly like an absent one.
func (c *Challenge) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(c.CreatedAt.Add(ttl))
}

// State computes the lifecycle state at the given time. A nil or expired
// challenge is Absent regardless of Verified.
func (c *Challenge) State(now time.Time, ttl time.Duration) State {
	if c == nil || c.Expired(now, ttl) {
		return StateAbsent
	}
	if c.Verified {
		return StateVerified
	}
	return StatePending
}
