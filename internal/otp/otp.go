// Package otp generates and hashes one-time passcodes for email verification.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const passcodeDigits = 6

// Generate returns a 6-digit numeric passcode string (e.g. "047213").
// Each digit is drawn independently from crypto/rand; leading zeros are kept.
func Generate() (string, error) {
	b := make([]byte, passcodeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, passcodeDigits)
	for i := 0; i < passcodeDigits; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}

// Hash returns a SHA-256 hash of the passcode, hex-encoded. Challenges store
// only this hash, never the passcode itself.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Equal performs constant-time comparison of two passcode hashes.
func Equal(providedHash, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
