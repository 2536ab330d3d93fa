package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for reset tokens and session ids
	"encoding/hex"  // hex encoding functions
)

// resetTokenBytes is the entropy of a raw reset token. 32 bytes (256 bits)
// makes collisions between two live tokens practically impossible.
const resetTokenBytes = 32

// sessionIDBytes is the entropy of a session identifier.
const sessionIDBytes = 32

// NewResetToken returns a raw password-reset token: 32 bytes of
// cryptographically secure randomness, hex-encoded to 64 characters. The raw
// value is sent to the user exactly once; only its SHA-256 digest is ever
// persisted, so a database dump alone cannot forge a valid reset.
func NewResetToken() (string, error) {
	return randomHex(resetTokenBytes)
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() (string, error) {
	return randomHex(sessionIDBytes)
}

// HashToken returns the SHA-256 digest of a raw token as a hex string.
// Lookups happen by digest equality (a single indexed query), so no
// per-row comparison loop can leak timing information.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
