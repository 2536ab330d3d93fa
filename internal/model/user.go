package model

import "time"

// User represents a row in the `users` table. Password and reset-token
// columns are nullable: a NULL password_hash means the account still needs
// first-time setup, and the reset_token_* trio is only populated while a
// password-reset request is live.
//
// PartnerID links the two halves of a couple. The link is established once
// at provisioning time and is mutual (A.partner_id = B.id and vice versa);
// it must never be writable through the generic profile-update path.
type User struct {
	ID                  string     // users.id
	Name                string     // users.name
	Email               string     // users.email
	PasswordHash        *string    // users.password_hash
	PasswordUpdatedAt   *time.Time // users.password_updated_at
	ResetTokenHash      *string    // users.reset_token_hash
	ResetTokenExpiresAt *time.Time // users.reset_token_expires_at
	ResetTokenIssuedAt  *time.Time // users.reset_token_issued_at
	PartnerID           *string    // users.partner_id
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
}

// HasPassword reports whether the account has completed password setup.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session models an entry in the `user_sessions` table. The session id is
// an opaque random value handed to the browser inside a signed cookie; Data
// holds the serialized identity payload (user id and name).
type Session struct {
	ID        string    // user_sessions.id
	Data      []byte    // user_sessions.data
	ExpiresAt time.Time // user_sessions.expires_at
	CreatedAt time.Time // user_sessions.created_at
}
