// Package queue defines message payloads exchanged over the message broker
// plus the publisher and consumer for the password-reset mail pipeline.
package queue

// resetQueueName is the durable queue carrying reset-email jobs.
const resetQueueName = "auth.password_reset"

// PasswordResetRequestedEvent is published when a reset token has been
// issued. It carries the raw token so the mail worker can render the magic
// link; the raw value is never persisted anywhere, only its digest lives in
// the users table.
type PasswordResetRequestedEvent struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	RawToken    string `json:"raw_token"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}
