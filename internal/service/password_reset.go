// Package service holds the credential-lifecycle orchestration that sits
// between the HTTP handlers and the repositories.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/thefutureseer/BlissfulBond/internal/model"
	"github.com/thefutureseer/BlissfulBond/internal/queue"
	"github.com/thefutureseer/BlissfulBond/internal/repository"
	"github.com/thefutureseer/BlissfulBond/internal/utils"
)

// ErrTokenInvalid covers every reset-token failure: unknown digest, expired
// token, or a token superseded/consumed by a concurrent request. Callers get
// one generic error so responses cannot be used to probe token state.
var ErrTokenInvalid = errors.New("invalid or expired reset token")

// PasswordResetService drives the reset-token state machine over the
// users.reset_token_* columns. A user holds at most one live token; issuing
// a new one silently supersedes the old, validation is non-destructive, and
// only completion consumes the token.
type PasswordResetService struct {
	Users      *repository.UserRepo
	TokenTTL   time.Duration
	BcryptCost int

	// Notify hands the raw token to the mail pipeline. Swappable in tests.
	Notify func(ctx context.Context, ev queue.PasswordResetRequestedEvent) error
}

func NewPasswordResetService(users *repository.UserRepo, tokenTTL time.Duration, bcryptCost int) *PasswordResetService {
	return &PasswordResetService{
		Users:      users,
		TokenTTL:   tokenTTL,
		BcryptCost: bcryptCost,
		Notify:     queue.PublishPasswordResetRequested,
	}
}

// Request issues a reset token for the account behind email. An unknown
// email returns nil all the same: the caller must not be able to tell
// registered addresses from unregistered ones. A publish failure is logged
// and swallowed; the token is already stored and a later request simply
// supersedes it.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	raw, err := utils.NewResetToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	exp := now.Add(s.TokenTTL)
	if err := s.Users.SetResetToken(ctx, u.ID, utils.HashToken(raw), now, exp); err != nil {
		return err
	}

	if s.Notify != nil {
		ev := queue.PasswordResetRequestedEvent{
			UserID:      u.ID,
			UserName:    u.Name,
			Email:       u.Email,
			RawToken:    raw,
			ExpiresAt:   exp.Format(time.RFC3339),
			RequestedAt: now.Format(time.RFC3339),
		}
		if err := s.Notify(ctx, ev); err != nil {
			log.Printf("password-reset: publish failed for user %s: %v", u.ID, err)
		}
	}
	return nil
}

// Validate checks a raw token without consuming it. Returns the owning user
// when the digest matches a stored value and the expiry has not passed.
func (s *PasswordResetService) Validate(ctx context.Context, rawToken string) (model.User, error) {
	u, err := s.Users.GetByResetTokenHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrTokenInvalid
		}
		return model.User{}, err
	}
	if u.ResetTokenExpiresAt == nil || !time.Now().UTC().Before(*u.ResetTokenExpiresAt) {
		return model.User{}, ErrTokenInvalid
	}
	return u, nil
}

// Complete consumes the token and replaces the password. The consuming
// UPDATE is guarded by the digest, so if a concurrent request superseded or
// already consumed the token between Validate and the write, the caller
// gets ErrTokenInvalid rather than a silent double-apply.
func (s *PasswordResetService) Complete(ctx context.Context, rawToken, newPassword string) (model.User, error) {
	u, err := s.Validate(ctx, rawToken)
	if err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(newPassword, s.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	ok, err := s.Users.CompleteReset(ctx, u.ID, utils.HashToken(rawToken), hash)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		return model.User{}, ErrTokenInvalid
	}
	return u, nil
}
