package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/thefutureseer/BlissfulBond/internal/config"
	"github.com/thefutureseer/BlissfulBond/internal/model"
	"github.com/thefutureseer/BlissfulBond/internal/repository"
)

// SeedCouple provisions the two configured partner accounts and links them
// mutually. It is idempotent: existing accounts are reused and an already
// mutual link is left alone. Accounts are created without a password, so
// the owners go through the first-time setup flow on their first visit.
//
// This is the only caller of LinkPartners; the partner link is never
// writable after provisioning.
func SeedCouple(ctx context.Context, users *repository.UserRepo, cfg config.Config) error {
	if cfg.SeedPartnerAName == "" || cfg.SeedPartnerBName == "" {
		log.Printf("seed: partner accounts not configured, skipping provisioning")
		return nil
	}
	// Emails are mandatory once names are set: two accounts with an empty
	// email would collide on the unique email column and abort startup.
	if cfg.SeedPartnerAEmail == "" || cfg.SeedPartnerBEmail == "" {
		log.Printf("seed: partner emails not configured, skipping provisioning")
		return nil
	}

	a, err := ensureUser(ctx, users, cfg.SeedPartnerAName, cfg.SeedPartnerAEmail)
	if err != nil {
		return err
	}
	b, err := ensureUser(ctx, users, cfg.SeedPartnerBName, cfg.SeedPartnerBEmail)
	if err != nil {
		return err
	}

	if err := users.LinkPartners(ctx, a.ID, b.ID); err != nil {
		return err
	}
	log.Printf("seed: provisioned couple %s (%s) <-> %s (%s)", a.Name, a.ID, b.Name, b.ID)
	return nil
}

func ensureUser(ctx context.Context, users *repository.UserRepo, name, email string) (model.User, error) {
	u, err := users.GetByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}
	log.Printf("seed: creating account %q", name)
	return users.Create(ctx, name, email, nil)
}
