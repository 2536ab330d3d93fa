package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thefutureseer/BlissfulBond/internal/model"
)

const userColumns = "id,name,email,password_hash,password_updated_at," +
	"reset_token_hash,reset_token_expires_at,reset_token_issued_at," +
	"partner_id,created_at,updated_at"

// updatableUserColumns is the allowlist for the generic Update path.
// partner_id is deliberately absent: the couple link is set once by
// provisioning and rejected everywhere else.
var updatableUserColumns = map[string]bool{
	"name":  true,
	"email": true,
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns the stored record. passwordHash may be
// nil, which leaves the account in the needs-setup state. Email is trimmed
// and lowercased before insert so its uniqueness is case-insensitive; the
// name is stored exactly as given.
func (r *UserRepo) Create(ctx context.Context, name, email string, passwordHash *string) (model.User, error) {
	email = normalize(email)
	id := uuid.NewString()

	var updatedAt interface{}
	if passwordHash != nil {
		updatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, password_updated_at) VALUES (?,?,?,?,?)",
		id, name, email, passwordHash, updatedAt)
	if err != nil {
		if isDuplicate(err) {
			if strings.Contains(strings.ToLower(err.Error()), "email") {
				return model.User{}, ErrEmailExists
			}
			return model.User{}, ErrNameExists
		}
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByName fetches a user by exact name. Names are matched as given, no
// case folding.
func (r *UserRepo) GetByName(ctx context.Context, name string) (model.User, error) {
	return r.getBy(ctx, "name", name)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getBy(ctx, "email", normalize(email))
}

// GetByResetTokenHash fetches the user holding the given reset-token digest.
// Returns sql.ErrNoRows when no live or stale token row matches.
func (r *UserRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (model.User, error) {
	return r.getBy(ctx, "reset_token_hash", tokenHash)
}

// Update applies a generic profile update. Only allowlisted columns may be
// touched; partner_id is rejected with ErrPartnerImmutable before any SQL
// runs, and unknown columns fail with ErrUnknownField.
func (r *UserRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "partner_id" || k == "partnerId" {
			return ErrPartnerImmutable
		}
		if !updatableUserColumns[k] {
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		v := fields[k]
		// Only email is case-normalized; names keep their casing.
		if s, ok := v.(string); ok && k == "email" {
			v = normalize(s)
		}
		set = append(set, k+"=?")
		args = append(args, v)
	}
	set = append(set, "updated_at=NOW()")
	args = append(args, id)

	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	if err != nil && isDuplicate(err) {
		if strings.Contains(strings.ToLower(err.Error()), "email") {
			return ErrEmailExists
		}
		return ErrNameExists
	}
	return err
}

// SetPassword replaces the password hash unconditionally (change / reset).
func (r *UserRepo) SetPassword(ctx context.Context, id, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_updated_at=NOW(), updated_at=NOW() WHERE id=?",
		hash, id)
	return err
}

// SetPasswordIfUnset sets the password only when none exists yet. The
// precondition lives in the WHERE clause so two racing setup calls cannot
// both win; the loser sees false.
func (r *UserRepo) SetPasswordIfUnset(ctx context.Context, id, hash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_updated_at=NOW(), updated_at=NOW() WHERE id=? AND password_hash IS NULL",
		hash, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetResetToken stores a reset-token digest with its expiry, silently
// superseding any previous token for the user.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, issuedAt, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=?, reset_token_expires_at=?, reset_token_issued_at=?, updated_at=NOW() WHERE id=?",
		tokenHash, expiresAt, issuedAt, id)
	return err
}

// CompleteReset consumes a reset token: it replaces the password and clears
// the token fields in one statement guarded by the digest, so a token can be
// consumed at most once even under concurrent completions.
func (r *UserRepo) CompleteReset(ctx context.Context, id, tokenHash, newPasswordHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, password_updated_at=NOW(), "+
			"reset_token_hash=NULL, reset_token_expires_at=NULL, reset_token_issued_at=NULL, updated_at=NOW() "+
			"WHERE id=? AND reset_token_hash=?",
		newPasswordHash, id, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearResetToken wipes the reset-token fields for a user.
func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=NULL, reset_token_expires_at=NULL, reset_token_issued_at=NULL, updated_at=NOW() WHERE id=?",
		id)
	return err
}

// LinkPartners establishes the mutual couple link between two users inside
// one transaction. Linking is idempotent when the pair is already mutually
// linked and fails with ErrPartnerConflict when either side belongs to a
// different pair. This is the only code path allowed to write partner_id.
func (r *UserRepo) LinkPartners(ctx context.Context, aID, bID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var aPartner, bPartner sql.NullString
	if err := tx.QueryRowContext(ctx,
		"SELECT partner_id FROM users WHERE id=? FOR UPDATE", aID).Scan(&aPartner); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT partner_id FROM users WHERE id=? FOR UPDATE", bID).Scan(&bPartner); err != nil {
		return err
	}

	if aPartner.Valid && aPartner.String == bID && bPartner.Valid && bPartner.String == aID {
		return tx.Commit() // already mutually linked
	}
	if (aPartner.Valid && aPartner.String != bID) || (bPartner.Valid && bPartner.String != aID) {
		return ErrPartnerConflict
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET partner_id=?, updated_at=NOW() WHERE id=?", bID, aID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET partner_id=?, updated_at=NOW() WHERE id=?", aID, bID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (model.User, error) {
	var (
		u           model.User
		passHash    sql.NullString
		passUpdated sql.NullTime
		tokenHash   sql.NullString
		tokenExp    sql.NullTime
		tokenIssued sql.NullTime
		partnerID   sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+"=? LIMIT 1",
		value).Scan(&u.ID, &u.Name, &u.Email, &passHash, &passUpdated,
		&tokenHash, &tokenExp, &tokenIssued, &partnerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if passHash.Valid {
		u.PasswordHash = &passHash.String
	}
	if passUpdated.Valid {
		u.PasswordUpdatedAt = &passUpdated.Time
	}
	if tokenHash.Valid {
		u.ResetTokenHash = &tokenHash.String
	}
	if tokenExp.Valid {
		u.ResetTokenExpiresAt = &tokenExp.Time
	}
	if tokenIssued.Valid {
		u.ResetTokenIssuedAt = &tokenIssued.Time
	}
	if partnerID.Valid {
		u.PartnerID = &partnerID.String
	}
	return u, nil
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// isDuplicate detects a MySQL unique-constraint violation (error 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
