package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/thefutureseer/BlissfulBond/internal/model"
)

// SessionRepo persists server-side sessions in the 'user_sessions' table.
// The browser only ever sees the opaque session id; the identity payload
// stays in the data column.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_sessions (id, data, expires_at) VALUES (?,?,?)",
		id, data, expiresAt)
	return err
}

// Get returns a live session. Expired rows behave exactly like missing rows
// (sql.ErrNoRows) so callers cannot distinguish the two.
func (r *SessionRepo) Get(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, data, expires_at, created_at FROM user_sessions WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.Data, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return model.Session{}, err
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		return model.Session{}, sql.ErrNoRows
	}
	return s, nil
}

// Delete removes a session row. Deleting an unknown id is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM user_sessions WHERE id=?", id)
	return err
}

// DeleteExpired purges sessions past their expiry and reports how many rows
// were removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM user_sessions WHERE expires_at < NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
