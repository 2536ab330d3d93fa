// Package session implements server-side cookie sessions. The cookie carries
// only an opaque id signed with the session secret; identity lives in the
// user_sessions table. A fresh id is issued on every privilege transition
// (login, signup, password setup, reset completion) so a fixated pre-auth id
// is worthless after authentication.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/repository"
	"github.com/thefutureseer/BlissfulBond/internal/utils"
)

// CookieName is the session cookie name.
const CookieName = "bb_session"

// ErrNoSession is returned when the request carries no valid session: the
// cookie is absent, tampered with, expired, or references a destroyed row.
var ErrNoSession = errors.New("no valid session")

// Identity is the payload serialized into the session row.
type Identity struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Manager issues, resolves and destroys sessions.
type Manager struct {
	Sessions *repository.SessionRepo
	secret   []byte
	ttl      time.Duration
	secure   bool
}

// NewManager builds a Manager. secure controls the cookie's Secure flag and
// should be true in production deployments only.
func NewManager(sessions *repository.SessionRepo, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{Sessions: sessions, secret: []byte(secret), ttl: ttl, secure: secure}
}

// Issue regenerates the session and binds it to the given identity. The new
// row is written before the old one is removed, so there is no window in
// which the caller holds no valid session at all.
func (m *Manager) Issue(c echo.Context, userID, userName string) error {
	sid, err := utils.NewSessionID()
	if err != nil {
		return err
	}
	data, err := json.Marshal(Identity{UserID: userID, UserName: userName})
	if err != nil {
		return err
	}
	exp := time.Now().UTC().Add(m.ttl)

	ctx := c.Request().Context()
	if err := m.Sessions.Create(ctx, sid, data, exp); err != nil {
		return err
	}
	if old, ok := m.requestSID(c); ok && old != sid {
		_ = m.Sessions.Delete(ctx, old)
	}
	m.setCookie(c, sid, exp)
	return nil
}

// Current resolves the request's session into an Identity.
func (m *Manager) Current(c echo.Context) (Identity, error) {
	sid, ok := m.requestSID(c)
	if !ok {
		return Identity{}, ErrNoSession
	}
	s, err := m.Sessions.Get(c.Request().Context(), sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrNoSession
		}
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(s.Data, &id); err != nil {
		return Identity{}, ErrNoSession
	}
	return id, nil
}

// Destroy invalidates the request's session immediately and expires the
// cookie. Destroying an absent session is a no-op.
func (m *Manager) Destroy(c echo.Context) error {
	if sid, ok := m.requestSID(c); ok {
		if err := m.Sessions.Delete(c.Request().Context(), sid); err != nil {
			return err
		}
	}
	m.clearCookie(c)
	return nil
}

// requestSID extracts and authenticates the session id from the cookie.
// The signature check happens before any database lookup, so forged cookies
// never reach the store.
func (m *Manager) requestSID(c echo.Context) (string, bool) {
	ck, err := c.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	sid, sig, found := strings.Cut(ck.Value, ".")
	if !found || sid == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(sid))) {
		return "", false
	}
	return sid, true
}

func (m *Manager) sign(sid string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sid))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *Manager) setCookie(c echo.Context, sid string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    sid + "." + m.sign(sid),
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
