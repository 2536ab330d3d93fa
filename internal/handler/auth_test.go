package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/thefutureseer/BlissfulBond/internal/config"
	"github.com/thefutureseer/BlissfulBond/internal/middleware"
	"github.com/thefutureseer/BlissfulBond/internal/repository"
	"github.com/thefutureseer/BlissfulBond/internal/session"
	"github.com/thefutureseer/BlissfulBond/internal/utils"
)

var userCols = []string{
	"id", "name", "email", "password_hash", "password_updated_at",
	"reset_token_hash", "reset_token_expires_at", "reset_token_issued_at",
	"partner_id", "created_at", "updated_at",
}

const userSelectCols = "id,name,email,password_hash,password_updated_at," +
	"reset_token_hash,reset_token_expires_at,reset_token_issued_at," +
	"partner_id,created_at,updated_at"

const (
	selectByName  = "SELECT " + userSelectCols + " FROM users WHERE name=? LIMIT 1"
	selectByID    = "SELECT " + userSelectCols + " FROM users WHERE id=? LIMIT 1"
	sessionInsert = "INSERT INTO user_sessions (id, data, expires_at) VALUES (?,?,?)"
)

func newAuthEnv(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewUserRepo(db)
	sessions := session.NewManager(repository.NewSessionRepo(db), "test-secret", time.Hour, false)
	cfg := config.Config{BcryptCost: 4}
	return NewAuthHandler(cfg, users, sessions), mock
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func namedUserRow(id, name, email string, passwordHash any) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(userCols).
		AddRow(id, name, email, passwordHash, nil, nil, nil, nil, nil, now, now)
}

func hashFor(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, 4)
	require.NoError(t, err)
	return h
}

func TestLoginSuccess(t *testing.T) {
	h, mock := newAuthEnv(t)
	// The submitted name is looked up and echoed back exactly as typed.
	mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
		WithArgs("Alice").
		WillReturnRows(namedUserRow("u1", "Alice", "a@x.com", hashFor(t, "correct-horse")))
	mock.ExpectExec(regexp.QuoteMeta(sessionInsert)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
		`{"name":"Alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	user := out["user"].(map[string]any)
	require.Equal(t, "u1", user["id"])
	require.Equal(t, "Alice", user["name"])

	// A fresh session cookie rides along with the response.
	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName && ck.Value != "" {
			found = true
		}
	}
	require.True(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	// Unknown name, unset password and wrong password must produce the
	// byte-identical 401 body.
	const wantErr = "invalid credentials"

	t.Run("unknown name", func(t *testing.T) {
		h, mock := newAuthEnv(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"name":"ghost","password":"whatever1"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, wantErr, out["error"])
	})

	t.Run("password not set yet", func(t *testing.T) {
		h, mock := newAuthEnv(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
			WithArgs("alice").
			WillReturnRows(namedUserRow("u1", "alice", "a@x.com", nil))

		rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"name":"alice","password":"whatever1"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, wantErr, out["error"])
	})

	t.Run("wrong password", func(t *testing.T) {
		h, mock := newAuthEnv(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
			WithArgs("alice").
			WillReturnRows(namedUserRow("u1", "alice", "a@x.com", hashFor(t, "the-real-one")))

		rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"name":"alice","password":"not-the-one"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, wantErr, out["error"])
	})
}

func TestLoginCollectsAllFieldErrors(t *testing.T) {
	h, _ := newAuthEnv(t)
	rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid request", out["error"])
	require.Len(t, out["fields"], 2)
}

func TestSetupPasswordHappyPath(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(namedUserRow("u1", "alice", "a@x.com", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, password_updated_at=NOW(), updated_at=NOW() WHERE id=? AND password_hash IS NULL")).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(sessionInsert)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, out := doJSON(t, h.SetupPassword, http.MethodPost, "/v1/auth/setup-password",
		`{"userId":"u1","password":"first-pass-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", out["user"].(map[string]any)["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupPasswordAlreadySet(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(namedUserRow("u1", "alice", "a@x.com", hashFor(t, "existing-one")))

	rec, out := doJSON(t, h.SetupPassword, http.MethodPost, "/v1/auth/setup-password",
		`{"userId":"u1","password":"first-pass-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "already set")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupPasswordRaceLoser(t *testing.T) {
	h, mock := newAuthEnv(t)
	// The pre-check sees no password, but a concurrent call wins the
	// guarded UPDATE in between.
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(namedUserRow("u1", "alice", "a@x.com", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, password_updated_at=NOW(), updated_at=NOW() WHERE id=? AND password_hash IS NULL")).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec, out := doJSON(t, h.SetupPassword, http.MethodPost, "/v1/auth/setup-password",
		`{"userId":"u1","password":"first-pass-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "already set")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupPasswordUnknownUser(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	rec, _ := doJSON(t, h.SetupPassword, http.MethodPost, "/v1/auth/setup-password",
		`{"userId":"nope","password":"first-pass-1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(namedUserRow("u1", "alice", "a@x.com", hashFor(t, "the-real-one")))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change-password",
		strings.NewReader(`{"currentPassword":"wrong-guess","newPassword":"next-pass-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u1")

	require.NoError(t, h.ChangePassword(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "current password is incorrect")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordSuccess(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(namedUserRow("u1", "alice", "a@x.com", hashFor(t, "the-real-one")))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, password_updated_at=NOW(), updated_at=NOW() WHERE id=?")).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// A stale reset token requested against the old password is wiped.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET reset_token_hash=NULL, reset_token_expires_at=NULL, reset_token_issued_at=NULL, updated_at=NOW() WHERE id=?")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change-password",
		strings.NewReader(`{"currentPassword":"the-real-one","newPassword":"next-pass-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u1")

	require.NoError(t, h.ChangePassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckSetup(t *testing.T) {
	t.Run("needs setup", func(t *testing.T) {
		h, mock := newAuthEnv(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
			WithArgs("alice").
			WillReturnRows(namedUserRow("u1", "alice", "a@x.com", nil))

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name")
		c.SetParamValues("alice")

		require.NoError(t, h.CheckSetup(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Equal(t, "u1", out["userId"])
		require.Equal(t, true, out["needsSetup"])
	})

	t.Run("unknown name", func(t *testing.T) {
		h, mock := newAuthEnv(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectByName)).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name")
		c.SetParamValues("ghost")

		require.NoError(t, h.CheckSetup(c))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOverlongPasswordIsRejectedAtValidation(t *testing.T) {
	// 80 bytes exceeds bcrypt's 72-byte input limit. The boundary check
	// must catch it with a 400; no DB expectations are registered, so
	// reaching the hasher or the store would fail the test.
	long := strings.Repeat("a", 80)

	h, _ := newAuthEnv(t)
	rec, out := doJSON(t, h.Signup, http.MethodPost, "/v1/auth/signup",
		`{"name":"alice","email":"a@x.com","password":"`+long+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid request", out["error"])

	rec, out = doJSON(t, h.SetupPassword, http.MethodPost, "/v1/auth/setup-password",
		`{"userId":"u1","password":"`+long+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid request", out["error"])
}

func TestChangePasswordDeletedUser(t *testing.T) {
	h, mock := newAuthEnv(t)
	// The session resolved, but the user row is gone.
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change-password",
		strings.NewReader(`{"currentPassword":"the-real-one","newPassword":"next-pass-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u1")

	require.NoError(t, h.ChangePassword(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupDuplicateIsGeneric(t *testing.T) {
	h, mock := newAuthEnv(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, name, email, password_hash, password_updated_at) VALUES (?,?,?,?,?)")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'a@x.com' for key 'users.uq_users_email'"))

	rec, out := doJSON(t, h.Signup, http.MethodPost, "/v1/auth/signup",
		`{"name":"alice","email":"a@x.com","password":"first-pass-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	// Neither "name" nor "email" is singled out.
	require.Equal(t, "name or email already in use", out["error"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeRejectsMissingSession(t *testing.T) {
	h, _ := newAuthEnv(t)
	guarded := middleware.RequireSession(h.Sessions)(h.Me)

	rec, out := doJSON(t, guarded, http.MethodGet, "/v1/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "not authenticated", out["error"])
}

func TestLogoutDestroysSession(t *testing.T) {
	h, mock := newAuthEnv(t)
	rec, out := doJSON(t, h.Logout, http.MethodPost, "/v1/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "logged out successfully", out["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}
