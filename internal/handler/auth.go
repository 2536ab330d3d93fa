package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/config"
	"github.com/thefutureseer/BlissfulBond/internal/repository"
	"github.com/thefutureseer/BlissfulBond/internal/session"
	"github.com/thefutureseer/BlissfulBond/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions *session.Manager
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, s *session.Manager) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s}
}

// ----- DTOs -----

type loginReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r loginReq) validate() []fieldError {
	var errs []fieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, fieldError{"name", "name is required"})
	}
	if r.Password == "" {
		errs = append(errs, fieldError{"password", "password is required"})
	}
	return errs
}

type setupPasswordReq struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

func (r setupPasswordReq) validate() []fieldError {
	var errs []fieldError
	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, fieldError{"userId", "userId is required"})
	}
	return checkPassword(errs, "password", r.Password)
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r changePasswordReq) validate() []fieldError {
	var errs []fieldError
	if r.CurrentPassword == "" {
		errs = append(errs, fieldError{"currentPassword", "currentPassword is required"})
	}
	return checkPassword(errs, "newPassword", r.NewPassword)
}

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r signupReq) validate() []fieldError {
	var errs []fieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, fieldError{"name", "name is required"})
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		errs = append(errs, fieldError{"email", "email is required"})
	} else if !strings.Contains(email, "@") {
		errs = append(errs, fieldError{"email", "email is invalid"})
	}
	return checkPassword(errs, "password", r.Password)
}

type userPart struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Login: verify name+password and bind a freshly regenerated session.
// Every failure mode (unknown name, no password set yet, wrong password)
// collapses into the same 401 so the response leaks nothing.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByName(ctx, req.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// An account awaiting first-time setup fails closed.
	if !u.HasPassword() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := h.Sessions.Issue(c, u.ID, u.Name); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userPart{ID: u.ID, Name: u.Name}})
}

// Logout destroys the current session.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Sessions.Destroy(c); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to logout"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// Me returns the authenticated user (protected).
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 u.ID,
		"name":               u.Name,
		"needsPasswordSetup": !u.HasPassword(),
	})
}

// SetupPassword sets the initial password for an account that has none.
// The already-set check is repeated inside the guarded UPDATE, so two setup
// calls racing for a brand-new account cannot both win.
func (h *AuthHandler) SetupPassword(c echo.Context) error {
	var req setupPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if u.HasPassword() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password already set, use change password instead"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	ok, err := h.Users.SetPasswordIfUnset(ctx, u.ID, hash)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if !ok {
		// Lost the race against a concurrent setup call.
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password already set, use change password instead"})
	}

	if err := h.Sessions.Issue(c, u.ID, u.Name); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "password set successfully",
		"user":    userPart{ID: u.ID, Name: u.Name},
	})
}

// ChangePassword replaces the password for the session's user after
// re-proving the current one (protected). A live session alone is not
// enough to rotate the credential.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		// The session may outlive its user row.
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	if err := h.Users.SetPassword(ctx, u.ID, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	// Any outstanding reset token was requested against the old password
	// and must not survive the change.
	if err := h.Users.ClearResetToken(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed successfully"})
}

// CheckSetup reports whether the named account still needs first-time
// password setup. Names are a small fixed set, so a 404 here leaks nothing
// useful.
func (h *AuthHandler) CheckSetup(c echo.Context) error {
	name := c.Param("name")
	if strings.TrimSpace(name) == "" {
		return invalidRequest(c, []fieldError{{"name", "name is required"}})
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"userId":     u.ID,
		"needsSetup": !u.HasPassword(),
	})
}

// Signup registers a new name+email pair directly into the password-set
// state and logs the account in. Duplicate name or email collapses into one
// generic message: on this path enumeration risk is higher, so the response
// never names the colliding field.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	u, err := h.Users.Create(ctx, req.Name, req.Email, &hash)
	if err != nil {
		if errors.Is(err, repository.ErrNameExists) || errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name or email already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if err := h.Sessions.Issue(c, u.ID, u.Name); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userPart{ID: u.ID, Name: u.Name}})
}
