package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/service"
	"github.com/thefutureseer/BlissfulBond/internal/session"
)

// genericResetMsg is returned for every reset request, registered email or
// not. The only way to learn whether an account exists is to receive the
// email out-of-band.
const genericResetMsg = "if that email is registered, a reset link has been sent"

// PasswordResetHandler exposes the three-step reset flow.
type PasswordResetHandler struct {
	Reset    *service.PasswordResetService
	Sessions *session.Manager
}

func NewPasswordResetHandler(svc *service.PasswordResetService, s *session.Manager) *PasswordResetHandler {
	return &PasswordResetHandler{Reset: svc, Sessions: s}
}

type resetRequestReq struct {
	Email string `json:"email"`
}

func (r resetRequestReq) validate() []fieldError {
	if strings.TrimSpace(r.Email) == "" {
		return []fieldError{{"email", "email is required"}}
	}
	return nil
}

type resetValidateReq struct {
	Token string `json:"token"`
}

func (r resetValidateReq) validate() []fieldError {
	if strings.TrimSpace(r.Token) == "" {
		return []fieldError{{"token", "token is required"}}
	}
	return nil
}

type resetCompleteReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r resetCompleteReq) validate() []fieldError {
	var errs []fieldError
	if strings.TrimSpace(r.Token) == "" {
		errs = append(errs, fieldError{"token", "token is required"})
	}
	return checkPassword(errs, "newPassword", r.NewPassword)
}

// Request issues a reset token and queues the email. The response is the
// same 200 whether or not the email belongs to an account.
func (h *PasswordResetHandler) Request(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Reset.Request(ctx, req.Email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": genericResetMsg})
}

// Validate checks a token without consuming it, so the reset form can be
// shown (or rejected) before the user types a new password.
func (h *PasswordResetHandler) Validate(c echo.Context) error {
	var req resetValidateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Reset.Validate(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "userName": u.Name})
}

// Complete consumes the token, replaces the password and logs the user in
// on a regenerated session.
func (h *PasswordResetHandler) Complete(c echo.Context) error {
	var req resetCompleteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if errs := req.validate(); len(errs) > 0 {
		return invalidRequest(c, errs)
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Reset.Complete(ctx, strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	if err := h.Sessions.Issue(c, u.ID, u.Name); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "password reset successfully",
		"user":    userPart{ID: u.ID, Name: u.Name},
	})
}
