package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// minPasswordLen is the minimum accepted password length across setup,
// change, signup and reset completion.
const minPasswordLen = 8

// maxPasswordLen is bcrypt's 72-byte input limit. Anything longer is a
// validation failure at the boundary, not a hashing error.
const maxPasswordLen = 72

// checkPassword validates a password field against the length bounds and
// appends any failures to errs.
func checkPassword(errs []fieldError, field, password string) []fieldError {
	if len(password) < minPasswordLen {
		return append(errs, fieldError{field, field + " must be at least 8 characters"})
	}
	if len(password) > maxPasswordLen {
		return append(errs, fieldError{field, field + " must be at most 72 characters"})
	}
	return errs
}

// fieldError describes one invalid input field. Validation collects the
// exhaustive list instead of stopping at the first problem, so clients can
// surface everything at once.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// invalidRequest reports structured validation failures with a 400.
func invalidRequest(c echo.Context, errs []fieldError) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request", "fields": errs})
}

// reqContext bounds a handler's database pipeline to five seconds.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
