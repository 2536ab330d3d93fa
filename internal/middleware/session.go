package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/session"
)

// RequireSession returns an Echo middleware that resolves the session cookie
// into an authenticated identity and injects it into the request context.
// Handlers behind this middleware can read the user via `c.Get("user_id")`
// and `c.Get("user_name")`. Requests with a missing, forged, expired or
// destroyed session are rejected with a single generic 401; the response
// never says which of those it was.
func RequireSession(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := sessions.Current(c)
			if err != nil {
				if errors.Is(err, session.ErrNoSession) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
			}
			c.Set("user_id", id.UserID)
			c.Set("user_name", id.UserName)
			return next(c)
		}
	}
}
