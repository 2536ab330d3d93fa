package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/thefutureseer/BlissfulBond/internal/bootstrap"
	"github.com/thefutureseer/BlissfulBond/internal/handler"
	"github.com/thefutureseer/BlissfulBond/internal/middleware"
	"github.com/thefutureseer/BlissfulBond/internal/session"
)

// RegisterRoutes registers routes that do not belong to the auth surface.
// Currently it exposes only the health check, which doubles as the
// readiness probe for the provisioning gate.
func RegisterRoutes(e *echo.Echo, gate *bootstrap.Gate) {
	e.GET("/healthz", handler.Health(gate))
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware. The whole surface sits behind the readiness gate so
// nothing runs against a half-provisioned account set. The rate limiter is
// applied only to the two endpoints worth brute-forcing: login and
// password-reset request.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, pr *handler.PasswordResetHandler,
	sessions *session.Manager, gate *bootstrap.Gate, limiter echo.MiddlewareFunc) {

	g := e.Group("/v1/auth", gate.Middleware())

	// Endpoints that establish or probe credential state. login, signup,
	// setup-password and password-reset/complete each end by regenerating
	// the session; a fixated pre-auth session id gains nothing.
	g.POST("/login", a.Login, limiter)
	g.POST("/logout", a.Logout)
	g.POST("/signup", a.Signup)
	g.POST("/setup-password", a.SetupPassword)
	g.GET("/check-setup/:name", a.CheckSetup)

	// Three-step reset flow: request issues a token and queues the email,
	// validate is non-destructive, complete consumes the token.
	g.POST("/password-reset/request", pr.Request, limiter)
	g.POST("/password-reset/validate", pr.Validate)
	g.POST("/password-reset/complete", pr.Complete)

	// Routes that require a live session.
	authed := g.Group("", middleware.RequireSession(sessions))
	authed.GET("/me", a.Me)
	authed.POST("/change-password", a.ChangePassword)
}
