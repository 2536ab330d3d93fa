// Package bootstrap owns startup provisioning and the readiness gate.
package bootstrap

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Gate is explicit initialization state handed to the router. It replaces a
// process-wide "seeding done" flag so multiple instances and tests never
// share hidden mutable state.
type Gate struct {
	mu    sync.RWMutex
	ready bool
}

func NewGate() *Gate { return &Gate{} }

// MarkReady flips the gate open. Called once provisioning has finished.
func (g *Gate) MarkReady() {
	g.mu.Lock()
	g.ready = true
	g.mu.Unlock()
}

// Ready reports whether startup provisioning has completed.
func (g *Gate) Ready() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready
}

// Middleware rejects requests with 503 until the gate is open, so no auth
// flow can observe a half-provisioned account set.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !g.Ready() {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service starting"})
			}
			return next(c)
		}
	}
}
