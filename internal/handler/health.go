package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thefutureseer/BlissfulBond/internal/bootstrap"
)

// Health reports liveness plus provisioning readiness. Load balancers keep
// traffic away until the couple accounts are seeded.
func Health(gate *bootstrap.Gate) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !gate.Ready() {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "starting"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
