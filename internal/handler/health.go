package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a liveness endpoint for load balancers and monitoring.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready reports readiness: the service is ready once the database answers
// a ping.  The broker and Redis are degraded-mode dependencies and do not
// gate readiness.
func Ready(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return respondErr(c, http.StatusServiceUnavailable, "database unavailable")
		}
		return respondOK(c, http.StatusOK, echo.Map{"status": "ready"})
	}
}
