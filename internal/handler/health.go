package handler

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the service's stores are reachable.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Health answers "ok" when MySQL and, if configured, Redis answer a ping.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	status := echo.Map{"status": "ok"}
	code := http.StatusOK
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status["status"], status["db"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			status["status"], status["redis"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}
