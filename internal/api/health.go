package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	logger  *slog.Logger
	db      Pinger
	cache   Pinger
	version string
}

// Healthy reports 503 when the database is unreachable. A cache outage only
// degrades the service, since every cached read falls back to the database.
func (h *HealthHandler) Healthy(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok", "cache": "ok"}
	status := "healthy"

	if err := h.db.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Database connection failed", "error", err)
		checks["database"] = "unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"checks":  checks,
			"version": h.version,
		})
	}
	if err := h.cache.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "Cache connection failed", "error", err)
		checks["cache"] = "unavailable"
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
