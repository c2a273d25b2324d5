package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/utils/response"
)

const healthTimeout = 5 * time.Second

// HandleCheckHealth handles GET /health and reports record store reachability
func (h *StatusHandler) HandleCheckHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := h.records.HealthCheck(ctx); err != nil {
		log.Warnw("health check failed", "error", err)
		return response.ServiceUnavailable(c, "record store unreachable")
	}

	status := fiber.Map{"status": "ok", "dry_run": h.dryRun}
	if h.nextRun != nil {
		if next := h.nextRun(); !next.IsZero() {
			status["next_run"] = next.UTC()
		}
	}
	return response.Success(c, status)
}
