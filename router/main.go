package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/ktu-notes-scraper/handlers"
)

func SetupRoutes(app *fiber.App, status *handlers.StatusHandler) {
	app.Get("/health", status.HandleCheckHealth)

	v1 := app.Group("/api/v1")
	v1.Get("/runs", status.ListRuns)
	v1.Get("/sources", status.ListSources)
}
