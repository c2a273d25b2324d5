package handlers

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/database"
	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/crawler"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/response"
)

// StatusHandler serves read-only run status for daemon mode
type StatusHandler struct {
	records  database.RecordStore
	registry *crawler.Registry
	sources  []model.Source
	dryRun   bool
	nextRun  func() time.Time
}

// NewStatusHandler creates a status handler. nextRun may be nil.
func NewStatusHandler(records database.RecordStore, registry *crawler.Registry, sources []model.Source, dryRun bool, nextRun func() time.Time) *StatusHandler {
	return &StatusHandler{
		records:  records,
		registry: registry,
		sources:  sources,
		dryRun:   dryRun,
		nextRun:  nextRun,
	}
}

// SourceStatus describes a configured source
type SourceStatus struct {
	URL         string `json:"url"`
	Strategy    string `json:"strategy"`
	DisplayName string `json:"display_name,omitempty"`
	Override    bool   `json:"override"`
}

// ListRuns handles GET /api/v1/runs?source=&page=&limit=
// Rows come back newest first; source defaults to the aggregate rows.
func (h *StatusHandler) ListRuns(c *fiber.Ctx) error {
	source := c.Query("source", model.AggregateSource)
	if !h.knownSource(source) {
		return response.NotFound(c, "unknown source")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 || limit < 1 {
		return response.BadRequest(c, "page and limit must be positive")
	}

	rows, err := h.records.FindByField(c.UserContext(), model.CollectionRuns, "source", source)
	if err != nil {
		log.Errorw("failed to list runs", "source", source, "error", err)
		return response.InternalServerError(c, "failed to list runs")
	}

	// Stores return newest first already; keep it stable for equal timestamps
	sort.SliceStable(rows, func(i, j int) bool {
		return createdAt(rows[i]).After(createdAt(rows[j]))
	})

	meta := response.CalculatePagination(page, limit, int64(len(rows)))
	start, end := meta.Bounds()
	return response.Paginated(c, rows[start:end], meta)
}

// ListSources handles GET /api/v1/sources
func (h *StatusHandler) ListSources(c *fiber.Ctx) error {
	out := make([]SourceStatus, 0, len(h.sources))
	for _, src := range h.sources {
		strategy := h.registry.For(src.URL)
		if src.Strategy != "" {
			if named, err := h.registry.ByName(src.Strategy); err == nil {
				strategy = named
			}
		}

		status := SourceStatus{URL: src.URL, Strategy: src.Strategy, Override: src.Strategy != ""}
		if status.Strategy == "" {
			status.Strategy = strategy.Name()
		}
		if named, ok := strategy.(interface{ DisplayName() string }); ok {
			status.DisplayName = named.DisplayName()
		}
		out = append(out, status)
	}

	return response.Success(c, fiber.Map{
		"sources":    out,
		"strategies": h.registry.Names(),
	})
}

// knownSource reports whether runs can exist for source
func (h *StatusHandler) knownSource(source string) bool {
	if source == model.AggregateSource {
		return true
	}
	for _, src := range h.sources {
		if src.URL == source {
			return true
		}
	}
	return false
}

func createdAt(row model.Row) time.Time {
	switch v := row["created_at"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
