package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/crawler"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
)

type fakeRecords struct {
	rows      []model.Row
	healthErr error
}

func (f *fakeRecords) FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error) {
	var out []model.Row
	for _, row := range f.rows {
		if fmt.Sprint(row[field]) == fmt.Sprint(value) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRecords) Insert(ctx context.Context, collection model.Collection, row model.Row) error {
	return nil
}

func (f *fakeRecords) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeRecords) Close() error                          { return nil }

func newTestApp(records *fakeRecords, sources []model.Source) *fiber.App {
	f := fetcher.New(fetcher.DefaultConfig(), fetcher.NewIntervalGate(0))
	registry := crawler.NewDefaultRegistry(f, crawler.CrawlerConfig{})
	status := NewStatusHandler(records, registry, sources, true, nil)

	app := fiber.New()
	app.Get("/health", status.HandleCheckHealth)
	app.Get("/api/v1/runs", status.ListRuns)
	app.Get("/api/v1/sources", status.ListSources)
	return app
}

func doJSON(t *testing.T, app *fiber.App, path string, out interface{}) int {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("GET %s: invalid JSON %q: %v", path, body, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	records := &fakeRecords{}
	app := newTestApp(records, nil)

	if code := doJSON(t, app, "/health", nil); code != http.StatusOK {
		t.Errorf("healthy status = %d", code)
	}

	records.healthErr = errors.New("connection refused")
	if code := doJSON(t, app, "/health", nil); code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d", code)
	}
}

func TestListRuns(t *testing.T) {
	now := time.Now().UTC()
	records := &fakeRecords{rows: []model.Row{
		{"source": model.AggregateSource, "items_added": 1, "created_at": now.Add(-2 * time.Hour)},
		{"source": "https://ktunotes.in/notes/", "items_added": 5, "created_at": now.Add(-time.Hour)},
		{"source": model.AggregateSource, "items_added": 3, "created_at": now},
	}}
	app := newTestApp(records, []model.Source{{URL: "https://ktunotes.in/notes/"}})

	var page struct {
		Success    bool                     `json:"success"`
		Data       []map[string]interface{} `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if code := doJSON(t, app, "/api/v1/runs", &page); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if page.Pagination.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Data[0]["items_added"] != float64(3) {
		t.Errorf("newest row first expected, got %v", page.Data[0])
	}

	if code := doJSON(t, app, "/api/v1/runs?source=https://ktunotes.in/notes/&limit=1", &page); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if page.Pagination.Total != 1 || page.Data[0]["items_added"] != float64(5) {
		t.Errorf("unexpected source page: %+v", page)
	}

	if code := doJSON(t, app, "/api/v1/runs?page=0", nil); code != http.StatusBadRequest {
		t.Errorf("page=0 status = %d", code)
	}

	if code := doJSON(t, app, "/api/v1/runs?source=https://elsewhere.test/", nil); code != http.StatusNotFound {
		t.Errorf("unknown source status = %d", code)
	}
}

func TestListRunsPastLastPage(t *testing.T) {
	records := &fakeRecords{rows: []model.Row{
		{"source": model.AggregateSource, "items_added": 1, "created_at": time.Now().UTC()},
	}}
	app := newTestApp(records, nil)

	for _, page := range []string{"2", "4611686018427387904", "9223372036854775807"} {
		var body struct {
			Data []map[string]interface{} `json:"data"`
		}
		if code := doJSON(t, app, "/api/v1/runs?limit=100&page="+page, &body); code != http.StatusOK {
			t.Fatalf("page=%s status = %d", page, code)
		}
		if len(body.Data) != 0 {
			t.Errorf("page=%s data = %v, want empty", page, body.Data)
		}
	}
}

func TestListSources(t *testing.T) {
	sources := []model.Source{
		{URL: "https://www.keralanotes.com/p/ktu-study-materials.html?m=1"},
		{URL: "https://ktunotes.in/notes/"},
		{URL: "https://ktuspecial.in/", Strategy: "generic"},
	}
	app := newTestApp(&fakeRecords{}, sources)

	var body struct {
		Data struct {
			Sources    []SourceStatus `json:"sources"`
			Strategies []string       `json:"strategies"`
		} `json:"data"`
	}
	if code := doJSON(t, app, "/api/v1/sources", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	got := body.Data.Sources
	if len(got) != 3 {
		t.Fatalf("sources = %+v", got)
	}
	if got[0].Strategy != "sitemap" || got[0].Override {
		t.Errorf("keralanotes = %+v, want sitemap", got[0])
	}
	if got[0].DisplayName != "Sitemap notes and question papers" {
		t.Errorf("keralanotes display name = %q", got[0].DisplayName)
	}
	if got[1].Strategy != "generic" {
		t.Errorf("ktunotes = %+v, want generic", got[1])
	}
	if !got[2].Override || got[2].DisplayName != "Single page PDF links" {
		t.Errorf("ktuspecial override not reported: %+v", got[2])
	}
	if len(body.Data.Strategies) != 2 {
		t.Errorf("strategies = %v", body.Data.Strategies)
	}
}
