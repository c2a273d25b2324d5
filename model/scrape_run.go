package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RunStatus is the terminal state recorded for a scrape run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AggregateSource is the source label of the summary row written after all sources
const AggregateSource = "all_sources"

// ScrapeRun is one append-only run-log row: per source, plus one aggregate per invocation
type ScrapeRun struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	Source       string         `gorm:"type:varchar(500);not null;index" json:"source"`
	Status       RunStatus      `gorm:"type:varchar(20);not null" json:"status"`
	ItemsFound   int            `gorm:"default:0" json:"items_found"`
	ItemsAdded   int            `gorm:"default:0" json:"items_added"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TableName specifies the table name for ScrapeRun
func (ScrapeRun) TableName() string {
	return string(CollectionRuns)
}

// RunCounters breaks a run's candidates down by outcome
type RunCounters struct {
	Duplicates       int `json:"duplicates"`
	ExtractionMisses int `json:"extraction_misses"`
	FetchFailures    int `json:"fetch_failures"`
	ValidationFails  int `json:"validation_failures"`
	StoreFailures    int `json:"store_failures"`
}

// NewScrapeRun builds a run-log row. CompletedAt stays nil for running rows.
func NewScrapeRun(source string, status RunStatus, found, added int, startedAt time.Time, runErr error, counters *RunCounters) ScrapeRun {
	run := ScrapeRun{
		ID:         uuid.NewString(),
		Source:     source,
		Status:     status,
		ItemsFound: found,
		ItemsAdded: added,
		StartedAt:  startedAt.UTC(),
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if status != RunStatusRunning {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	if counters != nil {
		if data, err := json.Marshal(counters); err == nil {
			run.Metadata = datatypes.JSON(data)
		}
	}
	return run
}

// Row returns the record fields of the run
func (r ScrapeRun) Row() Row {
	row := Row{
		"id":            r.ID,
		"source":        r.Source,
		"status":        string(r.Status),
		"items_found":   r.ItemsFound,
		"items_added":   r.ItemsAdded,
		"error_message": nullable(r.ErrorMessage),
		"started_at":    r.StartedAt,
		"completed_at":  r.CompletedAt,
		"created_at":    time.Now().UTC(),
	}
	if len(r.Metadata) > 0 {
		row["metadata"] = r.Metadata
	}
	return row
}
