package database

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// DryRunStore logs inserts instead of performing them. Lookups find nothing,
// so every candidate is treated as new.
type DryRunStore struct{}

// NewDryRunStore creates a store that only logs
func NewDryRunStore() *DryRunStore {
	return &DryRunStore{}
}

// FindByField implements RecordStore
func (s *DryRunStore) FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error) {
	if err := checkField(collection, field); err != nil {
		return nil, err
	}
	return nil, nil
}

// Insert implements RecordStore
func (s *DryRunStore) Insert(ctx context.Context, collection model.Collection, row model.Row) error {
	if _, _, err := prepareRow(collection, row); err != nil {
		return err
	}
	log.Infof("[DRY-RUN] Would insert into %s: %s", collection, describeRow(row))
	return nil
}

// HealthCheck implements RecordStore
func (s *DryRunStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close implements RecordStore
func (s *DryRunStore) Close() error {
	return nil
}

func describeRow(row model.Row) string {
	for _, column := range []string{"title", "source_url", "code", "source"} {
		if v := row.String(column); v != "" {
			return v
		}
	}
	return "row"
}
