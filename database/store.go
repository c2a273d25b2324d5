package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// RecordStore defines the interface that all record store implementations must satisfy
type RecordStore interface {
	// FindByField returns the rows of collection whose field equals value,
	// newest first when the collection has a created_at column
	FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error)
	// Insert appends one row to collection
	Insert(ctx context.Context, collection model.Collection, row model.Row) error

	// Lifecycle methods
	HealthCheck(ctx context.Context) error
	Close() error
}

func checkField(collection model.Collection, field string) error {
	if !collection.Valid() {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if !collection.HasColumn(field) {
		return fmt.Errorf("unknown column %q in %s", field, collection)
	}
	return nil
}

// prepareRow validates the row's columns and stamps created_at when missing.
// The returned column list is sorted so generated SQL is stable.
func prepareRow(collection model.Collection, row model.Row) (map[string]interface{}, []string, error) {
	if !collection.Valid() {
		return nil, nil, fmt.Errorf("unknown collection %q", collection)
	}
	if len(row) == 0 {
		return nil, nil, fmt.Errorf("empty row for %s", collection)
	}

	values := make(map[string]interface{}, len(row)+1)
	for column, value := range row {
		if !collection.HasColumn(column) {
			return nil, nil, fmt.Errorf("unknown column %q in %s", column, collection)
		}
		values[column] = value
	}
	if _, ok := values["created_at"]; !ok && collection.HasColumn("created_at") {
		values["created_at"] = time.Now().UTC()
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	return values, columns, nil
}
