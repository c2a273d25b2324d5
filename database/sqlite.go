package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// SQLiteStore is a single-file record store for local runs
type SQLiteStore struct {
	db *sql.DB
}

// StartSQLite opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway store.
func StartSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Println("Unable to open SQLite Database.")
		return nil, err
	}

	// SQLite allows one writer; a single connection also keeps ":memory:" shared
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.InitTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Println("Successfully opened SQLite Database.", path)
	return store, nil
}

// FindByField implements RecordStore
func (s *SQLiteStore) FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error) {
	if err := checkField(collection, field); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = ?`, collection, field)
	if collection.HasColumn("created_at") {
		query += ` ORDER BY created_at DESC`
	}

	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	defer rows.Close()

	results := []model.Row{}
	for rows.Next() {
		row, err := scanIntoRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// Insert implements RecordStore
func (s *SQLiteStore) Insert(ctx context.Context, collection model.Collection, row model.Row) error {
	values, columns, err := prepareRow(collection, row)
	if err != nil {
		return err
	}

	args := make([]interface{}, len(columns))
	for i, column := range columns {
		args[i] = values[column]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		collection,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	log.Println("Closing SQLite connection...")
	return s.db.Close()
}

func scanIntoRow(rows *sql.Rows) (model.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(model.Row, len(columns))
	for i, column := range columns {
		row[column] = values[i]
	}
	return row, nil
}
