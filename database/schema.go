package database

import (
	"context"
	"log"
	"strings"
)

// InitTables creates the SQLite schema. It mirrors the tables GORM migrates
// on PostgreSQL so both stores accept the same rows.
func (s *SQLiteStore) InitTables(ctx context.Context) error {
	// subjects table
	subjects_table := `
	CREATE TABLE IF NOT EXISTS subjects (
		id VARCHAR(20) PRIMARY KEY,
		code VARCHAR(20) NOT NULL,
		name TEXT NOT NULL,
		semester INTEGER DEFAULT 1,
		credits INTEGER DEFAULT 3,
		created_at DATETIME
	);
	`

	// notes table
	notes_table := `
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(500) NOT NULL,
		description TEXT,
		subject_id VARCHAR(20) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		module_number INTEGER DEFAULT 1,
		file_url VARCHAR(1000) NOT NULL,
		file_size_bytes BIGINT,
		source_url VARCHAR(1000) NOT NULL,
		source_name VARCHAR(255),
		is_verified BOOLEAN DEFAULT FALSE,
		is_published BOOLEAN DEFAULT FALSE,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_notes_source_url ON notes(source_url);
	`

	// question papers table
	question_papers_table := `
	CREATE TABLE IF NOT EXISTS question_papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id VARCHAR(20) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		exam_type VARCHAR(20) DEFAULT 'regular',
		month VARCHAR(20),
		file_url VARCHAR(1000) NOT NULL,
		file_size_bytes BIGINT,
		source_url VARCHAR(1000) NOT NULL,
		source_name VARCHAR(255),
		is_verified BOOLEAN DEFAULT FALSE,
		is_published BOOLEAN DEFAULT FALSE,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_question_papers_source_url ON question_papers(source_url);
	`

	// run log table
	scraping_logs_table := `
	CREATE TABLE IF NOT EXISTS scraping_logs (
		id VARCHAR(36) PRIMARY KEY,
		source VARCHAR(500) NOT NULL,
		status VARCHAR(20) NOT NULL,
		items_found INTEGER DEFAULT 0,
		items_added INTEGER DEFAULT 0,
		error_message TEXT,
		metadata TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_scraping_logs_source ON scraping_logs(source);
	`

	log.Println("Initializing SQLite Database.", "Initializing Tables")

	all_tables := strings.Join([]string{subjects_table, notes_table, question_papers_table, scraping_logs_table}, "")

	_, err := s.db.ExecContext(ctx, all_tables)
	return err
}
