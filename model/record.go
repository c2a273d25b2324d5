package model

// Collection names a record table
type Collection string

const (
	CollectionNotes    Collection = "notes"
	CollectionPapers   Collection = "question_papers"
	CollectionSubjects Collection = "subjects"
	CollectionRuns     Collection = "scraping_logs"
)

// Row is one record as a column -> value map
type Row map[string]interface{}

// String returns the value of a text column, or "" when absent
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// collectionColumns whitelists the columns that may be queried or written per collection
var collectionColumns = map[Collection][]string{
	CollectionNotes: {
		"id", "title", "description", "subject_id", "module_number", "file_url",
		"file_size_bytes", "source_url", "source_name", "is_verified", "is_published", "created_at",
	},
	CollectionPapers: {
		"id", "subject_id", "year", "exam_type", "month", "file_url", "file_size_bytes",
		"source_url", "source_name", "is_verified", "is_published", "created_at",
	},
	CollectionSubjects: {
		"id", "code", "name", "semester", "credits", "created_at",
	},
	CollectionRuns: {
		"id", "source", "status", "items_found", "items_added", "error_message",
		"metadata", "started_at", "completed_at", "created_at",
	},
}

// Columns returns the known columns of a collection
func (c Collection) Columns() []string {
	return collectionColumns[c]
}

// Valid reports whether the collection is known
func (c Collection) Valid() bool {
	_, ok := collectionColumns[c]
	return ok
}

// HasColumn reports whether column belongs to the collection
func (c Collection) HasColumn(column string) bool {
	for _, col := range collectionColumns[c] {
		if col == column {
			return true
		}
	}
	return false
}
