package services

import (
	"context"

	"github.com/sahilchouksey/ktu-notes-scraper/database"
	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/storage"
)

// Deduplicator answers whether a document or blob was already persisted
type Deduplicator struct {
	records database.RecordStore
	content storage.ContentStore
}

// NewDeduplicator creates a deduplicator over both stores
func NewDeduplicator(records database.RecordStore, content storage.ContentStore) *Deduplicator {
	return &Deduplicator{records: records, content: content}
}

// IsNewRecord reports whether no record of this kind has the given source URL.
// Notes and papers are checked in their own collections.
func (d *Deduplicator) IsNewRecord(ctx context.Context, sourceURL string, kind model.DocumentKind) (bool, error) {
	rows, err := d.records.FindByField(ctx, kind.Collection(), "source_url", sourceURL)
	if err != nil {
		return false, model.NewIngestError(model.StoreFailure, "find duplicate", sourceURL, err)
	}
	return len(rows) == 0, nil
}

// BlobExists reports whether the content store already holds path
func (d *Deduplicator) BlobExists(ctx context.Context, path string) (bool, error) {
	exists, err := d.content.Exists(ctx, path)
	if err != nil {
		return false, model.NewIngestError(model.StoreFailure, "check blob", path, err)
	}
	return exists, nil
}
