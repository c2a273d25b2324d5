// Package storage provides ContentStore backends for downloaded documents.
package storage

import (
	"context"
	"strings"
)

// ContentTypePDF is the content type every stored document is uploaded with
const ContentTypePDF = "application/pdf"

// ContentStore is an idempotent blob store keyed by path
type ContentStore interface {
	// Exists reports whether an object is already stored at path
	Exists(ctx context.Context, path string) (bool, error)
	// Upload stores data at path and returns its public URL. An object that
	// already exists at path is not an error; its URL is returned.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// PublicURL returns the retrieval URL for path without contacting the store
	PublicURL(path string) string
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
