package storage

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

// DryRunStore logs uploads instead of performing them. Nothing ever exists.
type DryRunStore struct {
	publicBase string
}

// NewDryRunStore creates a store that only logs
func NewDryRunStore(publicBase string) *DryRunStore {
	if publicBase == "" {
		publicBase = "https://dry-run.invalid"
	}
	return &DryRunStore{publicBase: publicBase}
}

// Exists implements ContentStore
func (s *DryRunStore) Exists(ctx context.Context, path string) (bool, error) {
	return false, nil
}

// Upload implements ContentStore
func (s *DryRunStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	log.Infof("[DRY-RUN] Would upload %s (%d bytes, %s)", path, len(data), contentType)
	return s.PublicURL(path), nil
}

// PublicURL implements ContentStore
func (s *DryRunStore) PublicURL(path string) string {
	return joinURL(s.publicBase, path)
}
