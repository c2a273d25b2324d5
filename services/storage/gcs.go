package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gcsPublicBase = "https://storage.googleapis.com"

// GCSStore stores documents in a Google Cloud Storage bucket
type GCSStore struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	bucketName string
	publicBase string
}

// NewGCSStore creates a GCS-backed content store. publicBase overrides the
// default https://storage.googleapis.com/<bucket> URL prefix.
func NewGCSStore(ctx context.Context, bucketName, publicBase string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("GCS_BUCKET must be configured")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	if publicBase == "" {
		publicBase = joinURL(gcsPublicBase, bucketName)
	}

	return &GCSStore{
		client:     client,
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
		publicBase: publicBase,
	}, nil
}

// Exists implements ContentStore
func (s *GCSStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check object %s: %w", path, err)
}

// Upload writes the object only if it does not exist yet. A failed
// precondition means another run stored it first, which is success.
func (s *GCSStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	writer := s.bucket.Object(path).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			log.Infow("object already exists", "path", path)
			return s.PublicURL(path), nil
		}
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			log.Infow("object already exists", "path", path)
			return s.PublicURL(path), nil
		}
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	return s.PublicURL(path), nil
}

// PublicURL implements ContentStore
func (s *GCSStore) PublicURL(path string) string {
	return joinURL(s.publicBase, path)
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
