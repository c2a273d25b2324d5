package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gofiber/fiber/v2/log"
)

// SpacesConfig holds configuration for the Spaces store
type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string // host such as "blr1.digitaloceanspaces.com", or a full URL
	CDNURL    string

	// ForcePathStyle addresses the bucket as a path segment; used by
	// S3-compatible test servers
	ForcePathStyle bool
}

// IsConfigured returns true if the credentials and bucket are present
func (c SpacesConfig) IsConfigured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.Bucket != "" && c.Region != ""
}

// SpacesStore stores documents in a DigitalOcean Spaces bucket via the S3 API
type SpacesStore struct {
	s3Client s3iface.S3API
	bucket   string
	endpoint string
	cdnURL   string
}

// NewSpacesStore creates a Spaces-backed content store
func NewSpacesStore(config SpacesConfig) (*SpacesStore, error) {
	if !config.IsConfigured() {
		return nil, fmt.Errorf("DO_SPACES_ACCESS_KEY, DO_SPACES_SECRET_KEY, DO_SPACES_BUCKET and DO_SPACES_REGION must be configured")
	}

	// Set default endpoint if not provided (without https:// prefix for URL construction)
	if config.Endpoint == "" {
		config.Endpoint = fmt.Sprintf("%s.digitaloceanspaces.com", config.Region)
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.ForcePathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spaces session: %w", err)
	}

	return &SpacesStore{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		endpoint: config.Endpoint,
		cdnURL:   config.CDNURL,
	}, nil
}

// Exists checks if an object exists. Only a not-found answer means false;
// any other failure is returned so the caller does not re-upload blindly.
func (s *SpacesStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check object %s: %w", key, err)
}

// Upload puts the object with a public-read ACL
func (s *SpacesStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String("public-read"), // Make publicly accessible
		ContentType: aws.String(contentType),
	})
	if err != nil {
		if isConflict(err) {
			log.Infow("object already exists", "key", key)
			return s.PublicURL(key), nil
		}
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.PublicURL(key), nil
}

// PublicURL returns CDN URL if available, otherwise the bucket URL
func (s *SpacesStore) PublicURL(key string) string {
	if s.cdnURL != "" {
		return joinURL(s.cdnURL, key)
	}
	if strings.Contains(s.endpoint, "://") {
		return joinURL(joinURL(s.endpoint, s.bucket), key)
	}
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, s.endpoint, key)
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

func isConflict(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode() == http.StatusConflict || reqErr.StatusCode() == http.StatusPreconditionFailed
	}
	return false
}
