// Package gcs stores video binaries in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	lmsstorage "github.com/aulavirtual/lms-server-go/pkg/storage"
)

// Store implements storage.ObjectStore on a single bucket.
type Store struct {
	client *storage.Client
	bucket string
	cdnURL string
}

var _ lmsstorage.ObjectStore = (*Store)(nil)

// New creates a GCS client. credentialsFile may be empty to use application default credentials.
func New(ctx context.Context, bucket, credentialsFile, cdnURL string, extra ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Store{
		client: client,
		bucket: bucket,
		cdnURL: strings.TrimRight(cdnURL, "/"),
	}, nil
}

// Put streams body into the bucket.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Delete removes an object. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	signed, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", lmsstorage.ErrSigningUnavailable, err)
	}
	return signed, nil
}

// PublicURL returns the CDN URL when configured and the storage.googleapis.com URL otherwise.
func (s *Store) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if s.cdnURL != "" {
		return fmt.Sprintf("%s/%s", s.cdnURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
