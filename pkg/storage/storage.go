// Package storage defines the object store used for video binaries.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSigningUnavailable is returned when the backend has no signing credentials configured.
var ErrSigningUnavailable = errors.New("url signing is not configured")

// ObjectStore stores binaries addressed by a relative key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// VideoObjectKey builds "{courseId}/{unixMillis}-{random}.{ext}" for an uploaded file name.
func VideoObjectKey(courseID uuid.UUID, filename string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "mp4"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d-%s.%s", courseID, now.UnixMilli(), suffix, ext)
}

// ContentTypeFor maps common video extensions to MIME types.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
