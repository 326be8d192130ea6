package bunny

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aulavirtual/lms-server-go/pkg/storage"
)

// StorageClient handles Bunny Storage (CDN) operations.
type StorageClient struct {
	zoneName   string
	password   string
	baseURL    string
	hostname   string
	tokenKey   string
	httpClient *http.Client
	now        func() time.Time
}

var _ storage.ObjectStore = (*StorageClient)(nil)

// NewStorageClient creates a new Bunny Storage client. tokenKey enables CDN token authentication for signed URLs.
func NewStorageClient(zoneName, password, baseURL, hostname, tokenKey string) *StorageClient {
	return &StorageClient{
		zoneName: zoneName,
		password: password,
		baseURL:  strings.TrimRight(baseURL, "/"),
		hostname: strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(hostname, "https://"), "http://"), "/"),
		tokenKey: tokenKey,
		httpClient: &http.Client{
			// Large video uploads stream through this client.
			Timeout: 30 * time.Minute,
		},
		now: time.Now,
	}
}

// Put uploads a stream to Bunny Storage under key.
func (c *StorageClient) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(key), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if size > 0 {
		req.ContentLength = size
	}

	req.Header.Set("AccessKey", c.password)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "LMS-Server-Go/1.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bunny storage error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// Delete removes an object. A missing object is not an error.
func (c *StorageClient) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("AccessKey", c.password)
	req.Header.Set("User-Agent", "LMS-Server-Go/1.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bunny storage error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}
}

// PublicURL constructs the public CDN URL for a key.
func (c *StorageClient) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s", c.hostname, escapePath(key))
}

// SignedURL returns a CDN URL carrying a Bunny token that expires after ttl.
func (c *StorageClient) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(c.tokenKey) == "" || c.hostname == "" {
		return "", storage.ErrSigningUnavailable
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("object key is required")
	}

	expiration := c.now().Add(ttl).Unix()
	urlPath := "/" + escapePath(key)

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", c.tokenKey, urlPath, expiration)))
	token := base64.StdEncoding.EncodeToString(hash[:])
	token = strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(token)

	return fmt.Sprintf("https://%s%s?token=%s&expires=%d", c.hostname, urlPath, token, expiration), nil
}

// ExtractRelativePath converts a full CDN URL back into an object key.
func (c *StorageClient) ExtractRelativePath(cdnURL string) string {
	prefix := fmt.Sprintf("https://%s/", c.hostname)
	if strings.HasPrefix(cdnURL, prefix) {
		if unescaped, err := url.PathUnescape(cdnURL[len(prefix):]); err == nil {
			return unescaped
		}
		return cdnURL[len(prefix):]
	}
	return cdnURL
}

func (c *StorageClient) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.zoneName, escapePath(key))
}

func escapePath(key string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
