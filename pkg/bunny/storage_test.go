package bunny

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/lms-server-go/pkg/storage"
)

func TestPutSendsAccessKeyAndBody(t *testing.T) {
	var gotPath, gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("AccessKey")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewStorageClient("zone", "secret", srv.URL, "cdn.example.com", "")
	err := client.Put(context.Background(), "course-1/1700000000000-abc.mp4", strings.NewReader("frames"), 6, "video/mp4")
	require.NoError(t, err)

	assert.Equal(t, "/zone/course-1/1700000000000-abc.mp4", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "frames", gotBody)
}

func TestPutReturnsErrorOnFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	client := NewStorageClient("zone", "wrong", srv.URL, "cdn.example.com", "")
	err := client.Put(context.Background(), "k.mp4", strings.NewReader("x"), 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestDeleteTreatsMissingObjectAsDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewStorageClient("zone", "secret", srv.URL, "cdn.example.com", "")
	assert.NoError(t, client.Delete(context.Background(), "gone.mp4"))
}

func TestSignedURL(t *testing.T) {
	client := NewStorageClient("zone", "secret", "https://storage.example", "https://cdn.example.com/", "token-key")
	fixed := time.Unix(1_700_000_000, 0)
	client.now = func() time.Time { return fixed }

	signed, err := client.SignedURL(context.Background(), "c1/video.mp4", time.Hour)
	require.NoError(t, err)

	expires := fixed.Add(time.Hour).Unix()
	hash := sha256.Sum256([]byte(fmt.Sprintf("token-key/c1/video.mp4%d", expires)))
	token := strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(base64.StdEncoding.EncodeToString(hash[:]))

	assert.Equal(t, fmt.Sprintf("https://cdn.example.com/c1/video.mp4?token=%s&expires=%d", token, expires), signed)
}

func TestSignedURLWithoutTokenKey(t *testing.T) {
	client := NewStorageClient("zone", "secret", "https://storage.example", "cdn.example.com", "")

	_, err := client.SignedURL(context.Background(), "c1/video.mp4", time.Hour)
	assert.ErrorIs(t, err, storage.ErrSigningUnavailable)
	assert.Equal(t, "https://cdn.example.com/c1/video.mp4", client.PublicURL("c1/video.mp4"))
}

func TestExtractRelativePath(t *testing.T) {
	client := NewStorageClient("zone", "secret", "https://storage.example", "cdn.example.com", "")

	assert.Equal(t, "c1/my video.mp4", client.ExtractRelativePath("https://cdn.example.com/c1/my%20video.mp4"))
	assert.Equal(t, "c1/raw.mp4", client.ExtractRelativePath("c1/raw.mp4"))
}
