// Package storagetest provides an in-memory storage.ObjectStore for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aulavirtual/lms-server-go/pkg/storage"
)

// Memory keeps objects in a map.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, DeleteErr and SignErr, when set, are returned by the matching calls.
	PutErr    error
	DeleteErr error
	SignErr   error
	Signed    int
}

var _ storage.ObjectStore = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return errors.New("short upload")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.SignErr != nil {
		return "", m.SignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Signed++
	return fmt.Sprintf("https://signed.test/%s?ttl=%d&n=%d", key, int(ttl.Seconds()), m.Signed), nil
}

func (m *Memory) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

// Keys lists stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the bytes stored under key.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
