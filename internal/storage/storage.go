// Package storage holds uploaded input images.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// Store is an object store addressed by key.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	PublicURL(key string) string
	Name() string
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageKey returns a fresh object key for an uploaded image of a user.
func ImageKey(userID, contentType string, now time.Time) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := extensions[ct]
	if !ok {
		ext = ".bin"
	}
	return path.Join("uploads", userID, now.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

// Memory keeps objects in process. It backs development mode and tests.
type Memory struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "https://cdn.genstudio.local"
	}
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read upload body: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()
	return m.PublicURL(key), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("%s?expires=%d", m.PublicURL(key), time.Now().Add(expiry).Unix()), nil
}

func (m *Memory) PublicURL(key string) string {
	return m.baseURL + "/" + key
}

func (m *Memory) Name() string { return "memory" }

// Get returns a stored object and its content type.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}
