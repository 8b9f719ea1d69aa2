package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageKey(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	key := ImageKey("user-1", "image/png", now)
	assert.True(t, strings.HasPrefix(key, "uploads/user-1/2026/03/09/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	assert.True(t, strings.HasSuffix(ImageKey("u", "image/jpeg; charset=binary", now), ".jpg"))
	assert.True(t, strings.HasSuffix(ImageKey("u", "application/zip", now), ".bin"))
	assert.NotEqual(t, ImageKey("u", "image/png", now), ImageKey("u", "image/png", now))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory("https://cdn.test/")
	ctx := context.Background()

	url, err := m.Put(ctx, "uploads/a.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/uploads/a.png", url)

	data, ct, ok := m.Get("uploads/a.png")
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)

	signed, err := m.SignedURL(ctx, "uploads/a.png", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, url+"?expires="))

	require.NoError(t, m.Delete(ctx, "uploads/a.png"))
	assert.ErrorIs(t, m.Delete(ctx, "uploads/a.png"), ErrObjectNotFound)
	_, err = m.SignedURL(ctx, "uploads/a.png", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
