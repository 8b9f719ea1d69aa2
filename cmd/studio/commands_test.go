package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/studio"
)

func TestDefaultType(t *testing.T) {
	assert.Equal(t, model.TaskTypeTextToImage, defaultType(model.ProviderNanoBanana, false))
	assert.Equal(t, model.TaskTypeImageToImage, defaultType(model.ProviderNanoBanana, true))
	assert.Equal(t, model.TaskTypeTextToVideo, defaultType(model.ProviderVeo3, false))
	assert.Equal(t, model.TaskTypeImageToVideo, defaultType(model.ProviderSora2, true))
	assert.Equal(t, model.TaskTypeUpscale, defaultType(model.ProviderUpscaler, true))
}

func TestAddImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.webp")
	require.NoError(t, os.WriteFile(path, []byte("RIFF0000WEBPVP8 "), 0o644))

	c := &cli{}
	var req studio.Request
	require.NoError(t, c.addImages(&req, []string{"https://cdn.test/a.png", " ", path}))
	assert.Equal(t, []string{"https://cdn.test/a.png"}, req.ImageURLs)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "image/webp", req.Files[0].ContentType)

	assert.Error(t, c.addImages(&req, []string{filepath.Join(t.TempDir(), "missing.png")}))
}

func TestRunCommands(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"balance":12,"pricing":{"text-to-image":2}}`))
	}))
	defer srv.Close()

	t.Setenv("STUDIO_TOKEN", "env-token")
	require.NoError(t, run([]string{"--server", srv.URL, "credits"}))
	assert.Equal(t, "Bearer env-token", auth)

	assert.Error(t, run([]string{"--server", srv.URL, "paint"}))
	assert.Error(t, run(nil))
	assert.Error(t, run([]string{"upgrade"}), "--task is required")
}
