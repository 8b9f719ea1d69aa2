package studio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/model"
)

func TestUploaderValidate(t *testing.T) {
	u := NewUploader(NewAPI("http://unused.invalid", ""), UploaderOptions{}, nil)

	cases := []struct {
		name   string
		file   LocalFile
		reason string
	}{
		{"png", LocalFile{Name: "a.png", ContentType: "image/png", Size: 1024}, ""},
		{"jpeg at ceiling", LocalFile{Name: "a.jpg", ContentType: "image/jpeg", Size: model.MaxImageUploadSize}, ""},
		{"webp", LocalFile{Name: "a.webp", ContentType: "image/webp", Size: 1}, ""},
		{"over ceiling", LocalFile{Name: "a.png", ContentType: "image/png", Size: model.MaxImageUploadSize + 1}, model.UploadReasonTooLarge},
		{"gif disabled", LocalFile{Name: "a.gif", ContentType: "image/gif", Size: 1}, model.UploadReasonInvalidType},
		{"pdf", LocalFile{Name: "a.pdf", ContentType: "application/pdf", Size: 1}, model.UploadReasonInvalidType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := u.Validate(tc.file)
			if tc.reason == "" {
				assert.NoError(t, err)
				return
			}
			var uerr *model.UploadError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tc.reason, uerr.Reason)
		})
	}

	gif := NewUploader(nil, UploaderOptions{AllowGIF: true}, nil)
	assert.NoError(t, gif.Validate(LocalFile{ContentType: "image/gif", Size: 1}))
}

func TestUploadTooLargeMakesNoRequest(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	u := NewUploader(NewAPI(srv.URL, "tok"), UploaderOptions{}, nil)
	big := LocalFile{
		Name:        "huge.png",
		ContentType: "image/png",
		Size:        11 * 1024 * 1024,
		Open: func() (io.ReadCloser, error) {
			t.Fatal("file must not be read")
			return nil, nil
		},
	}

	_, err := u.Upload(context.Background(), big)
	var uerr *model.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, model.UploadReasonTooLarge, uerr.Reason)
	assert.Zero(t, hits)
}

func TestUploadSurfacesServerMessage(t *testing.T) {
	fs := newFakeServer(t)
	u := NewUploader(NewAPI(fs.URL(), "tok"), UploaderOptions{}, nil)

	url, err := u.Upload(context.Background(), FileFromBytes("x.png", "image/png", []byte("png")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/x.png", url)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "storage is down", "error_code": "SERVICE_ERROR"})
	}))
	defer srv.Close()

	u = NewUploader(NewAPI(srv.URL, "tok"), UploaderOptions{}, nil)
	_, err = u.Upload(context.Background(), FileFromBytes("x.png", "image/png", []byte("png")))
	require.Error(t, err)
	assert.Equal(t, "storage is down", err.Error())
}

func TestResolveURL(t *testing.T) {
	fs := newFakeServer(t)
	u := NewUploader(NewAPI(fs.URL(), ""), UploaderOptions{}, nil)
	ctx := context.Background()

	got, err := u.ResolveURL(ctx, fs.URL()+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, fs.URL()+"/img.png", got)

	_, err = u.ResolveURL(ctx, fs.URL()+"/missing.png")
	assert.Error(t, err)

	_, err = u.ResolveURL(ctx, fs.URL()+"/page.html")
	var uerr *model.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, model.UploadReasonInvalidType, uerr.Reason)

	_, err = u.ResolveURL(ctx, "ftp://example.com/a.png")
	assert.Error(t, err)

	// unreachable hosts are accepted optimistically
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/a.png"
	dead.Close()
	got, err = u.ResolveURL(ctx, deadURL)
	require.NoError(t, err)
	assert.Equal(t, deadURL, got)
}

func TestFileFromPath(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "shot.PNG")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\nrest"), 0o644))
	f, err := FileFromPath(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, "shot.PNG", f.Name)
	assert.EqualValues(t, 12, f.Size)

	// no extension: sniffed
	noext := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(noext, []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), 0o644))
	f, err = FileFromPath(noext)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", f.ContentType)

	rc, err := f.Open()
	require.NoError(t, err)
	rc.Close()

	_, err = FileFromPath(dir)
	assert.Error(t, err)
}
