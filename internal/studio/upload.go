package studio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
)

// LocalFile is a file picked by the user that still has to be uploaded.
type LocalFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FileFromBytes wraps in-memory content.
func FileFromBytes(name, contentType string, data []byte) LocalFile {
	return LocalFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileFromPath describes a file on disk. The content type is sniffed from
// the first 512 bytes when the extension does not identify an image.
func FileFromPath(path string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}

	ct := contentTypeByExt(path)
	if ct == "" {
		f, err := os.Open(path)
		if err != nil {
			return LocalFile{}, err
		}
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		f.Close()
		ct = http.DetectContentType(head[:n])
	}

	return LocalFile{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func contentTypeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return ""
}

// Uploader persists local images and validates remote ones.
type Uploader struct {
	api      *API
	maxBytes int64
	allowGIF bool
	logger   *zap.Logger
}

// UploaderOptions tunes validation. Zero values use the 10MB ceiling without GIF.
type UploaderOptions struct {
	MaxBytes int64
	AllowGIF bool
}

func NewUploader(api *API, opts UploaderOptions, logger *zap.Logger) *Uploader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = model.MaxImageUploadSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{api: api, maxBytes: opts.MaxBytes, allowGIF: opts.AllowGIF, logger: logger}
}

// Validate checks type and size without touching the network.
func (u *Uploader) Validate(f LocalFile) error {
	return model.ValidateImage(f.ContentType, f.Size, u.maxBytes, u.allowGIF)
}

// Upload validates f and stores it. Failures are not retried.
func (u *Uploader) Upload(ctx context.Context, f LocalFile) (string, error) {
	if err := u.Validate(f); err != nil {
		return "", err
	}
	if f.Open == nil {
		return "", fmt.Errorf("file %s has no content", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	// the server enforces the ceiling again; this guards a file that grew after Stat
	limited := io.LimitReader(rc, u.maxBytes+1)
	publicURL, err := u.api.Upload(ctx, f.Name, f.ContentType, limited)
	if err != nil {
		return "", err
	}
	u.logger.Debug("uploaded image", zap.String("name", f.Name), zap.String("url", publicURL))
	return publicURL, nil
}

// ResolveURL accepts an input that already is a URL. A HEAD request is made
// on a best-effort basis: transport failures are accepted optimistically,
// while a missing object or a non-image content type is rejected.
func (u *Uploader) ResolveURL(ctx context.Context, raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid image url %q", raw)
	}
	target := parsed.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", raw, err)
	}

	resp, err := u.api.HTTPClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		u.logger.Debug("HEAD check failed, accepting url", zap.String("url", target), zap.Error(err))
		return target, nil
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", fmt.Errorf("image url %q is not reachable (status %d)", target, resp.StatusCode)
	case resp.StatusCode >= 400:
		// hosts that refuse HEAD are accepted like a failed request
		return target, nil
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !model.IsAllowedImageType(ct, u.allowGIF) {
		return "", &model.UploadError{Reason: model.UploadReasonInvalidType, ContentType: ct}
	}
	if resp.ContentLength > u.maxBytes {
		return "", &model.UploadError{Reason: model.UploadReasonTooLarge, Size: resp.ContentLength, Limit: u.maxBytes}
	}
	return target, nil
}
