package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/storage"
)

// UploadOptions configures image validation.
type UploadOptions struct {
	MaxBytes int64
	AllowGIF bool
	Logger   *zap.Logger
}

// UploadService validates input images and stores them.
type UploadService struct {
	store    storage.Store
	maxBytes int64
	allowGIF bool
	logger   *zap.Logger
	now      func() time.Time
}

func NewUploadService(store storage.Store, opts UploadOptions) *UploadService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = model.MaxImageUploadSize
	}
	return &UploadService{
		store:    store,
		maxBytes: maxBytes,
		allowGIF: opts.AllowGIF,
		logger:   logger.Named("upload"),
		now:      time.Now,
	}
}

// MaxBytes is the accepted file size ceiling.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// UploadImage validates the declared type and size, checks the leading bytes
// against the declared type and stores the file under the user's prefix.
func (s *UploadService) UploadImage(ctx context.Context, userID string, file io.Reader, size int64, contentType string) (*model.UploadResponse, error) {
	if err := model.ValidateImage(contentType, size, s.maxBytes, s.allowGIF); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(file, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if sniffed := http.DetectContentType(head); !model.IsAllowedImageType(sniffed, s.allowGIF) {
		return nil, &model.UploadError{Reason: model.UploadReasonInvalidType, ContentType: sniffed}
	}

	key := storage.ImageKey(userID, contentType, s.now())
	url, err := s.store.Put(ctx, key, br, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info("image uploaded",
		zap.String("user_id", userID),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.String("store", s.store.Name()),
	)
	return &model.UploadResponse{Success: true, URL: url}, nil
}
