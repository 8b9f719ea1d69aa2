package model

import (
	"fmt"
	"strings"
)

// MaxImageUploadSize is the size ceiling for uploaded images.
const MaxImageUploadSize = 10 * 1024 * 1024 // 10MB

// Upload rejection reasons
const (
	UploadReasonInvalidType = "invalid-type"
	UploadReasonTooLarge    = "too-large"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// UploadError is returned when a file is rejected before it is stored.
type UploadError struct {
	Reason      string `json:"reason"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Limit       int64  `json:"limit,omitempty"`
}

func (e *UploadError) Error() string {
	switch e.Reason {
	case UploadReasonTooLarge:
		return fmt.Sprintf("file size %d exceeds the %dMB limit", e.Size, e.Limit/(1024*1024))
	case UploadReasonInvalidType:
		return fmt.Sprintf("invalid file type %q. Supported: JPEG, PNG, WEBP", e.ContentType)
	}
	return "upload rejected: " + e.Reason
}

// ErrorCode returns the rejection reason.
func (e *UploadError) ErrorCode() string {
	return e.Reason
}

// IsAllowedImageType reports whether contentType may be uploaded.
func IsAllowedImageType(contentType string, allowGIF bool) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if allowGIF && ct == "image/gif" {
		return true
	}
	return allowedImageTypes[ct]
}

// ValidateImage checks type and size of an image before any network call.
// A maxSize of zero uses MaxImageUploadSize.
func ValidateImage(contentType string, size int64, maxSize int64, allowGIF bool) error {
	if maxSize <= 0 {
		maxSize = MaxImageUploadSize
	}
	if !IsAllowedImageType(contentType, allowGIF) {
		return &UploadError{Reason: UploadReasonInvalidType, ContentType: contentType}
	}
	if size > maxSize {
		return &UploadError{Reason: UploadReasonTooLarge, Size: size, Limit: maxSize}
	}
	return nil
}
