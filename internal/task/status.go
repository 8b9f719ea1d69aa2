// Package task holds the generation task state machine shared by the API
// workers and the studio client: status normalization, the generic poller,
// result resolution and the bounded 1080p upgrade retrier.
package task

import (
	"strings"

	"github.com/genstudio/api/internal/model"
)

// Normalize maps a provider status word onto the local task status.
// Unknown and intermediate values are treated as processing so polling continues.
func Normalize(remote string) model.TaskStatus {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "completed", "complete", "success", "succeeded", "succeed", "done", "finished":
		return model.TaskStatusCompleted
	case "failed", "fail", "failure", "error", "canceled", "cancelled", "expired",
		"create_task_failed", "generate_failed":
		return model.TaskStatusFailed
	case "uploading":
		return model.TaskStatusUploading
	default:
		return model.TaskStatusProcessing
	}
}

// IsTerminal reports whether no further transition happens without a restart.
func IsTerminal(s model.TaskStatus) bool {
	return s == model.TaskStatusCompleted || s == model.TaskStatusFailed
}

// RemoteStatus converts a local status into the status endpoint vocabulary.
func RemoteStatus(s model.TaskStatus) string {
	switch s {
	case model.TaskStatusCompleted:
		return model.RemoteStatusCompleted
	case model.TaskStatusFailed:
		return model.RemoteStatusFailed
	case model.TaskStatusIdle:
		return model.RemoteStatusPending
	default:
		return model.RemoteStatusProcessing
	}
}
