package model

// Task types
type TaskType string

const (
	TaskTypeTextToImage  TaskType = "text-to-image"
	TaskTypeImageToImage TaskType = "image-to-image"
	TaskTypeTextToVideo  TaskType = "text-to-video"
	TaskTypeImageToVideo TaskType = "image-to-video"
	TaskTypeUpscale      TaskType = "upscale"
)

var ValidTaskTypes = []TaskType{
	TaskTypeTextToImage, TaskTypeImageToImage, TaskTypeTextToVideo,
	TaskTypeImageToVideo, TaskTypeUpscale,
}

// IsVideo reports whether the task produces a video artifact.
func (t TaskType) IsVideo() bool {
	return t == TaskTypeTextToVideo || t == TaskTypeImageToVideo
}

// IsImage reports whether the task produces image artifacts.
func (t TaskType) IsImage() bool {
	return t == TaskTypeTextToImage || t == TaskTypeImageToImage || t == TaskTypeUpscale
}

// NeedsPrompt reports whether a prompt is mandatory for the task type.
func (t TaskType) NeedsPrompt() bool {
	return t != TaskTypeUpscale
}

// NeedsImage reports whether at least one input image is mandatory.
func (t TaskType) NeedsImage() bool {
	return t == TaskTypeImageToImage || t == TaskTypeImageToVideo || t == TaskTypeUpscale
}

// Task status as seen by a workspace
type TaskStatus string

const (
	TaskStatusIdle       TaskStatus = "idle"
	TaskStatusUploading  TaskStatus = "uploading"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Remote status vocabulary served by the status endpoint
const (
	RemoteStatusPending    = "pending"
	RemoteStatusProcessing = "processing"
	RemoteStatusCompleted  = "completed"
	RemoteStatusFailed     = "failed"
)

// Providers
const (
	ProviderNanoBanana = "nano-banana"
	ProviderVeo3       = "veo3"
	ProviderSora2      = "sora2"
	ProviderUpscaler   = "upscaler"
)

var ValidProviders = []string{
	ProviderNanoBanana, ProviderVeo3, ProviderSora2, ProviderUpscaler,
}

// Machine error codes carried by TaskError and API error bodies
const (
	ErrorCodeProcessing          = "PROCESSING"
	ErrorCodeVIPRequired         = "VIP_REQUIRED"
	ErrorCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrorCodeResultsUnavailable  = "RESULTS_UNAVAILABLE"
	ErrorCodeGenerationFailed    = "GENERATION_FAILED"
	ErrorCodeTimeout             = "TIMEOUT"
)

// PendingTaskID is the task id used before the provider accepted a submission.
const PendingTaskID = "pending"
