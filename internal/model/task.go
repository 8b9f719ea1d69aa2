package model

import "time"

// TaskInput is the parameter snapshot captured when a task is submitted.
type TaskInput struct {
	Prompt      string   `json:"prompt,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Model       string   `json:"model,omitempty"`
	Quality     string   `json:"quality,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
	NumImages   int      `json:"num_images,omitempty"`
	Duration    int      `json:"duration,omitempty"`
	Scale       int      `json:"scale,omitempty"`
}

// Clone returns a deep copy so the snapshot cannot be mutated through shared slices.
func (in TaskInput) Clone() TaskInput {
	out := in
	if in.ImageURLs != nil {
		out.ImageURLs = append([]string(nil), in.ImageURLs...)
	}
	return out
}

// Artifact is one generated output.
type Artifact struct {
	URL         string `json:"url"`
	Seed        *int64 `json:"seed,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
}

// TaskError describes why a task failed.
type TaskError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *TaskError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ErrorCode returns the machine readable code.
func (e *TaskError) ErrorCode() string {
	return e.Code
}

// Task is one generation request lifecycle as tracked by a workspace.
type Task struct {
	ID              string     `json:"id"`
	Type            TaskType   `json:"type"`
	Provider        string     `json:"provider"`
	Status          TaskStatus `json:"status"`
	Input           TaskInput  `json:"input"`
	Result          []Artifact `json:"result,omitempty"`
	Error           *TaskError `json:"error,omitempty"`
	CreditsUsed     int        `json:"creditsUsed"`
	CreditsRefunded int        `json:"creditsRefunded"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Input = t.Input.Clone()
	if t.Result != nil {
		out.Result = append([]Artifact(nil), t.Result...)
	}
	if t.Error != nil {
		e := *t.Error
		out.Error = &e
	}
	return &out
}

// TaskRecord is the server side record of a submitted task.
type TaskRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Provider        string     `json:"provider"`
	ProviderTaskID  string     `json:"providerTaskId"`
	Type            TaskType   `json:"type"`
	Status          string     `json:"status"` // pending, processing, completed, failed
	Input           TaskInput  `json:"input"`
	Result          []Artifact `json:"result,omitempty"`
	Error           *TaskError `json:"error,omitempty"`
	HDVideoURL      string     `json:"hdVideoUrl,omitempty"`
	CreditsUsed     int        `json:"creditsUsed"`
	CreditsRefunded int        `json:"creditsRefunded"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the record reached completed or failed.
func (r *TaskRecord) Terminal() bool {
	return r.Status == RemoteStatusCompleted || r.Status == RemoteStatusFailed
}

// PollPayload is the background task payload for provider polling.
type PollPayload struct {
	TaskID string `json:"taskId"`
}
