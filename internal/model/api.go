package model

// SubmitRequest is the body of POST /api/{provider}/submit.
type SubmitRequest struct {
	Type        TaskType `json:"type" validate:"required,oneof=text-to-image image-to-image text-to-video image-to-video upscale"`
	Prompt      string   `json:"prompt" validate:"max=5000"`
	ImageURLs   []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	Model       string   `json:"model,omitempty" validate:"omitempty,max=100"`
	AspectRatio string   `json:"aspect_ratio,omitempty" validate:"omitempty,max=20"`
	Quality     string   `json:"quality,omitempty" validate:"omitempty,max=20"`
	NumImages   int      `json:"num_images,omitempty" validate:"omitempty,min=1,max=4"`
	Duration    int      `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
	Scale       int      `json:"scale,omitempty" validate:"omitempty,oneof=2 4 8"`
}

// Input converts the request into the stored parameter snapshot.
func (r *SubmitRequest) Input() TaskInput {
	return TaskInput{
		Prompt:      r.Prompt,
		ImageURLs:   r.ImageURLs,
		Model:       r.Model,
		Quality:     r.Quality,
		AspectRatio: r.AspectRatio,
		NumImages:   r.NumImages,
		Duration:    r.Duration,
		Scale:       r.Scale,
	}.Clone()
}

// SubmitResponse is returned once the provider accepted a task.
type SubmitResponse struct {
	Success          bool   `json:"success"`
	TaskID           string `json:"task_id"`
	CreditsUsed      int    `json:"credits_used"`
	RemainingCredits int    `json:"remaining_credits"`
	Error            string `json:"error,omitempty"`
}

// ResultImage is one image entry of a status result.
type ResultImage struct {
	URL         string `json:"url"`
	Seed        *int64 `json:"seed,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
}

// StatusResult carries the artifacts of a completed task.
type StatusResult struct {
	Images     []ResultImage `json:"images,omitempty"`
	ResultURLs []string      `json:"resultUrls,omitempty"`
}

// StatusResponse is the body of GET /api/{provider}/status/{task_id}.
type StatusResponse struct {
	Success         bool          `json:"success"`
	TaskID          string        `json:"task_id,omitempty"`
	Type            TaskType      `json:"type,omitempty"`
	Status          string        `json:"status"`
	Result          *StatusResult `json:"result,omitempty"`
	VideoURL        string        `json:"video_url,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	ErrorCode       string        `json:"error_code,omitempty"`
	CreditsUsed     int           `json:"credits_used,omitempty"`
	CreditsRefunded int           `json:"credits_refunded,omitempty"`
	Prompt          string        `json:"prompt,omitempty"`
	CreatedAt       int64         `json:"created_at,omitempty"`
}

// HistoryResponse is one page of GET /api/{provider}/history.
type HistoryResponse struct {
	Success bool             `json:"success"`
	Items   []StatusResponse `json:"items"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	Total   int64            `json:"total"`
	HasMore bool             `json:"has_more"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UpgradeResponse is returned by POST /api/{provider}/upgrade/{task_id}.
type UpgradeResponse struct {
	Success   bool   `json:"success"`
	VideoURL  string `json:"video_url,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CreditsResponse is returned by GET /api/credits.
type CreditsResponse struct {
	Success bool             `json:"success"`
	Balance int              `json:"balance"`
	Pricing map[TaskType]int `json:"pricing"`
}
