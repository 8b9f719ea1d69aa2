package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/config"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/task"
)

const (
	jobsCreatePath = "/api/v1/jobs/createTask"
	jobsRecordPath = "/api/v1/jobs/recordInfo"
)

// inputBuilder turns a submission into the provider specific "input" object.
type inputBuilder func(req *model.SubmitRequest) map[string]any

// JobsProvider drives the generic createTask/recordInfo jobs API. One
// instance serves one product line and maps each task type to an upstream model.
type JobsProvider struct {
	*restClient
	models map[model.TaskType]string
	video  bool
	input  inputBuilder
}

type createTaskRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID     string `json:"taskId"`
	Model      string `json:"model"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailMsg    string `json:"failMsg"`
}

type jobsResult struct {
	ResultURLs []string `json:"resultUrls"`
}

// NewNanoBanana returns the image generation provider.
func NewNanoBanana(cfg config.ProviderConfig, logger *zap.Logger) *JobsProvider {
	return &JobsProvider{
		restClient: newRESTClient(model.ProviderNanoBanana, cfg, logger),
		models: map[model.TaskType]string{
			model.TaskTypeTextToImage:  "google/nano-banana",
			model.TaskTypeImageToImage: "google/nano-banana-edit",
		},
		input: func(req *model.SubmitRequest) map[string]any {
			in := map[string]any{
				"prompt":        req.Prompt,
				"output_format": "png",
			}
			if len(req.ImageURLs) > 0 {
				in["image_urls"] = req.ImageURLs
			}
			if req.AspectRatio != "" {
				in["image_size"] = req.AspectRatio
			}
			if req.NumImages > 1 {
				in["num_images"] = req.NumImages
			}
			return in
		},
	}
}

// NewSora2 returns the Sora 2 video provider.
func NewSora2(cfg config.ProviderConfig, logger *zap.Logger) *JobsProvider {
	return &JobsProvider{
		restClient: newRESTClient(model.ProviderSora2, cfg, logger),
		models: map[model.TaskType]string{
			model.TaskTypeTextToVideo:  "sora-2-text-to-video",
			model.TaskTypeImageToVideo: "sora-2-image-to-video",
		},
		video: true,
		input: func(req *model.SubmitRequest) map[string]any {
			in := map[string]any{
				"prompt":       req.Prompt,
				"aspect_ratio": soraAspect(req.AspectRatio),
			}
			if len(req.ImageURLs) > 0 {
				in["image_urls"] = req.ImageURLs
			}
			if req.Duration > 0 {
				in["n_frames"] = fmt.Sprintf("%d", req.Duration)
			}
			return in
		},
	}
}

// NewUpscaler returns the image upscaling provider.
func NewUpscaler(cfg config.ProviderConfig, logger *zap.Logger) *JobsProvider {
	return &JobsProvider{
		restClient: newRESTClient(model.ProviderUpscaler, cfg, logger),
		models: map[model.TaskType]string{
			model.TaskTypeUpscale: "topaz/image-upscale",
		},
		input: func(req *model.SubmitRequest) map[string]any {
			scale := req.Scale
			if scale == 0 {
				scale = 2
			}
			in := map[string]any{"upscale_factor": fmt.Sprintf("%d", scale)}
			if len(req.ImageURLs) > 0 {
				in["image_url"] = req.ImageURLs[0]
			}
			return in
		},
	}
}

func soraAspect(ratio string) string {
	switch ratio {
	case "9:16", "portrait":
		return "portrait"
	default:
		return "landscape"
	}
}

func (p *JobsProvider) Name() string { return p.name }

func (p *JobsProvider) Supports(t model.TaskType) bool {
	_, ok := p.models[t]
	return ok
}

// Submit creates an upstream job and returns its id.
func (p *JobsProvider) Submit(ctx context.Context, req *model.SubmitRequest) (string, error) {
	upstreamModel, ok := p.models[req.Type]
	if !ok {
		return "", ErrUnsupportedType
	}
	if req.Model != "" {
		upstreamModel = req.Model
	}

	var data createTaskData
	if err := p.post(ctx, jobsCreatePath, createTaskRequest{Model: upstreamModel, Input: p.input(req)}, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("%s: createTask returned no task id", p.name)
	}

	p.logger.Info("upstream task created", zap.String("provider_task_id", data.TaskID), zap.String("model", upstreamModel))
	return data.TaskID, nil
}

// Status maps recordInfo onto the status endpoint vocabulary.
func (p *JobsProvider) Status(ctx context.Context, providerTaskID string) (*model.StatusResponse, error) {
	var data recordInfoData
	if err := p.get(ctx, jobsRecordPath, url.Values{"taskId": {providerTaskID}}, &data); err != nil {
		return nil, classify(err)
	}

	status := task.Normalize(data.State)
	resp := &model.StatusResponse{
		Success:      true,
		TaskID:       providerTaskID,
		Status:       task.RemoteStatus(status),
		ErrorMessage: data.FailMsg,
	}

	if status == model.TaskStatusCompleted && data.ResultJSON != "" {
		var res jobsResult
		if err := json.Unmarshal([]byte(data.ResultJSON), &res); err != nil {
			// an unreadable result is surfaced as a completed task without artifacts
			p.logger.Warn("unreadable resultJson", zap.String("provider_task_id", providerTaskID), zap.Error(err))
		} else if len(res.ResultURLs) > 0 {
			resp.Result = &model.StatusResult{ResultURLs: res.ResultURLs}
			if p.video {
				resp.VideoURL = res.ResultURLs[0]
			}
		}
	}

	return resp, nil
}
