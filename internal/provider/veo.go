package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/config"
	"github.com/genstudio/api/internal/model"
)

const (
	veoGeneratePath = "/api/v1/veo/generate"
	veoRecordPath   = "/api/v1/veo/record-info"
	veo1080pPath    = "/api/v1/veo/get-1080p-video"

	defaultVeoModel = "veo3_fast"
)

// successFlag values of veo/record-info.
const (
	veoGenerating     = 0
	veoSucceeded      = 1
	veoCreateFailed   = 2
	veoGenerateFailed = 3
)

// Veo3 is the Veo 3 video provider. It also serves 1080p upgrades.
type Veo3 struct {
	*restClient
}

type veoGenerateRequest struct {
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	Model       string   `json:"model"`
	AspectRatio string   `json:"aspectRatio,omitempty"`
}

type veoRecordData struct {
	TaskID       string `json:"taskId"`
	SuccessFlag  int    `json:"successFlag"`
	ErrorMessage string `json:"errorMessage"`
	Response     *struct {
		ResultURLs []string `json:"resultUrls"`
	} `json:"response"`
}

type veo1080pData struct {
	ResultURL string `json:"resultUrl"`
}

func NewVeo3(cfg config.ProviderConfig, logger *zap.Logger) *Veo3 {
	return &Veo3{restClient: newRESTClient(model.ProviderVeo3, cfg, logger)}
}

func (p *Veo3) Name() string { return p.name }

func (p *Veo3) Supports(t model.TaskType) bool {
	return t.IsVideo()
}

func (p *Veo3) Submit(ctx context.Context, req *model.SubmitRequest) (string, error) {
	if !p.Supports(req.Type) {
		return "", ErrUnsupportedType
	}

	body := veoGenerateRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
	}
	if body.Model == "" {
		body.Model = defaultVeoModel
	}
	if req.Type == model.TaskTypeImageToVideo {
		body.ImageURLs = req.ImageURLs
	}

	var data createTaskData
	if err := p.post(ctx, veoGeneratePath, body, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("%s: generate returned no task id", p.name)
	}
	p.logger.Info("upstream task created", zap.String("provider_task_id", data.TaskID), zap.String("model", body.Model))
	return data.TaskID, nil
}

func (p *Veo3) Status(ctx context.Context, providerTaskID string) (*model.StatusResponse, error) {
	var data veoRecordData
	if err := p.get(ctx, veoRecordPath, url.Values{"taskId": {providerTaskID}}, &data); err != nil {
		return nil, classify(err)
	}

	resp := &model.StatusResponse{Success: true, TaskID: providerTaskID}
	switch data.SuccessFlag {
	case veoSucceeded:
		resp.Status = model.RemoteStatusCompleted
		if data.Response != nil && len(data.Response.ResultURLs) > 0 {
			resp.Result = &model.StatusResult{ResultURLs: data.Response.ResultURLs}
			resp.VideoURL = data.Response.ResultURLs[0]
		}
	case veoCreateFailed, veoGenerateFailed:
		resp.Status = model.RemoteStatusFailed
		resp.ErrorMessage = data.ErrorMessage
	default:
		resp.Status = model.RemoteStatusProcessing
	}
	return resp, nil
}

// Upgrade1080p fetches the 1080p rendition of a finished video. Upstream
// answers "still processing" for a while after the base video completed.
func (p *Veo3) Upgrade1080p(ctx context.Context, providerTaskID string) (string, error) {
	var data veo1080pData
	err := p.get(ctx, veo1080pPath, url.Values{"taskId": {providerTaskID}, "index": {"0"}}, &data)
	if err != nil {
		var he *HTTPError
		if errors.As(err, &he) && looksNotReady(he.Message) {
			return "", notReady(he.Message)
		}
		return "", err
	}
	if data.ResultURL == "" {
		return "", notReady("")
	}
	return data.ResultURL, nil
}

func looksNotReady(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "processing") || strings.Contains(msg, "not ready") || strings.Contains(msg, "generating")
}

func notReady(msg string) error {
	if msg == "" {
		msg = "1080p video is still processing"
	}
	return &model.TaskError{Code: model.ErrorCodeProcessing, Message: msg}
}
