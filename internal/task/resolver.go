package task

import (
	"strings"

	"github.com/genstudio/api/internal/model"
)

// ResolveArtifacts extracts the artifacts of a completed status payload.
// It reads result.images first, then result.resultUrls, then video_url.
// An empty or missing result is ErrResultsUnavailable, never a zero-length success.
func ResolveArtifacts(resp *model.StatusResponse) ([]model.Artifact, error) {
	if resp == nil {
		return nil, ErrResultsUnavailable
	}

	var artifacts []model.Artifact
	if resp.Result != nil {
		for _, img := range resp.Result.Images {
			if strings.TrimSpace(img.URL) == "" {
				continue
			}
			artifacts = append(artifacts, model.Artifact{
				URL:         img.URL,
				Seed:        img.Seed,
				Width:       img.Width,
				Height:      img.Height,
				Description: img.Description,
			})
		}
		if len(artifacts) == 0 {
			for _, u := range resp.Result.ResultURLs {
				if strings.TrimSpace(u) == "" {
					continue
				}
				artifacts = append(artifacts, model.Artifact{URL: u})
			}
		}
	}
	if len(artifacts) == 0 && strings.TrimSpace(resp.VideoURL) != "" {
		artifacts = append(artifacts, model.Artifact{URL: resp.VideoURL})
	}

	if len(artifacts) == 0 {
		return nil, ErrResultsUnavailable
	}
	return artifacts, nil
}

// FailureOf builds the TaskError for a failed status payload.
func FailureOf(resp *model.StatusResponse) *model.TaskError {
	e := &model.TaskError{
		Code:    model.ErrorCodeGenerationFailed,
		Message: "Generation failed",
	}
	if resp == nil {
		return e
	}
	if resp.ErrorCode != "" {
		e.Code = resp.ErrorCode
	}
	if msg := strings.TrimSpace(resp.ErrorMessage); msg != "" {
		e.Message = msg
	}
	return e
}

// StatusFromArtifacts renders artifacts back into a status result.
func StatusFromArtifacts(artifacts []model.Artifact) *model.StatusResult {
	if len(artifacts) == 0 {
		return nil
	}
	res := &model.StatusResult{Images: make([]model.ResultImage, 0, len(artifacts))}
	for _, a := range artifacts {
		res.Images = append(res.Images, model.ResultImage{
			URL:         a.URL,
			Seed:        a.Seed,
			Width:       a.Width,
			Height:      a.Height,
			Description: a.Description,
		})
		res.ResultURLs = append(res.ResultURLs, a.URL)
	}
	return res
}
