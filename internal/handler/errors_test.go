package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/pkg/response"
)

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("load: %w", service.ErrTaskNotFound), 404, response.CodeNotFound},
		{"insufficient", &credit.InsufficientError{Required: 30, Balance: 2}, 402, model.ErrorCodeInsufficientCredits},
		{"vip", service.ErrVIPRequired, 403, model.ErrorCodeVIPRequired},
		{"processing", &model.TaskError{Code: model.ErrorCodeProcessing, Message: "later"}, 202, model.ErrorCodeProcessing},
		{"upload", &model.UploadError{Reason: model.UploadReasonTooLarge, Size: 20 << 20, Limit: 10 << 20}, 400, model.UploadReasonTooLarge},
		{"unknown provider", provider.ErrUnknownProvider, 404, response.CodeNotFound},
		{"unsupported", fmt.Errorf("%w: x", provider.ErrUnsupportedType), 400, response.CodeUnsupported},
		{"invalid", fmt.Errorf("%w: prompt is required", service.ErrInvalidRequest), 400, response.CodeValidationError},
		{"upstream", fmt.Errorf("%w: boom", service.ErrUpstreamRejected), 502, response.CodeProviderError},
		{"fiber", fiber.ErrMethodNotAllowed, 405, response.CodeNotFound},
		{"other", errors.New("boom"), 500, response.CodeServiceError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return ErrorHandler(c, tc.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			var body response.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.ErrorCode)
			assert.NotEmpty(t, body.Error)
		})
	}
}
