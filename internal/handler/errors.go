package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/internal/task"
	"github.com/genstudio/api/pkg/response"
)

// ErrorHandler maps a service error onto its HTTP status and error code.
// It also serves as the app-wide fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		insufficient *credit.InsufficientError
		uploadErr    *model.UploadError
		taskErr      *model.TaskError
		fiberErr     *fiber.Error
	)

	switch {
	case errors.As(err, &insufficient):
		return response.Error(c, fiber.StatusPaymentRequired, model.ErrorCodeInsufficientCredits, "Insufficient credits", fiber.Map{
			"required": insufficient.Required,
			"balance":  insufficient.Balance,
		})
	case errors.As(err, &uploadErr):
		return response.Error(c, fiber.StatusBadRequest, uploadErr.Reason, uploadErr.Error(), nil)
	case errors.Is(err, service.ErrTaskNotFound):
		return response.NotFound(c, "Task not found")
	case errors.Is(err, provider.ErrUnknownProvider):
		return response.NotFound(c, err.Error())
	case errors.Is(err, provider.ErrUnsupportedType), errors.Is(err, provider.ErrUpgradeNotOffered):
		return response.Error(c, fiber.StatusBadRequest, response.CodeUnsupported, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidRequest):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrUpstreamRejected):
		return response.Error(c, fiber.StatusBadGateway, response.CodeProviderError, err.Error(), nil)
	case errors.As(err, &taskErr):
		switch taskErr.Code {
		case model.ErrorCodeProcessing:
			return response.Error(c, fiber.StatusAccepted, taskErr.Code, taskErr.Message, nil)
		case model.ErrorCodeVIPRequired:
			return response.Error(c, fiber.StatusForbidden, taskErr.Code, taskErr.Message, nil)
		}
		return response.Error(c, fiber.StatusBadGateway, taskErr.Code, taskErr.Message, nil)
	case errors.As(err, &fiberErr):
		return response.Error(c, fiberErr.Code, codeForStatus(fiberErr.Code), fiberErr.Message, nil)
	}

	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		return response.Error(c, fiber.StatusBadGateway, response.CodeProviderError, httpErr.Message, nil)
	}
	if code := task.CodeOf(err); code != "" {
		return response.Error(c, fiber.StatusInternalServerError, code, err.Error(), nil)
	}
	return response.ServiceError(c, err.Error())
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return response.CodeValidationError
	case fiber.StatusUnauthorized:
		return response.CodeUnauthorized
	case fiber.StatusForbidden:
		return response.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return response.CodeNotFound
	case fiber.StatusTooManyRequests:
		return response.CodeRateLimited
	}
	return response.CodeServiceError
}
