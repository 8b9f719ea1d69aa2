package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/middleware"
	"github.com/genstudio/api/internal/model"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/pkg/response"
)

type GenerationHandler struct {
	service   *service.TaskService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.TaskService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/:provider/submit
// @Summary      Submit generation task
// @Description  Charge credits and start an asynchronous image or video generation task
// @Tags         Generation
// @Accept       json
// @Produce      json
// @Param        provider path string true "Provider (nano-banana, veo3, sora2, upscaler)"
// @Param        request  body model.SubmitRequest true "Generation request"
// @Success      200 {object} model.SubmitResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      402 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/{provider}/submit [post]
func (h *GenerationHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), middleware.GetUserID(c), c.Params("provider"), &req)
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, result)
}

// Status handles GET /api/:provider/status/:taskId
// @Summary      Get task status
// @Description  Current status of a generation task; artifacts once completed
// @Tags         Generation
// @Produce      json
// @Param        provider path string true "Provider"
// @Param        taskId   path string true "Task ID"
// @Success      200 {object} model.StatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/{provider}/status/{taskId} [get]
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.Status(c.UserContext(), middleware.GetUserID(c), c.Params("provider"), c.Params("taskId"))
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, result)
}

// History handles GET /api/:provider/history
// @Summary      List generation history
// @Description  The caller's tasks for one provider, newest first
// @Tags         Generation
// @Produce      json
// @Param        provider path  string true  "Provider"
// @Param        page     query int    false "Page (from 1)"
// @Param        limit    query int    false "Page size (max 100)"
// @Success      200 {object} model.HistoryResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/{provider}/history [get]
func (h *GenerationHandler) History(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", service.DefaultHistoryLimit)

	result, err := h.service.History(c.UserContext(), middleware.GetUserID(c), c.Params("provider"), page, limit)
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, result)
}

// DeleteHistory handles DELETE /api/:provider/history/:taskId
// @Summary      Delete history item
// @Tags         Generation
// @Param        provider path string true "Provider"
// @Param        taskId   path string true "Task ID"
// @Success      204 "No Content"
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/{provider}/history/{taskId} [delete]
func (h *GenerationHandler) DeleteHistory(c *fiber.Ctx) error {
	if err := h.service.DeleteHistory(c.UserContext(), middleware.GetUserID(c), c.Params("provider"), c.Params("taskId")); err != nil {
		return ErrorHandler(c, err)
	}

	return response.NoContent(c)
}

// Upgrade handles POST /api/:provider/upgrade/:taskId
// @Summary      Get 1080p video
// @Description  Returns the 1080p rendition of a completed video. Answers 202 with error_code PROCESSING while it is still rendering.
// @Tags         Generation
// @Produce      json
// @Param        provider path string true "Provider"
// @Param        taskId   path string true "Task ID"
// @Success      200 {object} model.UpgradeResponse
// @Success      202 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/{provider}/upgrade/{taskId} [post]
func (h *GenerationHandler) Upgrade(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)

	url, err := h.service.Upgrade1080p(c.UserContext(), id.UserID, id.IsVIP(), c.Params("provider"), c.Params("taskId"))
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, model.UpgradeResponse{Success: true, VideoURL: url})
}

// Credits handles GET /api/credits
// @Summary      Credit balance
// @Description  The caller's balance and the price of each task type
// @Tags         Credits
// @Produce      json
// @Success      200 {object} model.CreditsResponse
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/credits [get]
func (h *GenerationHandler) Credits(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, model.CreditsResponse{
		Success: true,
		Balance: balance,
		Pricing: h.service.Pricing(),
	})
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
