package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/middleware"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/pkg/response"
)

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Image handles POST /api/upload
// @Summary      Upload input image
// @Description  Store an input image and return its public URL
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Image (JPEG, PNG, WEBP; max 10MB)"
// @Success      200 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload [post]
func (h *UploadHandler) Image(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadImage(c.UserContext(), middleware.GetUserID(c), f, file.Size, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return ErrorHandler(c, err)
	}

	return response.OK(c, result)
}
