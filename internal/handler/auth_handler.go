package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/middleware"
)

// AuthHandler answers ForwardAuth checks for the API gateway
type AuthHandler struct {
	authn *middleware.AuthMiddleware
}

func NewAuthHandler(authn *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{authn: authn}
}

// Verify handles GET /auth/verify, called by Traefik ForwardAuth.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := h.authn.Identify(parts[1])
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(middleware.HeaderUserID, id.UserID)
	c.Set(middleware.HeaderUserEmail, id.Email)
	c.Set(middleware.HeaderUserName, id.Name)
	c.Set(middleware.HeaderUserRoles, strings.Join(id.Roles, ","))
	return c.SendStatus(fiber.StatusOK)
}
