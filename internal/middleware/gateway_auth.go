package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/auth"
	"github.com/genstudio/api/pkg/response"
)

// Identity headers set by the gateway after ForwardAuth
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRoles = "X-User-Roles"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		SetIdentity(c, auth.Identity{
			UserID: userID,
			Email:  c.Get(HeaderUserEmail),
			Name:   c.Get(HeaderUserName),
			Roles:  auth.ParseRoles(c.Get(HeaderUserRoles)),
		})
		return c.Next()
	}
}
