package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/genstudio/api/internal/auth"
	"github.com/genstudio/api/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates a new auth middleware with Zitadel JWKS verification
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// NewAuthMiddlewareWithFallback creates auth middleware with both JWKS and legacy HMAC support
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, jwtSecret: jwtSecret}
}

// NewLegacyAuthMiddleware creates auth middleware using only HMAC signing (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates the bearer token. Websocket upgrades may pass the
// token as the "token" query parameter instead.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing or malformed authorization header")
		}

		id, err := m.Identify(tokenString)
		if err != nil {
			return response.Unauthorized(c, err.Error())
		}
		SetIdentity(c, id)
		return c.Next()
	}
}

// Identify resolves a raw token, trying JWKS first and the legacy secret second.
func (m *AuthMiddleware) Identify(tokenString string) (auth.Identity, error) {
	if m.verifier != nil {
		claims, err := m.verifier.Validate(tokenString)
		if err == nil {
			return claims.Identity(), nil
		}
		if m.jwtSecret == "" {
			return auth.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
	}

	if m.jwtSecret != "" {
		claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
		if err != nil {
			return auth.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
		return claims.Identity(), nil
	}

	return auth.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "Authentication not configured")
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if t := c.Query("token"); t != "" && strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			return t, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SetIdentity stores the caller on the request.
func SetIdentity(c *fiber.Ctx, id auth.Identity) {
	c.Locals(identityKey, id)
}

// GetIdentity returns the authenticated caller, or a zero Identity.
func GetIdentity(c *fiber.Ctx) auth.Identity {
	if id, ok := c.Locals(identityKey).(auth.Identity); ok {
		return id
	}
	return auth.Identity{}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	return GetIdentity(c).UserID
}
