package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig holds authentication configuration. Two credential kinds are
// accepted: the static service API key (trusted backend callers, acting
// user passed via X-Actor-ID) and HS256 collaborator JWTs whose sub claim
// is the acting user.
type AuthConfig struct {
	APIKey    string
	JWTSecret string
}

// serviceActor is the fallback identity for API-key calls that name no
// acting user.
const serviceActor = "service"

// NewAuthMiddleware returns a Fiber middleware that validates the
// Authorization header and stores the acting user id in locals.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		// No configured credentials disables auth entirely. Callers may
		// still name the acting user via X-Actor-ID.
		if cfg.APIKey == "" && cfg.JWTSecret == "" {
			actor := c.Get("X-Actor-ID")
			if actor == "" {
				actor = serviceActor
			}
			c.Locals("actor", actor)
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if cfg.APIKey != "" && token == cfg.APIKey {
			actor := c.Get("X-Actor-ID")
			if actor == "" {
				actor = serviceActor
			}
			c.Locals("actor", actor)
			return c.Next()
		}

		if cfg.JWTSecret != "" {
			sub, err := subjectFromJWT(token, cfg.JWTSecret)
			if err == nil && sub != "" {
				c.Locals("actor", sub)
				return c.Next()
			}
			if err != nil {
				logger.Warn().
					Err(err).
					Str("path", path).
					Str("method", c.Method()).
					Msg("Rejected bearer token")
			}
		}

		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_credentials", "Unauthorized",
			"Invalid API key or token")
	}
}

// subjectFromJWT validates an HS256 token and returns its sub claim.
func subjectFromJWT(token, secret string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, _ := claims.GetSubject()
	return sub, nil
}

// actorFrom returns the authenticated acting user id.
func actorFrom(c *fiber.Ctx) string {
	actor, _ := c.Locals("actor").(string)
	return actor
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
