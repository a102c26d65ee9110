package middleware

import (
	"log"
	"os"

	"opsdesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware verifies local JWT tokens and stores the subject on the
// request context. Supports both the Authorization header and a query
// parameter (for WebSocket connections).
func AuthMiddleware(jwtAuth *auth.LocalJWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtAuth == nil {
			// Never allow the bypass in production
			if os.Getenv("ENVIRONMENT") == "production" {
				log.Fatal("❌ CRITICAL: JWT auth not configured in production environment")
			}
			log.Println("⚠️  Auth skipped: JWT not configured (development mode)")
			c.Locals("subject_id", "dev-operator")
			return c.Next()
		}

		var token string
		if authHeader := c.Get("Authorization"); authHeader != "" {
			if extracted, err := auth.ExtractToken(authHeader); err == nil {
				token = extracted
			}
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
			})
		}

		operator, err := jwtAuth.VerifyToken(token)
		if err != nil {
			log.Printf("❌ Auth failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("subject_id", operator.ID)
		c.Locals("subject_email", operator.Email)
		return c.Next()
	}
}

// SubjectID returns the authenticated subject from the request context.
func SubjectID(c *fiber.Ctx) string {
	id, _ := c.Locals("subject_id").(string)
	return id
}
