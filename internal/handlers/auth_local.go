package handlers

import (
	"log"

	"opsdesk/internal/config"
	"opsdesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles operator login
type AuthHandler struct {
	cfg     *config.Config
	jwtAuth *auth.LocalJWTAuth
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, jwtAuth *auth.LocalJWTAuth) *AuthHandler {
	return &AuthHandler{cfg: cfg, jwtAuth: jwtAuth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies the configured operator credential and issues a token.
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if h.jwtAuth == nil || h.cfg.OperatorEmail == "" || h.cfg.OperatorPasswordHash == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Authentication is not configured",
		})
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	if req.Email != h.cfg.OperatorEmail {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	ok, err := auth.VerifyPassword(h.cfg.OperatorPasswordHash, req.Password)
	if err != nil || !ok {
		log.Printf("❌ Login failed for %s", req.Email)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := h.jwtAuth.GenerateToken(req.Email, req.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue token",
		})
	}

	return c.JSON(fiber.Map{"token": token})
}
