package handlers

import (
	"opsdesk/internal/database"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports service health
type HealthHandler struct {
	db *database.MongoDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports process and store health.
// GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	store := "ok"
	if err := h.db.Ping(c.Context()); err != nil {
		status = "degraded"
		store = "unavailable"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"store":  store,
	})
}
