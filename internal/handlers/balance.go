package handlers

import (
	"errors"
	"log"

	"opsdesk/internal/database"
	"opsdesk/internal/models"
	"opsdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// BalanceHandler handles client balance HTTP requests
type BalanceHandler struct {
	store services.Store
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(store services.Store) *BalanceHandler {
	return &BalanceHandler{store: store}
}

// List returns all client balances, newest first, optionally filtered by client.
// GET /api/balances?clientId=
func (h *BalanceHandler) List(c *fiber.Ctx) error {
	var (
		docs []models.Document
		err  error
	)
	if clientID := c.Query("clientId"); clientID != "" {
		docs, err = h.store.ScanByField(c.Context(), database.CollectionBalances, "clientId", clientID)
	} else {
		docs, err = h.store.ScanAll(c.Context(), database.CollectionBalances)
	}
	if err != nil {
		log.Printf("❌ Failed to list balances: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(docs)
}

// Get returns one balance by id.
// GET /api/balances/:id
func (h *BalanceHandler) Get(c *fiber.Ctx) error {
	doc, err := h.store.Get(c.Context(), database.CollectionBalances, c.Params("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Balance not found",
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(doc)
}

// Create stores a new client balance.
// POST /api/balances
func (h *BalanceHandler) Create(c *fiber.Ctx) error {
	var req models.CreateBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Client ID is required",
		})
	}

	id, err := h.store.Create(c.Context(), database.CollectionBalances, bson.M{
		"clientId":   req.ClientID,
		"clientName": req.ClientName,
		"balance":    req.Balance,
		"currency":   req.Currency,
		"notes":      req.Notes,
	}, "")
	if err != nil {
		log.Printf("❌ Failed to create balance: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// Update applies a partial update to an existing balance.
// PUT /api/balances/:id
func (h *BalanceHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	partial := bson.M{}
	if req.ClientName != nil {
		partial["clientName"] = *req.ClientName
	}
	if req.Balance != nil {
		partial["balance"] = *req.Balance
	}
	if req.Currency != nil {
		partial["currency"] = *req.Currency
	}
	if req.Notes != nil {
		partial["notes"] = *req.Notes
	}
	if len(partial) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No fields to update",
		})
	}

	err := h.store.Update(c.Context(), database.CollectionBalances, c.Params("id"), partial)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Balance not found",
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(fiber.Map{"updated": true})
}

// Delete removes a balance. Deleting an unknown id succeeds.
// DELETE /api/balances/:id
func (h *BalanceHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.Context(), database.CollectionBalances, c.Params("id")); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(fiber.Map{"deleted": true})
}
