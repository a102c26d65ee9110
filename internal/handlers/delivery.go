package handlers

import (
	"errors"
	"log"
	"time"

	"opsdesk/internal/database"
	"opsdesk/internal/models"
	"opsdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// DeliveryHandler handles delivery-related HTTP requests
type DeliveryHandler struct {
	store   services.Store
	dateKey *services.DateKeyService
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(store services.Store, dateKey *services.DateKeyService) *DeliveryHandler {
	return &DeliveryHandler{store: store, dateKey: dateKey}
}

// List returns all deliveries, newest first, optionally filtered by client.
// GET /api/deliveries?clientId=
func (h *DeliveryHandler) List(c *fiber.Ctx) error {
	var (
		docs []models.Document
		err  error
	)
	if clientID := c.Query("clientId"); clientID != "" {
		docs, err = h.store.ScanByField(c.Context(), database.CollectionDeliveries, "clientId", clientID)
	} else {
		docs, err = h.store.ScanAll(c.Context(), database.CollectionDeliveries)
	}
	if err != nil {
		log.Printf("❌ Failed to list deliveries: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	return c.JSON(docs)
}

// Get returns one delivery by id.
// GET /api/deliveries/:id
func (h *DeliveryHandler) Get(c *fiber.Ctx) error {
	doc, err := h.store.Get(c.Context(), database.CollectionDeliveries, c.Params("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Delivery not found",
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(doc)
}

// Create stores a new delivery under a date-keyed id for its delivery date.
// POST /api/deliveries
func (h *DeliveryHandler) Create(c *fiber.Ctx) error {
	var req models.CreateDeliveryRequest
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

	day := req.DeliveryDate
	if day.IsZero() {
		day = time.Now()
	}
	status := req.Status
	if status == "" {
		status = models.DeliveryPending
	}

	id, err := h.dateKey.Allocate(c.Context(), database.CollectionDeliveries, day)
	if err != nil {
		log.Printf("❌ Failed to allocate delivery id: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	_, err = h.store.Create(c.Context(), database.CollectionDeliveries, bson.M{
		"clientId":     req.ClientID,
		"clientName":   req.ClientName,
		"address":      req.Address,
		"description":  req.Description,
		"amount":       req.Amount,
		"status":       status,
		"deliveryDate": day,
	}, id)
	if err != nil {
		log.Printf("❌ Failed to create delivery %s: %v", id, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	log.Printf("📦 [DELIVERY] Created delivery %s for client %s", id, req.ClientID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// Update applies a partial update to an existing delivery.
// PUT /api/deliveries/:id
func (h *DeliveryHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	partial := bson.M{}
	if req.ClientName != nil {
		partial["clientName"] = *req.ClientName
	}
	if req.Address != nil {
		partial["address"] = *req.Address
	}
	if req.Description != nil {
		partial["description"] = *req.Description
	}
	if req.Amount != nil {
		partial["amount"] = *req.Amount
	}
	if req.Status != nil {
		partial["status"] = *req.Status
	}
	if req.DeliveryDate != nil {
		partial["deliveryDate"] = *req.DeliveryDate
	}
	if len(partial) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No fields to update",
		})
	}

	err := h.store.Update(c.Context(), database.CollectionDeliveries, c.Params("id"), partial)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Delivery not found",
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}

	return c.JSON(fiber.Map{"updated": true})
}

// Delete removes a delivery. Deleting an unknown id succeeds.
// DELETE /api/deliveries/:id
func (h *DeliveryHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.Context(), database.CollectionDeliveries, c.Params("id")); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Store unavailable, please try again",
		})
	}
	return c.JSON(fiber.Map{"deleted": true})
}
