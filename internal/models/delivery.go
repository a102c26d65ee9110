package models

import "time"

// Delivery statuses
const (
	DeliveryPending    = "pending"
	DeliveryDispatched = "dispatched"
	DeliveryDelivered  = "delivered"
	DeliveryCancelled  = "cancelled"
)

// Delivery is one scheduled or completed delivery. Its document id is the
// date-keyed identifier allocated for the delivery date (DDMMYYYY, with a
// numeric suffix for the second and later deliveries of a day).
type Delivery struct {
	ID           string    `bson:"_id" json:"id"`
	ClientID     string    `bson:"clientId" json:"client_id"`
	ClientName   string    `bson:"clientName,omitempty" json:"client_name,omitempty"`
	Address      string    `bson:"address,omitempty" json:"address,omitempty"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	Amount       float64   `bson:"amount" json:"amount"`
	Status       string    `bson:"status" json:"status"`
	DeliveryDate time.Time `bson:"deliveryDate" json:"delivery_date"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updated_at"`
}

// CreateDeliveryRequest is the payload for POST /api/deliveries.
type CreateDeliveryRequest struct {
	ClientID     string    `json:"client_id"`
	ClientName   string    `json:"client_name"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	DeliveryDate time.Time `json:"delivery_date"`
}

// UpdateDeliveryRequest carries partial delivery updates. Nil fields are
// left untouched.
type UpdateDeliveryRequest struct {
	ClientName   *string    `json:"client_name,omitempty"`
	Address      *string    `json:"address,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Amount       *float64   `json:"amount,omitempty"`
	Status       *string    `json:"status,omitempty"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
}
