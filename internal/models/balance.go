package models

import "time"

// ClientBalance is the running account balance for one client. Positive
// Balance means the client owes the business.
type ClientBalance struct {
	ID         string    `bson:"_id" json:"id"`
	ClientID   string    `bson:"clientId" json:"client_id"`
	ClientName string    `bson:"clientName,omitempty" json:"client_name,omitempty"`
	Balance    float64   `bson:"balance" json:"balance"`
	Currency   string    `bson:"currency,omitempty" json:"currency,omitempty"`
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updated_at"`
}

// CreateBalanceRequest is the payload for POST /api/balances.
type CreateBalanceRequest struct {
	ClientID   string  `json:"client_id"`
	ClientName string  `json:"client_name"`
	Balance    float64 `json:"balance"`
	Currency   string  `json:"currency"`
	Notes      string  `json:"notes"`
}

// UpdateBalanceRequest carries partial balance updates.
type UpdateBalanceRequest struct {
	ClientName *string  `json:"client_name,omitempty"`
	Balance    *float64 `json:"balance,omitempty"`
	Currency   *string  `json:"currency,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}
