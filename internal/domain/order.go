package domain

import "time"

// OrderSet groups the per-seller orders produced from one completed cart.
type OrderSet struct {
	ID     string  `json:"id"`
	Orders []Order `json:"orders"`
}

type Order struct {
	ID           string        `json:"id"`
	DisplayID    int           `json:"display_id,omitempty"`
	SellerID     string        `json:"seller_id,omitempty"`
	Currency     string        `json:"currency_code"`
	Total        int64         `json:"total"`
	Fulfillments []Fulfillment `json:"fulfillments,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Fulfillment is a seller shipment record; its lifecycle is externally driven.
type Fulfillment struct {
	ID          string     `json:"id"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
}
