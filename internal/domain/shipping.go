package domain

import "time"

// ShippingQuote is a distance-priced amount computed for a cart and option.
// It is kept so a forced assignment can resubmit the quoted amount.
type ShippingQuote struct {
	CartID       string    `json:"cart_id"`
	OptionID     string    `json:"option_id"`
	OptionName   string    `json:"option_name,omitempty"`
	Amount       int64     `json:"amount"`
	CurrencyCode string    `json:"currency_code"`
	DistanceKm   float64   `json:"distance_km"`
	CreatedAt    time.Time `json:"created_at"`
}
