package backend

import (
	"context"
	"net/http"
	"net/url"

	"marketplace-storefront/internal/domain"
)

// ShippingOption is a delivery option offered for a cart. Calculated options
// are priced by the distance engine rather than carrying a flat amount.
type ShippingOption struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PriceType string `json:"price_type"`
	Amount    int64  `json:"amount"`
	SellerID  string `json:"seller_id,omitempty"`
}

// Calculated reports whether the option is priced by distance.
func (o ShippingOption) Calculated() bool {
	return o.PriceType == "calculated"
}

// DistancePrice is the distance-pricing engine answer.
type DistancePrice struct {
	Amount       int64
	CurrencyCode string
	DistanceKm   float64
}

// OverrideInput is the forced-assignment payload. The override endpoint does
// not price anything itself, so Amount must come from an earlier quote.
type OverrideInput struct {
	OptionID string         `json:"option_id"`
	Amount   int64          `json:"amount"`
	IsForced bool           `json:"is_forced"`
	SellerID string         `json:"seller_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

type shippingOptionsEnvelope struct {
	ShippingOptions []ShippingOption `json:"shipping_options"`
}

type calculateEnvelope struct {
	ShippingOption struct {
		ID           string  `json:"id"`
		Amount       int64   `json:"amount"`
		CurrencyCode string  `json:"currency_code"`
		DistanceKm   float64 `json:"distance_km"`
		Data         struct {
			DistanceKm float64 `json:"distance_km"`
		} `json:"data"`
	} `json:"shipping_option"`
}

func (c *Client) ListShippingOptions(ctx context.Context, cartID string) ([]ShippingOption, error) {
	var env shippingOptionsEnvelope
	path := "/store/shipping-options?" + url.Values{"cart_id": {cartID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.ShippingOptions, nil
}

// CalculateShipping asks the distance-pricing engine for a price.
func (c *Client) CalculateShipping(ctx context.Context, cartID, optionID string) (*DistancePrice, error) {
	var env calculateEnvelope
	path := "/store/shipping-options/" + url.PathEscape(optionID) + "/calculate"
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"cart_id": cartID}, &env); err != nil {
		return nil, err
	}
	distance := env.ShippingOption.DistanceKm
	if distance == 0 {
		distance = env.ShippingOption.Data.DistanceKm
	}
	return &DistancePrice{
		Amount:       env.ShippingOption.Amount,
		CurrencyCode: env.ShippingOption.CurrencyCode,
		DistanceKm:   distance,
	}, nil
}

// AddShippingMethod is the normal assignment path: option id only, the
// backend applies its own availability rules and pricing.
func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string, data map[string]any) (*domain.Cart, error) {
	body := map[string]any{"option_id": optionID}
	if len(data) > 0 {
		body["data"] = data
	}
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID)+"/shipping-methods", body)
}

// ForceShippingMethod commits through the override endpoint.
func (c *Client) ForceShippingMethod(ctx context.Context, cartID string, in OverrideInput) (*domain.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID)+"/shipping-methods/override", in)
}

func (c *Client) DeleteShippingMethod(ctx context.Context, cartID, methodID string) error {
	err := c.do(ctx, http.MethodDelete, cartPath(cartID)+"/shipping-methods/"+url.PathEscape(methodID), nil, nil)
	if IsNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
