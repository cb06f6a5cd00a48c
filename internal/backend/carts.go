package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"marketplace-storefront/internal/domain"
)

type cartEnvelope struct {
	Cart *domain.Cart `json:"cart"`
}

type regionsEnvelope struct {
	Regions []domain.Region `json:"regions"`
}

type productEnvelope struct {
	Product *domain.Product `json:"product"`
}

// UpdateCartInput carries the cart fields the storefront may change.
type UpdateCartInput struct {
	Email           string          `json:"email,omitempty"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

func (c *Client) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var env regionsEnvelope
	if err := c.do(ctx, http.MethodGet, "/store/regions", nil, &env); err != nil {
		return nil, err
	}
	return env.Regions, nil
}

func (c *Client) CreateCart(ctx context.Context, regionID string) (*domain.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/store/carts", map[string]string{"region_id": regionID})
}

func (c *Client) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	return c.cartCall(ctx, http.MethodGet, cartPath(cartID), nil)
}

func (c *Client) UpdateCart(ctx context.Context, cartID string, in UpdateCartInput) (*domain.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID), in)
}

func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error) {
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID)+"/line-items", body)
}

func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*domain.Cart, error) {
	body := map[string]any{"quantity": quantity}
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID)+"/line-items/"+url.PathEscape(lineID), body)
}

func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineID string) (*domain.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, cartPath(cartID)+"/line-items/"+url.PathEscape(lineID), nil)
}

func (c *Client) GetProduct(ctx context.Context, productID, regionID string) (*domain.Product, error) {
	path := "/store/products/" + url.PathEscape(productID)
	if regionID != "" {
		path += "?" + url.Values{"region_id": {regionID}}.Encode()
	}
	var env productEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if env.Product == nil {
		return nil, domain.ErrNotFound
	}
	return env.Product, nil
}

func (c *Client) cartCall(ctx context.Context, method, path string, body any) (*domain.Cart, error) {
	var env cartEnvelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if env.Cart == nil {
		return nil, fmt.Errorf("parsing response: missing cart")
	}
	env.Cart.Recompute()
	return env.Cart, nil
}

func cartPath(cartID string) string {
	return "/store/carts/" + url.PathEscape(cartID)
}
