package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"marketplace-storefront/internal/domain"
)

type providersEnvelope struct {
	PaymentProviders []domain.PaymentProvider `json:"payment_providers"`
}

type collectionEnvelope struct {
	PaymentCollection *domain.PaymentCollection `json:"payment_collection"`
}

func (c *Client) ListPaymentProviders(ctx context.Context, regionID string) ([]domain.PaymentProvider, error) {
	var env providersEnvelope
	path := "/store/payment-providers?" + url.Values{"region_id": {regionID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.PaymentProviders, nil
}

func (c *Client) CreatePaymentCollection(ctx context.Context, cartID string) (*domain.PaymentCollection, error) {
	return c.collectionCall(ctx, "/store/payment-collections", map[string]string{"cart_id": cartID})
}

// InitiatePaymentSession opens a session for providerID. The backend drops
// any other session of the collection when it does so.
func (c *Client) InitiatePaymentSession(ctx context.Context, collectionID, providerID string, data map[string]any) (*domain.PaymentCollection, error) {
	body := map[string]any{"provider_id": providerID}
	if len(data) > 0 {
		body["data"] = data
	}
	path := "/store/payment-collections/" + url.PathEscape(collectionID) + "/payment-sessions"
	return c.collectionCall(ctx, path, body)
}

func (c *Client) collectionCall(ctx context.Context, path string, body any) (*domain.PaymentCollection, error) {
	var env collectionEnvelope
	if err := c.do(ctx, http.MethodPost, path, body, &env); err != nil {
		return nil, err
	}
	if env.PaymentCollection == nil {
		return nil, fmt.Errorf("parsing response: missing payment collection")
	}
	return env.PaymentCollection, nil
}
