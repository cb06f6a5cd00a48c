package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"marketplace-storefront/internal/domain"
)

// Completion is the backend answer to a cart completion. Exactly one of
// OrderSet or Cart is set; a Cart answer means no order exists yet.
type Completion struct {
	OrderSet *domain.OrderSet
	Cart     *domain.Cart
	Message  string
}

type completionEnvelope struct {
	Type     string           `json:"type"`
	OrderSet *domain.OrderSet `json:"order_set"`
	Order    *domain.Order    `json:"order"`
	Cart     *domain.Cart     `json:"cart"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Dispatch is the raw dispatch status of a fulfillment. Payload is the whole
// decoded answer; its shape is not contractually fixed.
type Dispatch struct {
	Status  string
	Payload map[string]any
}

func (c *Client) CompleteCart(ctx context.Context, cartID string) (*Completion, error) {
	var env completionEnvelope
	if err := c.do(ctx, http.MethodPost, cartPath(cartID)+"/complete", nil, &env); err != nil {
		return nil, err
	}
	out := &Completion{}
	switch strings.ToLower(env.Type) {
	case "order_set":
		out.OrderSet = env.OrderSet
	case "order":
		if env.Order != nil {
			out.OrderSet = &domain.OrderSet{ID: env.Order.ID, Orders: []domain.Order{*env.Order}}
		}
	case "cart":
		out.Cart = env.Cart
	default:
		return nil, fmt.Errorf("parsing response: unknown completion type %q", env.Type)
	}
	if env.Error != nil {
		out.Message = env.Error.Message
	}
	if out.Cart != nil {
		out.Cart.Recompute()
	}
	if out.OrderSet == nil && out.Cart == nil {
		return nil, fmt.Errorf("parsing response: empty %s completion", env.Type)
	}
	return out, nil
}

// GetDispatch reads the dispatch status of one fulfillment.
func (c *Client) GetDispatch(ctx context.Context, orderID, fulfillmentID string) (*Dispatch, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, dispatchPath(orderID, fulfillmentID), nil, &raw); err != nil {
		if IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	payload := raw
	if inner, ok := raw["dispatch"].(map[string]any); ok {
		payload = inner
		for k, v := range raw {
			if k == "dispatch" {
				continue
			}
			if _, exists := payload[k]; !exists {
				payload[k] = v
			}
		}
	}
	status, _ := payload["status"].(string)
	return &Dispatch{Status: status, Payload: payload}, nil
}

// ConfirmDelivery forwards a recipient's token-gated delivery confirmation.
func (c *Client) ConfirmDelivery(ctx context.Context, orderID, fulfillmentID, token string) error {
	path := "/store/orders/" + url.PathEscape(orderID) + "/fulfillments/" + url.PathEscape(fulfillmentID) + "/confirm-delivery"
	var ack json.RawMessage
	err := c.do(ctx, http.MethodPost, path, map[string]string{"token": token}, &ack)
	if IsNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

func dispatchPath(orderID, fulfillmentID string) string {
	return "/store/orders/" + url.PathEscape(orderID) + "/fulfillments/" + url.PathEscape(fulfillmentID) + "/dispatch"
}
