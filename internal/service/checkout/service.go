// Package checkout sequences the address, delivery, payment and review
// steps from the current cart state.
package checkout

import (
	"context"
	"errors"
	"strings"

	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/service/cart"
	"marketplace-storefront/internal/service/order"
)

type Step string

const (
	StepAddress  Step = "address"
	StepDelivery Step = "delivery"
	StepPayment  Step = "payment"
	StepReview   Step = "review"
)

var steps = []Step{StepAddress, StepDelivery, StepPayment, StepReview}

// ParseStep accepts a step name case-insensitively. Unknown names return
// false.
func ParseStep(s string) (Step, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, step := range steps {
		if string(step) == s {
			return step, true
		}
	}
	return "", false
}

type Gates struct {
	HasAddress    bool `json:"has_address"`
	HasShipping   bool `json:"has_shipping"`
	HasPayment    bool `json:"has_payment"`
	CanPlaceOrder bool `json:"can_place_order"`
}

type State struct {
	Step      Step  `json:"step"`
	Requested Step  `json:"requested"`
	Gates     Gates `json:"gates"`
}

func gatesFor(c *domain.Cart) Gates {
	if c == nil {
		return Gates{}
	}
	g := Gates{
		HasAddress:  c.ShippingAddress != nil,
		HasShipping: len(c.ShippingMethods) > 0,
	}
	if s := c.OpenSession(); s != nil || c.CoveredByCredit() {
		g.HasPayment = true
	}
	g.CanPlaceOrder = g.HasPayment && order.Ready(c) == nil
	return g
}

func (g Gates) allows(step Step) bool {
	switch step {
	case StepAddress:
		return true
	case StepDelivery:
		return g.HasAddress
	case StepPayment:
		return g.HasAddress && g.HasShipping
	case StepReview:
		return g.HasAddress && g.HasShipping && g.HasPayment
	}
	return false
}

// Evaluate returns the furthest step at or before requested that the cart
// permits, together with the gates it was decided on. An unknown request is
// treated as the last step.
func Evaluate(c *domain.Cart, requested Step) State {
	if _, ok := ParseStep(string(requested)); !ok {
		requested = StepReview
	}
	g := gatesFor(c)
	state := State{Step: StepAddress, Requested: requested, Gates: g}
	for _, step := range steps {
		if !g.allows(step) {
			break
		}
		state.Step = step
		if step == requested {
			break
		}
	}
	return state
}

type cartReader interface {
	View(ctx context.Context, sessionID, displayCurrency string) (*cart.Priced, error)
}

type Service struct {
	carts cartReader
}

func New(carts cartReader) *Service {
	return &Service{carts: carts}
}

// View is a checkout page state with the priced cart behind it.
type View struct {
	State
	Cart *cart.Priced `json:"cart,omitempty"`
}

// View evaluates the session's cart for the requested step. A session
// without a cart stays on the address step.
func (s *Service) View(ctx context.Context, sessionID string, requested Step, currency string) (*View, error) {
	priced, err := s.carts.View(ctx, sessionID, currency)
	if errors.Is(err, domain.ErrNoCart) {
		return &View{State: Evaluate(nil, requested)}, nil
	}
	if err != nil {
		return nil, err
	}
	var c *domain.Cart
	if priced != nil {
		c = priced.Cart
	}
	return &View{State: Evaluate(c, requested), Cart: priced}, nil
}
