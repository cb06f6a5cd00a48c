package order

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/cache"
	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/metrics"
)

type backendOrders interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	CompleteCart(ctx context.Context, cartID string) (*backend.Completion, error)
}

type identity interface {
	ClearCart(ctx context.Context, sessionID string) error
}

type invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

type Service struct {
	backend    backendOrders
	sessions   identity
	cache      invalidator
	retryAfter time.Duration
	metrics    *metrics.Metrics
	logger     *log.Logger
}

// New wires order placement. retryAfter is the delay suggested to callers
// when the backend has not produced orders yet.
func New(b backendOrders, sessions identity, c invalidator, retryAfter time.Duration, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &Service{backend: b, sessions: sessions, cache: c, retryAfter: retryAfter, metrics: m, logger: logger}
}

// Result is returned when completion did not produce orders yet. It is not a
// failure; the caller may try again after RetryAfter.
type Result struct {
	Pending    bool          `json:"pending"`
	RetryAfter time.Duration `json:"-"`
	Message    string        `json:"message,omitempty"`
	Cart       *domain.Cart  `json:"cart,omitempty"`
}

// Ready checks that cart can be turned into orders.
func Ready(cart *domain.Cart) error {
	switch {
	case cart == nil:
		return domain.ErrNoCart
	case len(cart.Items) == 0:
		return domain.Invalid("cart is empty")
	case cart.ShippingAddress == nil:
		return domain.Invalid("shipping address required")
	case len(cart.ShippingMethods) == 0:
		return domain.Invalid("shipping method required")
	case cart.PaymentCollection == nil && !cart.CoveredByCredit():
		return domain.Invalid("payment required")
	}
	return nil
}

// ConfirmationPath is the per-order confirmation view for an order set.
func ConfirmationPath(set *domain.OrderSet) string {
	id := set.ID
	if len(set.Orders) > 0 {
		id = set.Orders[0].ID
	}
	return fmt.Sprintf("/order/confirmed/%s", id)
}

// Complete turns the cart into orders. On success the session's cart
// identity is discarded, the carts, orders and reviews-eligibility cache
// regions are dropped and a *domain.Redirect to the confirmation view is
// returned as the error. A backend answer without orders yields a pending
// Result. Nothing is retried here.
func (s *Service) Complete(ctx context.Context, sessionID, cartID string) (*Result, error) {
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := Ready(cart); err != nil {
		return nil, err
	}

	completion, err := s.backend.CompleteCart(ctx, cartID)
	if err != nil {
		s.metrics.Placement("error")
		return nil, err
	}
	if completion.OrderSet == nil {
		s.metrics.Placement("pending")
		s.logger.Printf("order service: completion pending cart_id=%s message=%q", cartID, completion.Message)
		return &Result{Pending: true, RetryAfter: s.retryAfter, Message: completion.Message, Cart: completion.Cart}, nil
	}

	set := completion.OrderSet
	s.metrics.Placement("order_set")
	s.logger.Printf("order service: placed cart_id=%s order_set_id=%s orders=%d", cartID, set.ID, len(set.Orders))

	if err := s.sessions.ClearCart(ctx, sessionID); err != nil {
		s.logger.Printf("order service: clear cart identity session=%s error=%v", sessionID, err)
	}
	if err := s.cache.Invalidate(ctx, cache.TagCarts, cache.TagOrders, cache.TagReviewsEligibility); err != nil {
		s.logger.Printf("order service: invalidate caches error=%v", err)
	}
	return nil, &domain.Redirect{Location: ConfirmationPath(set)}
}
