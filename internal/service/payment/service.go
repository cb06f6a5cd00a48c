package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/metrics"
	"marketplace-storefront/internal/service/order"
)

type backendPayments interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	ListPaymentProviders(ctx context.Context, regionID string) ([]domain.PaymentProvider, error)
	CreatePaymentCollection(ctx context.Context, cartID string) (*domain.PaymentCollection, error)
	InitiatePaymentSession(ctx context.Context, collectionID, providerID string, data map[string]any) (*domain.PaymentCollection, error)
}

type placer interface {
	Complete(ctx context.Context, sessionID, cartID string) (*order.Result, error)
}

type cartMemory interface {
	Remember(ctx context.Context, cart *domain.Cart)
}

type Service struct {
	backend backendPayments
	orders  placer
	carts   cartMemory
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New wires the payment state machine. carts, m and logger may be nil.
func New(b backendPayments, orders placer, carts cartMemory, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: b, orders: orders, carts: carts, metrics: m, logger: logger}
}

// ProviderInfo is a catalog entry the storefront knows how to drive.
type ProviderInfo struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Kind Kind   `json:"kind"`
}

// Providers lists the region's payment providers. Providers of an unknown
// variant are left out.
func (s *Service) Providers(ctx context.Context, regionID string) ([]ProviderInfo, error) {
	providers, err := s.backend.ListPaymentProviders(ctx, regionID)
	if err != nil {
		return nil, err
	}
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		kind, err := Classify(p.ID)
		if err != nil {
			s.logger.Printf("payment service: skip provider id=%s error=%v", p.ID, err)
			continue
		}
		out = append(out, ProviderInfo{ID: p.ID, Key: NormalizeProviderID(p.ID), Kind: kind})
	}
	return out, nil
}

// Select makes providerID the cart's payment provider. providerID may be a
// module id or its normalized key; sessions are always opened with the module
// id from the region's catalog. An open session for the same provider is
// reused; otherwise a new session is opened, which supersedes any other open
// session of the cart.
func (s *Service) Select(ctx context.Context, cartID, providerID string) (*domain.PaymentSession, error) {
	kind, err := Classify(providerID)
	if err != nil {
		return nil, domain.Invalid(err.Error())
	}
	provider, err := ProviderFor(kind)
	if err != nil {
		return nil, err
	}

	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	key := NormalizeProviderID(providerID)
	if open := cart.OpenSession(); open != nil && NormalizeProviderID(open.ProviderID) == key {
		return open, nil
	}

	moduleID, err := s.moduleID(ctx, cart.RegionID, key)
	if err != nil {
		return nil, err
	}

	collection := cart.PaymentCollection
	if collection == nil {
		collection, err = s.backend.CreatePaymentCollection(ctx, cartID)
		if err != nil {
			return nil, err
		}
	}
	data, err := provider.Initiate(ctx, cart)
	if err != nil {
		return nil, err
	}
	collection, err = s.backend.InitiatePaymentSession(ctx, collection.ID, moduleID, data)
	if err != nil {
		return nil, err
	}

	var selected *domain.PaymentSession
	others := 0
	for i := range collection.Sessions {
		sess := &collection.Sessions[i]
		if NormalizeProviderID(sess.ProviderID) == key && sess.Status != domain.SessionError {
			if selected == nil {
				selected = sess
			}
			continue
		}
		if !sess.Status.Terminal() {
			others++
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("payment collection %s has no session for %s", collection.ID, key)
	}
	if others > 0 {
		return nil, fmt.Errorf("payment collection %s kept %d other open sessions", collection.ID, others)
	}

	cart.PaymentCollection = collection
	s.remember(ctx, cart)
	s.logger.Printf("payment service: selected cart_id=%s provider=%s session_id=%s", cartID, key, selected.ID)
	return selected, nil
}

// moduleID finds the catalog entry of the region whose normalized id is key.
func (s *Service) moduleID(ctx context.Context, regionID, key string) (string, error) {
	providers, err := s.backend.ListPaymentProviders(ctx, regionID)
	if err != nil {
		return "", err
	}
	for _, p := range providers {
		if NormalizeProviderID(p.ID) == key {
			return p.ID, nil
		}
	}
	return "", domain.Invalid(fmt.Sprintf("payment provider %s is not available in this region", key))
}

// Status returns the cart's open session as the backend currently sees it.
// QR sessions turn authorized here once paid out of band.
func (s *Service) Status(ctx context.Context, cartID string) (*domain.PaymentSession, error) {
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, cart)
	return cart.OpenSession(), nil
}

// FinalizeResult is the outcome of a successful finalization: either a
// location to hand the user off to, or a pending placement.
type FinalizeResult struct {
	Redirect   string        `json:"redirect,omitempty"`
	Pending    bool          `json:"pending,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Message    string        `json:"message,omitempty"`
}

// Finalize completes payment for the provider of the open session and then
// places the order. Provider errors leave the session untouched so the user
// can retry.
func (s *Service) Finalize(ctx context.Context, sessionID, cartID string, in FinalizeInput) (*FinalizeResult, error) {
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	kind := Kind("credit")
	if open := cart.OpenSession(); open != nil {
		kind, err = Classify(open.ProviderID)
		if err != nil {
			return nil, err
		}
		provider, err := ProviderFor(kind)
		if err != nil {
			return nil, err
		}
		if err := provider.Finalize(ctx, cart, in); err != nil {
			s.metrics.PaymentFinalize(string(kind), "rejected")
			return nil, err
		}
	} else if !cart.CoveredByCredit() {
		return nil, domain.Invalid("select a payment method first")
	}

	res, err := s.orders.Complete(ctx, sessionID, cartID)
	if redirect, ok := domain.AsRedirect(err); ok {
		s.metrics.PaymentFinalize(string(kind), "placed")
		return &FinalizeResult{Redirect: redirect.Location}, nil
	}
	if err != nil {
		s.metrics.PaymentFinalize(string(kind), "error")
		return nil, err
	}
	s.metrics.PaymentFinalize(string(kind), "pending")
	return &FinalizeResult{Pending: res.Pending, RetryAfter: res.RetryAfter, Message: res.Message}, nil
}

func (s *Service) remember(ctx context.Context, cart *domain.Cart) {
	if s.carts != nil {
		s.carts.Remember(ctx, cart)
	}
}

// wrapperPrefix matches "Error: ", "StripeCardError: " and similar labels
// processors put in front of the human message.
var wrapperPrefix = regexp.MustCompile(`^\s*(?:[A-Za-z]+(?:[ _][A-Za-z]+)*?\s*)?(?:[Ee]rror|[Ee]xception)\s*:\s*`)

// UserMessage is the text shown to the user for a payment failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, backend.ErrUnavailable) {
		return "The store is temporarily unavailable, please retry."
	}
	msg := err.Error()
	if be, ok := backend.AsError(err); ok {
		msg = be.Message
	} else if errors.Is(err, domain.ErrInvalidInput) {
		msg = strings.TrimPrefix(msg, domain.ErrInvalidInput.Error()+": ")
	}
	for {
		stripped := wrapperPrefix.ReplaceAllString(msg, "")
		if stripped == msg {
			break
		}
		msg = stripped
	}
	return strings.TrimSpace(msg)
}
