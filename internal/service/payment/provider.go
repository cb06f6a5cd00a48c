package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-storefront/internal/domain"
)

// Kind is the closed set of provider variants the storefront can drive.
type Kind string

const (
	KindCard   Kind = "card"
	KindQR     Kind = "qr"
	KindManual Kind = "manual"
)

var ErrUnsupportedProvider = errors.New("unsupported payment provider")

// FinalizeInput carries what the client reports when it asks to pay.
type FinalizeInput struct {
	// ConfirmationStatus is the processor outcome of the client-side card
	// confirmation, e.g. "succeeded".
	ConfirmationStatus string `json:"confirmation_status"`
	CardComplete       bool   `json:"card_complete"`
}

// Provider is the capability shared by every provider variant.
type Provider interface {
	Kind() Kind
	// Initiate returns the data sent along when a session is opened.
	Initiate(ctx context.Context, cart *domain.Cart) (map[string]any, error)
	// Finalize returns nil when the cart may move on to order placement.
	Finalize(ctx context.Context, cart *domain.Cart, in FinalizeInput) error
	// Ready gates the continue action of the payment step.
	Ready(session *domain.PaymentSession, cardComplete bool) bool
}

// NormalizeProviderID maps catalog module ids and session provider ids to one
// comparison key: lower-case, without the "pp_" prefix and with a duplicated
// trailing segment collapsed ("pp_stripe_stripe" and "stripe" are equal).
func NormalizeProviderID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "pp_")
	segs := strings.Split(id, "_")
	for n := len(segs) / 2; n >= 1; n-- {
		tail := segs[len(segs)-n:]
		prev := segs[len(segs)-2*n : len(segs)-n]
		if strings.Join(tail, "_") == strings.Join(prev, "_") {
			segs = segs[:len(segs)-n]
			break
		}
	}
	return strings.Join(segs, "_")
}

// Classify maps a provider id to its variant.
func Classify(providerID string) (Kind, error) {
	id := NormalizeProviderID(providerID)
	switch {
	case id == "":
		return "", fmt.Errorf("%w: empty id", ErrUnsupportedProvider)
	case strings.Contains(id, "qr"):
		return KindQR, nil
	case strings.Contains(id, "stripe"), strings.Contains(id, "card"):
		return KindCard, nil
	case id == "manual", strings.HasPrefix(id, "system"), strings.Contains(id, "test"):
		return KindManual, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerID)
}

// ProviderFor returns the implementation of kind.
func ProviderFor(kind Kind) (Provider, error) {
	switch kind {
	case KindCard:
		return cardProvider{}, nil
	case KindQR:
		return qrProvider{}, nil
	case KindManual:
		return manualProvider{}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedProvider, kind)
}

// CanContinue reports whether the payment step may move on with session.
func CanContinue(session *domain.PaymentSession, cardComplete bool) bool {
	if session == nil {
		return false
	}
	kind, err := Classify(session.ProviderID)
	if err != nil {
		return false
	}
	p, err := ProviderFor(kind)
	if err != nil {
		return false
	}
	return p.Ready(session, cardComplete)
}

// Card confirmations that count as paid from the storefront's point of view.
var cardSuccess = map[string]bool{
	"succeeded":        true,
	"requires_capture": true,
	"processing":       true,
}

type cardProvider struct{}

func (cardProvider) Kind() Kind { return KindCard }

func (cardProvider) Initiate(_ context.Context, cart *domain.Cart) (map[string]any, error) {
	if cart.Email == "" {
		return nil, nil
	}
	return map[string]any{"receipt_email": cart.Email}, nil
}

func (cardProvider) Finalize(_ context.Context, _ *domain.Cart, in FinalizeInput) error {
	status := strings.ToLower(strings.TrimSpace(in.ConfirmationStatus))
	if !cardSuccess[status] {
		if status == "" {
			return domain.Invalid("card payment was not confirmed")
		}
		return domain.Invalid(fmt.Sprintf("card payment was not confirmed (%s)", status))
	}
	return nil
}

func (cardProvider) Ready(session *domain.PaymentSession, cardComplete bool) bool {
	return cardComplete && session.Status != domain.SessionError
}

type qrProvider struct{}

func (qrProvider) Kind() Kind { return KindQR }

func (qrProvider) Initiate(_ context.Context, cart *domain.Cart) (map[string]any, error) {
	if cart.Totals.Total <= 0 {
		return nil, domain.Invalid("nothing to pay with a QR code")
	}
	return map[string]any{"amount": cart.Totals.Total, "currency_code": cart.Currency}, nil
}

// Finalize only records the intent to pay; settlement is confirmed out of
// band and reconciled by the backend.
func (qrProvider) Finalize(_ context.Context, _ *domain.Cart, _ FinalizeInput) error {
	return nil
}

func (qrProvider) Ready(session *domain.PaymentSession, _ bool) bool {
	return session.Status != domain.SessionError
}

type manualProvider struct{}

func (manualProvider) Kind() Kind { return KindManual }

func (manualProvider) Initiate(_ context.Context, _ *domain.Cart) (map[string]any, error) {
	return nil, nil
}

func (manualProvider) Finalize(_ context.Context, _ *domain.Cart, _ FinalizeInput) error {
	return nil
}

func (manualProvider) Ready(session *domain.PaymentSession, _ bool) bool {
	return session.Status != domain.SessionError
}
