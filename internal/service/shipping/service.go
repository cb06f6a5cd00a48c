package shipping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/metrics"
)

type backendShipping interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	ListShippingOptions(ctx context.Context, cartID string) ([]backend.ShippingOption, error)
	CalculateShipping(ctx context.Context, cartID, optionID string) (*backend.DistancePrice, error)
	AddShippingMethod(ctx context.Context, cartID, optionID string, data map[string]any) (*domain.Cart, error)
	ForceShippingMethod(ctx context.Context, cartID string, in backend.OverrideInput) (*domain.Cart, error)
	DeleteShippingMethod(ctx context.Context, cartID, methodID string) error
}

type quoteStore interface {
	Save(ctx context.Context, q domain.ShippingQuote) (*domain.ShippingQuote, error)
	Latest(ctx context.Context, cartID, optionID string) (*domain.ShippingQuote, error)
}

type cartMemory interface {
	Remember(ctx context.Context, cart *domain.Cart)
}

type Service struct {
	backend backendShipping
	quotes  quoteStore
	carts   cartMemory
	metrics *metrics.Metrics
	logger  *log.Logger
}

// New wires the shipping service. carts, m and logger may be nil.
func New(b backendShipping, quotes quoteStore, carts cartMemory, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: b, quotes: quotes, carts: carts, metrics: m, logger: logger}
}

// unavailableMessage matches backend answers saying an option is not
// available for the cart items or the delivery location. The distance
// pricing engine may still price such an option.
var unavailableMessage = regexp.MustCompile(`(?i)\b(?:not\s+available|unavailable)\b.*\b(?:items?|location|address|region)\b`)

// isUnavailable reports a validation answer of the "option unavailable for
// these items or this location" class.
func isUnavailable(err error) bool {
	be, ok := backend.AsError(err)
	if !ok || be.Status >= 500 {
		return false
	}
	return unavailableMessage.MatchString(be.Message)
}

// Quote prices the cart's distance-priced option and stores the result. It
// returns nil when no such option is configured for the cart.
func (s *Service) Quote(ctx context.Context, cartID string) (*domain.ShippingQuote, error) {
	options, err := s.backend.ListShippingOptions(ctx, cartID)
	if err != nil {
		return nil, err
	}
	var option *backend.ShippingOption
	for i := range options {
		if options[i].Calculated() {
			option = &options[i]
			break
		}
	}
	if option == nil {
		return nil, nil
	}

	price, err := s.backend.CalculateShipping(ctx, cartID, option.ID)
	if err != nil {
		return nil, err
	}
	q, err := s.quotes.Save(ctx, domain.ShippingQuote{
		CartID:       cartID,
		OptionID:     option.ID,
		OptionName:   option.Name,
		Amount:       price.Amount,
		CurrencyCode: strings.ToLower(price.CurrencyCode),
		DistanceKm:   price.DistanceKm,
	})
	if err != nil {
		return nil, fmt.Errorf("save quote: %w", err)
	}
	s.logger.Printf("shipping service: quoted cart_id=%s option_id=%s amount=%d distance_km=%.2f", cartID, option.ID, q.Amount, q.DistanceKm)
	return q, nil
}

// Assign commits optionID for the seller scope of the cart. The normal path
// sends the option alone; when the backend rejects it as unavailable for the
// items or location, the option is forced through the override endpoint with
// amount. Other errors are returned unchanged. A method already held by the
// seller is removed only after the new one is committed.
func (s *Service) Assign(ctx context.Context, cartID, optionID string, amount int64, sellerID string) (*domain.Cart, error) {
	if strings.TrimSpace(optionID) == "" {
		return nil, domain.Invalid("option_id required")
	}
	if amount < 0 {
		return nil, domain.Invalid("amount must not be negative")
	}
	return s.assign(ctx, cartID, optionID, sellerID, func(context.Context) (int64, error) {
		return amount, nil
	})
}

// AssignQuoted is Assign with the forced amount taken from the option's
// stored quote. The quote is only read, or computed when none was stored,
// once the normal path has been rejected.
func (s *Service) AssignQuoted(ctx context.Context, cartID, optionID, sellerID string) (*domain.Cart, error) {
	if strings.TrimSpace(optionID) == "" {
		return nil, domain.Invalid("option_id required")
	}
	return s.assign(ctx, cartID, optionID, sellerID, func(ctx context.Context) (int64, error) {
		return s.quotedAmount(ctx, cartID, optionID)
	})
}

func (s *Service) assign(ctx context.Context, cartID, optionID, sellerID string, forcedAmount func(context.Context) (int64, error)) (*domain.Cart, error) {
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	previous, hadPrevious := cart.ShippingForSeller(sellerID)

	var data map[string]any
	if sellerID != "" {
		data = map[string]any{"seller_id": sellerID}
	}

	path := domain.AssignmentNormal
	updated, err := s.backend.AddShippingMethod(ctx, cartID, optionID, data)
	if err != nil {
		if !isUnavailable(err) {
			s.metrics.ShippingAssign(string(path), "error")
			return nil, err
		}
		path = domain.AssignmentForced
		amount, amountErr := forcedAmount(ctx)
		if amountErr != nil {
			s.metrics.ShippingAssign(string(path), "error")
			return nil, amountErr
		}
		s.logger.Printf("shipping service: forcing cart_id=%s option_id=%s amount=%d reason=%q", cartID, optionID, amount, err)
		updated, err = s.backend.ForceShippingMethod(ctx, cartID, backend.OverrideInput{
			OptionID: optionID,
			Amount:   amount,
			IsForced: true,
			SellerID: sellerID,
			Data:     data,
		})
		if err != nil {
			s.metrics.ShippingAssign(string(path), "error")
			return nil, err
		}
	}

	if hadPrevious && hasMethod(updated, previous.ID) {
		if updated, err = s.dropSuperseded(ctx, cart, updated, previous.ID, sellerID); err != nil {
			s.metrics.ShippingAssign(string(path), "error")
			return nil, err
		}
	}
	s.metrics.ShippingAssign(string(path), "ok")
	return s.committed(ctx, updated, optionID, path), nil
}

// dropSuperseded removes the seller's previous method from a cart that now
// holds the new one too. When that fails the methods added since before are
// taken back out so the cart keeps its previous assignment.
func (s *Service) dropSuperseded(ctx context.Context, before, updated *domain.Cart, previousID, sellerID string) (*domain.Cart, error) {
	err := s.removeMethod(ctx, before.ID, previousID)
	if err == nil {
		return s.backend.GetCart(ctx, before.ID)
	}
	for _, m := range updated.ShippingMethods {
		if m.SellerID != sellerID || hasMethod(before, m.ID) {
			continue
		}
		if rbErr := s.removeMethod(ctx, before.ID, m.ID); rbErr != nil {
			s.logger.Printf("shipping service: rollback failed cart_id=%s method_id=%s err=%v", before.ID, m.ID, rbErr)
		}
	}
	return nil, fmt.Errorf("replace shipping method: %w", err)
}

func hasMethod(cart *domain.Cart, methodID string) bool {
	for _, m := range cart.ShippingMethods {
		if m.ID == methodID {
			return true
		}
	}
	return false
}

func (s *Service) quotedAmount(ctx context.Context, cartID, optionID string) (int64, error) {
	q, err := s.quotes.Latest(ctx, cartID, optionID)
	if errors.Is(err, domain.ErrNotFound) {
		price, calcErr := s.backend.CalculateShipping(ctx, cartID, optionID)
		if calcErr != nil {
			return 0, calcErr
		}
		q, err = s.quotes.Save(ctx, domain.ShippingQuote{
			CartID:       cartID,
			OptionID:     optionID,
			Amount:       price.Amount,
			CurrencyCode: strings.ToLower(price.CurrencyCode),
			DistanceKm:   price.DistanceKm,
		})
	}
	if err != nil {
		return 0, err
	}
	return q.Amount, nil
}

// Remove deletes a shipping method. A method that is already gone is not an
// error.
func (s *Service) Remove(ctx context.Context, cartID, methodID string) (*domain.Cart, error) {
	if err := s.removeMethod(ctx, cartID, methodID); err != nil {
		return nil, err
	}
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, cart)
	return cart, nil
}

func (s *Service) removeMethod(ctx context.Context, cartID, methodID string) error {
	err := s.backend.DeleteShippingMethod(ctx, cartID, methodID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// committed tags the assignment for optionID with the path it went through
// when the backend did not report one.
func (s *Service) committed(ctx context.Context, cart *domain.Cart, optionID string, path domain.AssignmentPath) *domain.Cart {
	for i := range cart.ShippingMethods {
		m := &cart.ShippingMethods[i]
		if m.OptionID == optionID && m.Path == "" {
			m.Path = path
		}
	}
	cart.Recompute()
	s.remember(ctx, cart)
	return cart
}

func (s *Service) remember(ctx context.Context, cart *domain.Cart) {
	if s.carts != nil {
		s.carts.Remember(ctx, cart)
	}
}
