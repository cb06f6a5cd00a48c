package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/cache"
	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/pricing"
)

type Service struct {
	backend  backendCarts
	regions  regionLookup
	sessions sessionStore
	cache    cartCache
	pricer   *pricing.Pricer
	cacheTTL time.Duration
	logger   *log.Logger
}

type backendCarts interface {
	CreateCart(ctx context.Context, regionID string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	UpdateCart(ctx context.Context, cartID string, in backend.UpdateCartInput) (*domain.Cart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*domain.Cart, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string) (*domain.Cart, error)
}

type regionLookup interface {
	ForCurrency(ctx context.Context, currencyCode string) (*domain.Region, error)
	Default(ctx context.Context) (*domain.Region, error)
}

type sessionStore interface {
	CartID(ctx context.Context, sessionID string) (string, error)
	AttachCart(ctx context.Context, sessionID, cartID string) error
}

type cartCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration, tags ...string) error
}

// New wires the cart service. cache and logger may be nil.
func New(b backendCarts, regions regionLookup, sessions sessionStore, c cartCache, pricer *pricing.Pricer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		backend:  b,
		regions:  regions,
		sessions: sessions,
		cache:    c,
		pricer:   pricer,
		cacheTTL: 5 * time.Minute,
		logger:   logger,
	}
}

// Priced is a cart together with its display rendering.
type Priced struct {
	Cart   *domain.Cart       `json:"cart"`
	Totals pricing.CartTotals `json:"totals"`
}

// Current returns the session's cart or domain.ErrNoCart.
func (s *Service) Current(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cartID, err := s.sessions.CartID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart, err := s.Load(ctx, cartID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCart
	}
	return cart, err
}

// Ensure returns the session's cart, creating one in the region settling in
// currencyCode (or the default region) when the session has none yet.
func (s *Service) Ensure(ctx context.Context, sessionID, currencyCode string) (*domain.Cart, error) {
	cart, err := s.Current(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNoCart) {
		return nil, err
	}

	region, err := s.region(ctx, currencyCode)
	if err != nil {
		return nil, err
	}
	cart, err = s.backend.CreateCart(ctx, region.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.AttachCart(ctx, sessionID, cart.ID); err != nil {
		return nil, fmt.Errorf("attach cart: %w", err)
	}
	s.logger.Printf("cart service: created cart_id=%s region_id=%s", cart.ID, region.ID)
	s.Remember(ctx, cart)
	return cart, nil
}

func (s *Service) region(ctx context.Context, currencyCode string) (*domain.Region, error) {
	if strings.TrimSpace(currencyCode) != "" {
		region, err := s.regions.ForCurrency(ctx, currencyCode)
		if err == nil {
			return region, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return s.regions.Default(ctx)
}

// Load reads a cart by id, preferring the cache.
func (s *Service) Load(ctx context.Context, cartID string) (*domain.Cart, error) {
	if s.cache != nil {
		var cached domain.Cart
		err := s.cache.Get(ctx, cacheKey(cartID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Printf("cart service: cache get cart_id=%s error=%v", cartID, err)
		}
	}
	cart, err := s.backend.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, cart)
	return cart, nil
}

// Remember caches the latest known state of cart under the carts tag.
func (s *Service) Remember(ctx context.Context, cart *domain.Cart) {
	if s.cache == nil || cart == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(cart.ID), cart, s.cacheTTL, cache.TagCarts); err != nil {
		s.logger.Printf("cart service: cache set cart_id=%s error=%v", cart.ID, err)
	}
}

// UpsertItem sets the quantity of variantID in the session's cart, adding
// the line when the variant is not in the cart yet. Repeating the call with
// the same arguments leaves the cart unchanged.
func (s *Service) UpsertItem(ctx context.Context, sessionID, variantID string, quantity int, currencyCode string) (*domain.Cart, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, domain.Invalid("variant_id required")
	}
	if quantity < 1 {
		return nil, domain.Invalid("quantity must be at least 1")
	}
	cart, err := s.Ensure(ctx, sessionID, currencyCode)
	if err != nil {
		return nil, err
	}

	var updated *domain.Cart
	if line, ok := cart.LineByVariant(variantID); ok {
		if line.Quantity == quantity {
			return cart, nil
		}
		updated, err = s.backend.UpdateLineItem(ctx, cart.ID, line.ID, quantity)
	} else {
		updated, err = s.backend.AddLineItem(ctx, cart.ID, variantID, quantity)
	}
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, updated)
	return updated, nil
}

func (s *Service) UpdateItem(ctx context.Context, sessionID, lineID string, quantity int) (*domain.Cart, error) {
	if strings.TrimSpace(lineID) == "" {
		return nil, domain.Invalid("line item id required")
	}
	if quantity < 1 {
		return nil, domain.Invalid("quantity must be at least 1")
	}
	cart, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	updated, err := s.backend.UpdateLineItem(ctx, cart.ID, lineID, quantity)
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, updated)
	return updated, nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, lineID string) (*domain.Cart, error) {
	cart, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	updated, err := s.backend.DeleteLineItem(ctx, cart.ID, lineID)
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, updated)
	return updated, nil
}

// AddressInput is the checkout address step payload.
type AddressInput struct {
	Email   string         `json:"email"`
	Address domain.Address `json:"shipping_address"`
}

func (s *Service) SetShippingAddress(ctx context.Context, sessionID string, in AddressInput) (*domain.Cart, error) {
	addr := in.Address
	switch {
	case strings.TrimSpace(addr.Address1) == "":
		return nil, domain.Invalid("address_1 required")
	case strings.TrimSpace(addr.City) == "":
		return nil, domain.Invalid("city required")
	case strings.TrimSpace(addr.CountryCode) == "":
		return nil, domain.Invalid("country_code required")
	}
	addr.CountryCode = strings.ToLower(strings.TrimSpace(addr.CountryCode))

	cart, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	updated, err := s.backend.UpdateCart(ctx, cart.ID, backend.UpdateCartInput{
		Email:           strings.TrimSpace(in.Email),
		ShippingAddress: &addr,
	})
	if err != nil {
		return nil, err
	}
	s.Remember(ctx, updated)
	return updated, nil
}

// View returns the session's cart rendered in displayCurrency.
func (s *Service) View(ctx context.Context, sessionID, displayCurrency string) (*Priced, error) {
	cart, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Price(cart, displayCurrency), nil
}

func (s *Service) Price(cart *domain.Cart, displayCurrency string) *Priced {
	return &Priced{Cart: cart, Totals: s.pricer.Totals(cart, displayCurrency)}
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}
