package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace-storefront/internal/cache"
	"marketplace-storefront/internal/domain"
)

// cartStore holds the session to cart mapping. CartID returns
// cache.ErrCacheMiss when the session has no cart.
type cartStore interface {
	CartID(ctx context.Context, sessionID string) (string, error)
	SetCartID(ctx context.Context, sessionID, cartID string, ttl time.Duration) error
	ClearCartID(ctx context.Context, sessionID string) error
}

// Service issues storefront session ids and remembers which cart each
// session is building. A cart id is dropped once its order is placed and is
// never handed out again for that session.
type Service struct {
	store   cartStore
	cartTTL time.Duration
}

func New(store cartStore) *Service {
	return &Service{store: store, cartTTL: 30 * 24 * time.Hour}
}

// Issue returns a fresh session id.
func (s *Service) Issue() string {
	return uuid.NewString()
}

// Valid reports whether id looks like an id produced by Issue.
func (s *Service) Valid(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) CartID(ctx context.Context, sessionID string) (string, error) {
	id, err := s.store.CartID(ctx, sessionID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", domain.ErrNoCart
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) AttachCart(ctx context.Context, sessionID, cartID string) error {
	return s.store.SetCartID(ctx, sessionID, cartID, s.cartTTL)
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	return s.store.ClearCartID(ctx, sessionID)
}

func (s *Service) CartTTLSeconds() int {
	return int(s.cartTTL.Seconds())
}
