package quote

import (
	"context"

	"marketplace-storefront/internal/domain"
)

type Repository interface {
	Save(ctx context.Context, q domain.ShippingQuote) (*domain.ShippingQuote, error)
	Latest(ctx context.Context, cartID, optionID string) (*domain.ShippingQuote, error)
	DeleteByCart(ctx context.Context, cartID string) error
}
