package product

import (
	"context"
	"errors"
	"strings"

	"marketplace-storefront/internal/domain"
	"marketplace-storefront/internal/pricing"
)

type Service struct {
	catalog catalog
	regions regionLookup
	pricer  *pricing.Pricer
}

type catalog interface {
	GetProduct(ctx context.Context, productID, regionID string) (*domain.Product, error)
}

type regionLookup interface {
	ForCurrency(ctx context.Context, currencyCode string) (*domain.Region, error)
}

func New(c catalog, regions regionLookup, pricer *pricing.Pricer) *Service {
	return &Service{catalog: c, regions: regions, pricer: pricer}
}

// VariantPrice is a variant with its price in the requested currency. Price
// is nil when the variant cannot be shown in that currency.
type VariantPrice struct {
	domain.Variant
	Price *pricing.Resolved `json:"price"`
}

type View struct {
	Product  *domain.Product `json:"product"`
	Currency string          `json:"currency_code"`
	Cheapest *VariantPrice   `json:"cheapest,omitempty"`
	Variants []VariantPrice  `json:"variants"`
}

// Get loads a product and prices its variants in currencyCode.
func (s *Service) Get(ctx context.Context, productID, currencyCode string) (*View, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Invalid("product id required")
	}
	code := strings.ToLower(strings.TrimSpace(currencyCode))

	var regionID string
	if code != "" {
		region, err := s.regions.ForCurrency(ctx, code)
		switch {
		case err == nil:
			regionID = region.ID
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	p, err := s.catalog.GetProduct(ctx, productID, regionID)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return &View{Product: p, Variants: plainVariants(p.Variants)}, nil
	}

	view := &View{Product: p, Currency: code}
	for _, v := range p.Variants {
		resolved, _ := s.pricer.Resolve(v.Prices, code)
		view.Variants = append(view.Variants, VariantPrice{Variant: v, Price: resolved})
	}
	if v, price := s.pricer.Cheapest(p.Variants, code); v != nil && price != nil {
		view.Cheapest = &VariantPrice{Variant: *v, Price: price}
	}
	return view, nil
}

func plainVariants(variants []domain.Variant) []VariantPrice {
	out := make([]VariantPrice, 0, len(variants))
	for _, v := range variants {
		out = append(out, VariantPrice{Variant: v})
	}
	return out
}
