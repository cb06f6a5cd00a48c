package dispatch

import (
	"context"

	"marketplace-storefront/internal/domain"
)

// Repository keeps the last published timeline per order and fulfillment.
type Repository interface {
	Get(ctx context.Context, orderID, fulfillmentID string) (*domain.Timeline, error)
	// Save upserts t unless the stored snapshot is already terminal.
	Save(ctx context.Context, t domain.Timeline) error
}
