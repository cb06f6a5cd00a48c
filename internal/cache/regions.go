package cache

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"marketplace-storefront/internal/domain"
)

const regionsKey = "regions:all"

// RegionSource is where regions come from on a cache miss.
type RegionSource interface {
	ListRegions(ctx context.Context) ([]domain.Region, error)
}

// Regions is a read-through cache of the region catalog. Concurrent misses
// share one backend call.
type Regions struct {
	store  *Store
	source RegionSource
	ttl    time.Duration
	group  singleflight.Group
	logger *log.Logger
}

func NewRegions(store *Store, source RegionSource, ttl time.Duration, logger *log.Logger) *Regions {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Regions{store: store, source: source, ttl: ttl, logger: logger}
}

// List returns all regions. A broken cache degrades to a direct fetch.
func (r *Regions) List(ctx context.Context) ([]domain.Region, error) {
	var regions []domain.Region
	err := r.store.Get(ctx, regionsKey, &regions)
	if err == nil {
		return regions, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Printf("region cache: get failed err=%v", err)
	}

	v, err, _ := r.group.Do(regionsKey, func() (any, error) {
		fetched, err := r.source.ListRegions(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.store.Set(ctx, regionsKey, fetched, r.ttl); err != nil {
			r.logger.Printf("region cache: set failed err=%v", err)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Region), nil
}

// ForCurrency returns the first region settling in currencyCode.
func (r *Regions) ForCurrency(ctx context.Context, currencyCode string) (*domain.Region, error) {
	regions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range regions {
		if strings.EqualFold(regions[i].CurrencyCode, currencyCode) {
			return &regions[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// Default returns the first region of the catalog.
func (r *Regions) Default(ctx context.Context) (*domain.Region, error) {
	regions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, domain.ErrNotFound
	}
	return &regions[0], nil
}
