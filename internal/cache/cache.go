// Package cache holds the redis-backed read caches of the storefront: tagged
// JSON entries, the region catalog and the session cart identity.
package cache

import (
	"errors"
	"fmt"
)

// Cache regions invalidated after an order is placed.
const (
	TagCarts              = "carts"
	TagOrders             = "orders"
	TagReviewsEligibility = "reviews-eligibility"
)

var ErrCacheMiss = errors.New("cache miss")

func tagKey(tag string) string {
	return fmt.Sprintf("tag:%s", tag)
}
