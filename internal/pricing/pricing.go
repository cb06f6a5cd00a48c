// Package pricing resolves per-currency variant prices and renders money
// amounts for display. Amounts are minor units throughout; nothing here
// converts between currencies.
package pricing

import (
	"math"
	"sort"
	"strings"

	"marketplace-storefront/internal/domain"
)

// Money is an amount in minor units with its rendered form.
type Money struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	Formatted    string `json:"formatted"`
}

// Resolved is the price entry chosen for a display currency.
type Resolved struct {
	Money
	Price domain.Price `json:"-"`
}

// Pricer resolves and formats prices for one display locale.
type Pricer struct {
	formatter *Formatter
}

func New(locale string) *Pricer {
	return &Pricer{formatter: NewFormatter(locale)}
}

// Format renders a minor-unit amount. It never fails.
func (p *Pricer) Format(amount int64, currencyCode string) string {
	return p.formatter.Format(amount, currencyCode)
}

// Money builds a Money value for amount in currencyCode.
func (p *Pricer) Money(amount int64, currencyCode string) Money {
	code := strings.ToLower(currencyCode)
	return Money{Amount: amount, CurrencyCode: code, Formatted: p.Format(amount, code)}
}

// Resolve picks the price to show in currencyCode. The entry amount is
// returned unchanged; ok is false when no entry carries that currency.
func (p *Pricer) Resolve(prices []domain.Price, currencyCode string) (*Resolved, bool) {
	price, ok := Match(prices, currencyCode)
	if !ok {
		return nil, false
	}
	return &Resolved{Money: p.Money(price.Amount, price.CurrencyCode), Price: price}, true
}

// Match filters prices by currency (case-insensitive) and prefers the base
// price; when no base price exists the first match wins.
func Match(prices []domain.Price, currencyCode string) (domain.Price, bool) {
	var first *domain.Price
	for i := range prices {
		pr := &prices[i]
		if !strings.EqualFold(pr.CurrencyCode, currencyCode) {
			continue
		}
		if isBase(*pr) {
			return *pr, true
		}
		if first == nil {
			first = pr
		}
	}
	if first == nil {
		return domain.Price{}, false
	}
	return *first, true
}

// isBase reports a price without price-list or rule qualifiers on the default
// quantity tier.
func isBase(p domain.Price) bool {
	if p.PriceListID != "" || len(p.Rules) > 0 {
		return false
	}
	if p.MinQuantity != nil && *p.MinQuantity > 1 {
		return false
	}
	return p.MaxQuantity == nil
}

// Cheapest returns the variant with the lowest resolved price in
// currencyCode. Variants without a price sort last; ties keep input order.
// price is nil when no variant can be shown in that currency.
func (p *Pricer) Cheapest(variants []domain.Variant, currencyCode string) (variant *domain.Variant, price *Resolved) {
	if len(variants) == 0 {
		return nil, nil
	}
	amounts := make([]int64, len(variants))
	order := make([]int, len(variants))
	for i, v := range variants {
		order[i] = i
		amounts[i] = math.MaxInt64
		if pr, ok := Match(v.Prices, currencyCode); ok {
			amounts[i] = pr.Amount
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return amounts[order[a]] < amounts[order[b]]
	})
	best := &variants[order[0]]
	resolved, _ := p.Resolve(best.Prices, currencyCode)
	return best, resolved
}
