package pricing

import (
	"strings"

	"marketplace-storefront/internal/domain"
)

// LineTotal is one cart line rendered in the display currency.
type LineTotal struct {
	LineID    string `json:"line_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Unit      Money  `json:"unit"`
	Subtotal  Money  `json:"subtotal"`
}

// CartTotals is the display rendering of a cart. When FellBack is set the
// requested currency could not price every line and everything is shown in
// the settlement currency instead. Shipping is always in the settlement
// currency. Total includes shipping, tax and discounts only when the display
// currency is the settlement currency; otherwise it covers items.
type CartTotals struct {
	Currency     string      `json:"currency_code"`
	Requested    string      `json:"requested_currency,omitempty"`
	FellBack     bool        `json:"fell_back"`
	Lines        []LineTotal `json:"lines"`
	ItemSubtotal Money       `json:"item_subtotal"`
	Shipping     Money       `json:"shipping"`
	Total        Money       `json:"total"`
}

// Totals renders cart in displayCurrency. An empty displayCurrency means
// the settlement currency.
func (p *Pricer) Totals(cart *domain.Cart, displayCurrency string) CartTotals {
	settlement := strings.ToLower(cart.Currency)
	requested := strings.ToLower(strings.TrimSpace(displayCurrency))
	out := CartTotals{
		Requested: requested,
		Shipping:  p.Money(cart.Totals.ShippingTotal, settlement),
	}

	if requested != "" && requested != settlement {
		lines, subtotal, ok := p.displayLines(cart.Items, requested)
		if ok {
			out.Currency = requested
			out.Lines = lines
			out.ItemSubtotal = p.Money(subtotal, requested)
			out.Total = p.Money(subtotal, requested)
			return out
		}
		out.FellBack = true
	}

	out.Currency = settlement
	out.Lines = make([]LineTotal, 0, len(cart.Items))
	for _, it := range cart.Items {
		out.Lines = append(out.Lines, LineTotal{
			LineID:    it.ID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Unit:      p.Money(it.UnitPrice, settlement),
			Subtotal:  p.Money(it.UnitPrice*int64(it.Quantity), settlement),
		})
	}
	out.ItemSubtotal = p.Money(cart.Totals.ItemSubtotal, settlement)
	out.Total = p.Money(cart.Totals.Total, settlement)
	return out
}

func (p *Pricer) displayLines(items []domain.LineItem, currencyCode string) ([]LineTotal, int64, bool) {
	lines := make([]LineTotal, 0, len(items))
	var subtotal int64
	for _, it := range items {
		price, ok := Match(it.Prices, currencyCode)
		if !ok {
			return nil, 0, false
		}
		lineTotal := price.Amount * int64(it.Quantity)
		subtotal += lineTotal
		lines = append(lines, LineTotal{
			LineID:    it.ID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Unit:      p.Money(price.Amount, currencyCode),
			Subtotal:  p.Money(lineTotal, currencyCode),
		})
	}
	return lines, subtotal, true
}
