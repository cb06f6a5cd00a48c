package domain

import "time"

// Cart is the pre-purchase draft. Totals are derived from lines and shipping
// state through Recompute and are never set by hand.
type Cart struct {
	ID                string               `json:"id"`
	RegionID          string               `json:"region_id"`
	Currency          string               `json:"currency_code"`
	Email             string               `json:"email,omitempty"`
	Items             []LineItem           `json:"items"`
	ShippingAddress   *Address             `json:"shipping_address,omitempty"`
	ShippingMethods   []ShippingAssignment `json:"shipping_methods"`
	PaymentCollection *PaymentCollection   `json:"payment_collection,omitempty"`
	Totals            Totals               `json:"totals"`
	CreatedAt         time.Time            `json:"created_at"`
}

// LineItem is one variant and quantity within a cart. Prices carries one entry
// per supported currency, each authoritative on its own.
type LineItem struct {
	ID        string  `json:"id"`
	VariantID string  `json:"variant_id"`
	ProductID string  `json:"product_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	SellerID  string  `json:"seller_id,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
	Prices    []Price `json:"prices,omitempty"`
}

// Price is a single entry of a variant price list, in minor units.
type Price struct {
	Amount       int64             `json:"amount"`
	CurrencyCode string            `json:"currency_code"`
	PriceListID  string            `json:"price_list_id,omitempty"`
	Rules        map[string]string `json:"rules,omitempty"`
	MinQuantity  *int              `json:"min_quantity,omitempty"`
	MaxQuantity  *int              `json:"max_quantity,omitempty"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// AssignmentPath tags how a shipping assignment was committed.
type AssignmentPath string

const (
	AssignmentNormal AssignmentPath = "normal"
	AssignmentForced AssignmentPath = "forced"
)

// ShippingAssignment is the committed delivery option for one seller scope.
// Amount is in minor units of the cart settlement currency.
type ShippingAssignment struct {
	ID       string         `json:"id"`
	OptionID string         `json:"shipping_option_id"`
	Name     string         `json:"name,omitempty"`
	Amount   int64          `json:"amount"`
	Path     AssignmentPath `json:"path"`
	SellerID string         `json:"seller_id,omitempty"`
}

// Totals are all in minor units of the settlement currency.
type Totals struct {
	ItemSubtotal  int64 `json:"item_subtotal"`
	ShippingTotal int64 `json:"shipping_total"`
	TaxTotal      int64 `json:"tax_total"`
	DiscountTotal int64 `json:"discount_total"`
	CreditTotal   int64 `json:"credit_total"`
	Total         int64 `json:"total"`
}

// Recompute derives item and shipping totals from authoritative line and
// shipping state. Tax, discount and credit come from the backend as-is.
func (c *Cart) Recompute() {
	var items int64
	for _, it := range c.Items {
		items += it.UnitPrice * int64(it.Quantity)
	}
	var shipping int64
	for _, m := range c.ShippingMethods {
		shipping += m.Amount
	}
	c.Totals.ItemSubtotal = items
	c.Totals.ShippingTotal = shipping
	total := items + shipping + c.Totals.TaxTotal - c.Totals.DiscountTotal - c.Totals.CreditTotal
	if total < 0 {
		total = 0
	}
	c.Totals.Total = total
}

// LineByVariant returns the line holding the given variant, if any.
func (c *Cart) LineByVariant(variantID string) (*LineItem, bool) {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// ShippingForSeller returns the assignment committed for a seller scope.
func (c *Cart) ShippingForSeller(sellerID string) (*ShippingAssignment, bool) {
	for i := range c.ShippingMethods {
		if c.ShippingMethods[i].SellerID == sellerID {
			return &c.ShippingMethods[i], true
		}
	}
	return nil, false
}

// CoveredByCredit reports whether non-monetary credit pays for the whole cart.
func (c *Cart) CoveredByCredit() bool {
	return c.Totals.CreditTotal > 0 && c.Totals.Total <= 0
}

// OpenSession returns the cart's current payment session: the one session
// that has not failed. Errored sessions stay listed but are never current.
func (c *Cart) OpenSession() *PaymentSession {
	if c.PaymentCollection == nil {
		return nil
	}
	for i := range c.PaymentCollection.Sessions {
		s := &c.PaymentCollection.Sessions[i]
		if s.Status != SessionError {
			return s
		}
	}
	return nil
}

// ActiveSessions counts sessions in a non-terminal status.
func (c *Cart) ActiveSessions() int {
	if c.PaymentCollection == nil {
		return 0
	}
	n := 0
	for _, s := range c.PaymentCollection.Sessions {
		if !s.Status.Terminal() {
			n++
		}
	}
	return n
}
