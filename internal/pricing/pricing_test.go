package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-storefront/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestResolveReturnsAmountUnchanged(t *testing.T) {
	p := New("en-US")
	prices := []domain.Price{
		{Amount: 15000, CurrencyCode: "bob"},
		{Amount: 2170, CurrencyCode: "usdt"},
	}
	for _, c := range []string{"bob", "BOB", "usdt", "UsDt"} {
		r, ok := p.Resolve(prices, c)
		require.True(t, ok, c)
		want, _ := Match(prices, c)
		assert.Equal(t, want.Amount, r.Amount, c)
	}
	r, _ := p.Resolve(prices, "usdt")
	assert.Equal(t, int64(2170), r.Amount)
}

func TestResolveMissingCurrency(t *testing.T) {
	r, ok := New("en-US").Resolve([]domain.Price{{Amount: 100, CurrencyCode: "bob"}}, "eur")
	assert.False(t, ok)
	assert.Nil(t, r)
}

func TestMatchPrefersBasePrice(t *testing.T) {
	prices := []domain.Price{
		{Amount: 900, CurrencyCode: "bob", PriceListID: "plist_sale"},
		{Amount: 800, CurrencyCode: "bob", MinQuantity: intPtr(10)},
		{Amount: 950, CurrencyCode: "bob", Rules: map[string]string{"customer_group": "vip"}},
		{Amount: 1000, CurrencyCode: "BOB", MinQuantity: intPtr(1)},
	}
	got, ok := Match(prices, "bob")
	require.True(t, ok)
	assert.Equal(t, int64(1000), got.Amount)
}

func TestMatchFallsBackToFirstQualified(t *testing.T) {
	prices := []domain.Price{
		{Amount: 500, CurrencyCode: "usd"},
		{Amount: 900, CurrencyCode: "bob", PriceListID: "plist_sale"},
		{Amount: 800, CurrencyCode: "bob", MaxQuantity: intPtr(5)},
	}
	got, ok := Match(prices, "bob")
	require.True(t, ok)
	assert.Equal(t, int64(900), got.Amount)
}

func TestCheapestStableAndMissingLast(t *testing.T) {
	variants := []domain.Variant{
		{ID: "v_none", Prices: []domain.Price{{Amount: 1, CurrencyCode: "bob"}}},
		{ID: "v_a", Prices: []domain.Price{{Amount: 300, CurrencyCode: "usdt"}}},
		{ID: "v_b", Prices: []domain.Price{{Amount: 200, CurrencyCode: "usdt"}}},
		{ID: "v_c", Prices: []domain.Price{{Amount: 200, CurrencyCode: "usdt"}}},
	}
	v, price := New("en-US").Cheapest(variants, "usdt")
	require.NotNil(t, v)
	require.NotNil(t, price)
	assert.Equal(t, "v_b", v.ID)
	assert.Equal(t, int64(200), price.Amount)
}

func TestCheapestNoPriceInCurrency(t *testing.T) {
	variants := []domain.Variant{{ID: "v1", Prices: []domain.Price{{Amount: 1, CurrencyCode: "bob"}}}}
	v, price := New("en-US").Cheapest(variants, "eur")
	require.NotNil(t, v)
	assert.Nil(t, price)

	v, price = New("en-US").Cheapest(nil, "eur")
	assert.Nil(t, v)
	assert.Nil(t, price)
}

func TestFormatSyntheticCurrencies(t *testing.T) {
	f := NewFormatter("es-BO")
	assert.Equal(t, "USDT 21.70", f.Format(2170, "usdt"))
	assert.Equal(t, "₿ 0.00050000", f.Format(50000, "BTC"))
	assert.Equal(t, "XYZ 1.05", f.Format(105, "xyz"))
	assert.Equal(t, "USDT -0.50", f.Format(-50, "USDT"))
}

func TestFormatISOCurrency(t *testing.T) {
	out := NewFormatter("en-US").Format(4000, "usd")
	assert.Contains(t, out, "40.00")
	assert.NotEmpty(t, NewFormatter("not a locale").Format(4000, "bob"))
}

func bobUsdtCart() *domain.Cart {
	cart := &domain.Cart{
		ID:       "cart_1",
		Currency: "bob",
		Items: []domain.LineItem{
			{ID: "li_1", VariantID: "v1", Quantity: 2, UnitPrice: 15000, Prices: []domain.Price{
				{Amount: 15000, CurrencyCode: "bob"}, {Amount: 2170, CurrencyCode: "usdt"},
			}},
			{ID: "li_2", VariantID: "v2", Quantity: 1, UnitPrice: 7000, Prices: []domain.Price{
				{Amount: 7000, CurrencyCode: "bob"}, {Amount: 1010, CurrencyCode: "usdt"},
			}},
		},
		ShippingMethods: []domain.ShippingAssignment{{ID: "sm_1", Amount: 1500}},
	}
	cart.Recompute()
	return cart
}

func TestTotalsInSyntheticDisplayCurrency(t *testing.T) {
	cart := bobUsdtCart()
	got := New("es-BO").Totals(cart, "USDT")

	assert.False(t, got.FellBack)
	assert.Equal(t, "usdt", got.Currency)
	assert.Equal(t, int64(2*2170+1010), got.ItemSubtotal.Amount)
	assert.Equal(t, "usdt", got.ItemSubtotal.CurrencyCode)
	assert.Equal(t, int64(2*2170+1010), got.Total.Amount)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, int64(4340), got.Lines[0].Subtotal.Amount)

	// shipping stays in the settlement currency
	assert.Equal(t, int64(1500), got.Shipping.Amount)
	assert.Equal(t, "bob", got.Shipping.CurrencyCode)
	assert.Equal(t, int64(37000), cart.Totals.ItemSubtotal)
}

func TestTotalsFallBackWhenAnyLineLacksCurrency(t *testing.T) {
	cart := bobUsdtCart()
	cart.Items[1].Prices = []domain.Price{{Amount: 7000, CurrencyCode: "bob"}}

	got := New("es-BO").Totals(cart, "usdt")
	assert.True(t, got.FellBack)
	assert.Equal(t, "bob", got.Currency)
	assert.Equal(t, cart.Totals.ItemSubtotal, got.ItemSubtotal.Amount)
	assert.Equal(t, cart.Totals.Total, got.Total.Amount)
	for _, l := range got.Lines {
		assert.Equal(t, "bob", l.Unit.CurrencyCode)
		assert.NotZero(t, l.Unit.Amount)
	}
}

func TestTotalsSettlementByDefault(t *testing.T) {
	cart := bobUsdtCart()
	got := New("es-BO").Totals(cart, "")
	assert.False(t, got.FellBack)
	assert.Equal(t, "bob", got.Currency)
	assert.Equal(t, int64(38500), got.Total.Amount)
}
