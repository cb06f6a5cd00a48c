package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type fallbackCurrency struct {
	places int32
	symbol string
}

// Currencies the locale data does not know about.
var fallbackCurrencies = map[string]fallbackCurrency{
	"USDT": {places: 2, symbol: "USDT"},
	"USDC": {places: 2, symbol: "USDC"},
	"BTC":  {places: 8, symbol: "₿"},
	"SATS": {places: 0, symbol: "sats"},
	"ETH":  {places: 18, symbol: "Ξ"},
}

// Formatter renders minor-unit amounts using locale data for ISO 4217
// currencies and the fallback table for everything else.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

func (f *Formatter) Format(amount int64, currencyCode string) string {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if fb, ok := fallbackCurrencies[code]; ok {
		return formatFixed(amount, fb)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return formatFixed(amount, fallbackCurrency{places: 2, symbol: code})
	}
	scale, _ := currency.Standard.Rounding(unit)
	value, _ := decimal.New(amount, -int32(scale)).Float64()
	symbol := f.printer.Sprint(currency.NarrowSymbol(unit))
	return symbol + " " + f.printer.Sprint(number.Decimal(value, number.Scale(scale)))
}

func formatFixed(amount int64, fb fallbackCurrency) string {
	value := decimal.New(amount, -fb.places).StringFixed(fb.places)
	if fb.symbol == "" {
		return value
	}
	return fb.symbol + " " + value
}
