package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/bike-order-form/internal/domain/rate"
)

// VATMultiplier adds the fixed 21% Czech VAT.
var VATMultiplier = decimal.RequireFromString("1.21")

var one = decimal.NewFromInt(1)

// Subtotal returns price × quantity without rounding.
func Subtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Scale returns the factor that expresses a base-currency amount in the
// currency with the given display name. The base currency scales by 1; any
// other currency by 1 / mid. It reports false when the table has no such
// currency.
func Scale(tbl *rate.Table, currency string) (decimal.Decimal, bool) {
	if currency == rate.BaseCurrency {
		return one, true
	}
	r, ok := tbl.Lookup(currency)
	if !ok {
		return decimal.Decimal{}, false
	}
	return one.Div(r.Mid), true
}

// Convert scales a base-currency amount and rounds it for display.
func Convert(amount, scale decimal.Decimal) decimal.Decimal {
	return amount.Mul(scale).Round(2)
}

// ConvertWithVAT applies VAT to an unrounded base-currency amount, then the
// scale, then rounds once.
func ConvertWithVAT(amount, scale decimal.Decimal) decimal.Decimal {
	return amount.Mul(VATMultiplier).Mul(scale).Round(2)
}
