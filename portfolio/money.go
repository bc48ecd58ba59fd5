package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept for cash and prices,
// matching the numeric(20,4) columns.
const MoneyPlaces = 4

// USD formats an amount in dollars, rounded to cents.
func USD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}
