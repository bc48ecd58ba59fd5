package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stocks-simulator/models"
)

// ValidateBuy checks that cash covers shares at the quoted price and returns
// the cash left after the purchase.
func ValidateBuy(cash decimal.Decimal, quote models.Quote, shares int64) (decimal.Decimal, error) {
	if shares <= 0 {
		return cash, fmt.Errorf("%w: shares must be positive", ErrValidation)
	}
	cost := quote.Price.Mul(decimal.NewFromInt(shares))
	if cost.GreaterThan(cash) {
		return cash, fmt.Errorf("%w: cost %s exceeds cash %s", ErrInsufficientFunds, USD(cost), USD(cash))
	}
	return cash.Sub(cost), nil
}

// ValidateSell checks that the holding covers the shares being sold.
func ValidateSell(holding, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("%w: shares must be positive", ErrValidation)
	}
	if shares > holding {
		return fmt.Errorf("%w: cannot sell %d shares, holding %d", ErrInsufficientShares, shares, holding)
	}
	return nil
}
