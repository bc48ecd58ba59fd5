// Package market looks up share prices for the trading service.
package market

import (
	"context"
	"errors"

	"stocks-simulator/models"
)

// Source returns the quote of symbol. found is false for an unknown symbol;
// err reports a failed lookup.
type Source interface {
	Lookup(ctx context.Context, symbol string) (quote models.Quote, found bool, err error)
}

var (
	// ErrThrottled is returned when the provider refuses a request because of
	// its call quota.
	ErrThrottled = errors.New("market data provider throttled the request")
	ErrProvider  = errors.New("market data provider error")
)
