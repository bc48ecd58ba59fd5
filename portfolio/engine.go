package portfolio

import (
	"context"
	"fmt"

	"stocks-simulator/models"
)

// PriceSource looks up the current quote of a symbol. found is false when
// the symbol does not exist; err is set when the lookup itself failed.
type PriceSource interface {
	Lookup(ctx context.Context, symbol string) (quote models.Quote, found bool, err error)
}

// Engine resolves quotes through a PriceSource.
type Engine struct {
	prices PriceSource
}

func NewEngine(prices PriceSource) *Engine {
	return &Engine{prices: prices}
}

// QuoteSymbol normalises symbol and looks it up. An unknown symbol yields
// ErrUnknownSymbol, a failing source ErrQuoteUnavailable. Prices are rounded
// to MoneyPlaces.
func (e *Engine) QuoteSymbol(ctx context.Context, symbol string) (models.Quote, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return models.Quote{}, err
	}
	q, found, err := e.prices.Lookup(ctx, symbol)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %s: %w", ErrQuoteUnavailable, symbol, err)
	}
	if !found {
		return models.Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	q.Price = q.Price.Round(MoneyPlaces)
	if !q.Price.IsPositive() {
		return models.Quote{}, fmt.Errorf("%w: %s: non-positive price %s", ErrQuoteUnavailable, symbol, q.Price)
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Name == "" {
		q.Name = q.Symbol
	}
	return q, nil
}
