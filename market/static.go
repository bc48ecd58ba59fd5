package market

import (
	"context"
	"strings"

	"stocks-simulator/models"
)

// Static serves quotes from a fixed table.
type Static map[string]models.Quote

func (s Static) Lookup(_ context.Context, symbol string) (models.Quote, bool, error) {
	q, ok := s[strings.ToUpper(symbol)]
	if ok && q.Symbol == "" {
		q.Symbol = strings.ToUpper(symbol)
	}
	return q, ok, nil
}
