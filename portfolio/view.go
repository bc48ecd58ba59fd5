package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"stocks-simulator/models"
)

// Row is one active holding valued at its current price.
type Row struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Total  decimal.Decimal `json:"total"`
	// Stale is set when no live price was available and Price is the last
	// execution price from the log.
	Stale bool `json:"stale,omitempty"`
}

// View is the portfolio as shown on the index page.
type View struct {
	Holdings []Row           `json:"holdings"`
	Cash     decimal.Decimal `json:"cash"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// Holdings folds the log into the number of shares held per symbol. Symbols
// whose total is not positive are left out.
func Holdings(txs []models.Transaction) map[string]int64 {
	totals := make(map[string]int64)
	for _, tx := range txs {
		totals[tx.Symbol] += tx.Shares
	}
	for symbol, n := range totals {
		if n <= 0 {
			delete(totals, symbol)
		}
	}
	return totals
}

// ComputeView values every active holding with prices and adds cash to get
// the net worth.
func ComputeView(cash decimal.Decimal, txs []models.Transaction, prices map[string]models.Quote) View {
	lastPrice := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		lastPrice[tx.Symbol] = tx.Price
	}

	view := View{Holdings: []Row{}, Cash: cash, NetWorth: cash}
	for symbol, shares := range Holdings(txs) {
		row := Row{Symbol: symbol, Name: symbol, Shares: shares}
		if q, ok := prices[symbol]; ok {
			row.Price = q.Price
			if q.Name != "" {
				row.Name = q.Name
			}
		} else {
			row.Price = lastPrice[symbol]
			row.Stale = true
		}
		row.Total = row.Price.Mul(decimal.NewFromInt(shares))
		view.NetWorth = view.NetWorth.Add(row.Total)
		view.Holdings = append(view.Holdings, row)
	}
	sort.Slice(view.Holdings, func(i, j int) bool {
		return view.Holdings[i].Symbol < view.Holdings[j].Symbol
	})
	return view
}
