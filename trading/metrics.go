package trading

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"stocks-simulator/ledger"
	"stocks-simulator/portfolio"
)

// Metrics holds the Prometheus collectors of the trading service.
type Metrics struct {
	Orders        *prometheus.CounterVec
	OrderDuration *prometheus.HistogramVec
	Quotes        *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksim_orders_total",
				Help: "Orders processed by side and result",
			},
			[]string{"side", "result"},
		),
		OrderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksim_order_duration_seconds",
				Help:    "Time to process an order including the quote",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"side"},
		),
		Quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksim_quote_lookups_total",
				Help: "Quote lookups by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Orders, m.OrderDuration, m.Quotes)
	}
	return m
}

// result maps an error to a low-cardinality label value.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, portfolio.ErrValidation):
		return "invalid"
	case errors.Is(err, portfolio.ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, portfolio.ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, portfolio.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ledger.ErrNotFound):
		return "unknown_user"
	default:
		return "error"
	}
}
