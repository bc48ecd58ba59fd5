// Package trading executes buy and sell orders against the ledger.
package trading

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stocks-simulator/ledger"
	"stocks-simulator/models"
	"stocks-simulator/portfolio"
)

// Receipt describes an executed order.
type Receipt struct {
	Transaction models.Transaction `json:"transaction"`
	Quote       models.Quote       `json:"quote"`
	Cash        decimal.Decimal    `json:"cash"`
}

type Service struct {
	store   ledger.Store
	engine  *portfolio.Engine
	metrics *Metrics
}

func NewService(store ledger.Store, engine *portfolio.Engine, metrics *Metrics) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{store: store, engine: engine, metrics: metrics}
}

func (s *Service) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := s.engine.QuoteSymbol(ctx, symbol)
	s.metrics.Quotes.WithLabelValues(result(err)).Inc()
	return q, err
}

// Buy purchases shares of symbol at the current price.
func (s *Service) Buy(ctx context.Context, userID uint, symbol string, shares int64) (Receipt, error) {
	start := time.Now()
	r, err := s.buy(ctx, userID, symbol, shares)
	s.observe("buy", userID, symbol, shares, start, err)
	return r, err
}

func (s *Service) buy(ctx context.Context, userID uint, symbol string, shares int64) (Receipt, error) {
	if shares <= 0 {
		return Receipt{}, fmt.Errorf("%w: shares must be positive", portfolio.ErrValidation)
	}
	quote, err := s.Quote(ctx, symbol)
	if err != nil {
		return Receipt{}, err
	}

	r := Receipt{Quote: quote}
	err = s.store.Atomically(ctx, userID, func(tx ledger.Store) error {
		cash, err := tx.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		left, err := portfolio.ValidateBuy(cash, quote, shares)
		if err != nil {
			return err
		}
		if err := tx.SetCash(ctx, userID, left); err != nil {
			return err
		}
		r.Transaction, err = tx.AppendTransaction(ctx, userID, quote.Symbol, shares, quote.Price)
		r.Cash = left
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	return r, nil
}

// Sell sells shares of symbol at the current price.
func (s *Service) Sell(ctx context.Context, userID uint, symbol string, shares int64) (Receipt, error) {
	start := time.Now()
	r, err := s.sell(ctx, userID, symbol, shares)
	s.observe("sell", userID, symbol, shares, start, err)
	return r, err
}

func (s *Service) sell(ctx context.Context, userID uint, symbol string, shares int64) (Receipt, error) {
	if shares <= 0 {
		return Receipt{}, fmt.Errorf("%w: shares must be positive", portfolio.ErrValidation)
	}
	quote, err := s.Quote(ctx, symbol)
	if err != nil {
		return Receipt{}, err
	}

	r := Receipt{Quote: quote}
	err = s.store.Atomically(ctx, userID, func(tx ledger.Store) error {
		holdings, err := tx.GetHoldings(ctx, userID)
		if err != nil {
			return err
		}
		if err := portfolio.ValidateSell(holdings[quote.Symbol], shares); err != nil {
			return err
		}
		cash, err := tx.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		r.Cash = cash.Add(quote.Price.Mul(decimal.NewFromInt(shares)))
		if err := tx.SetCash(ctx, userID, r.Cash); err != nil {
			return err
		}
		r.Transaction, err = tx.AppendTransaction(ctx, userID, quote.Symbol, -shares, quote.Price)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	return r, nil
}

func (s *Service) observe(side string, userID uint, symbol string, shares int64, start time.Time, err error) {
	res := result(err)
	s.metrics.Orders.WithLabelValues(side, res).Inc()
	s.metrics.OrderDuration.WithLabelValues(side).Observe(time.Since(start).Seconds())

	var ev *zerolog.Event
	switch res {
	case "ok":
		ev = log.Info()
	case "error", "unknown_user":
		ev = log.Error().Err(err)
	default:
		ev = log.Info().Str("reason", err.Error())
	}
	ev.Str("side", side).Uint("user_id", userID).Str("symbol", symbol).Int64("shares", shares).
		Str("result", res).Dur("took", time.Since(start)).Msg("order")
}

// Portfolio values the user's active holdings at live prices. Cash and the
// log are read as one snapshot. Holdings that cannot be quoted keep their last
// execution price and are marked stale.
func (s *Service) Portfolio(ctx context.Context, userID uint) (portfolio.View, error) {
	var (
		cash decimal.Decimal
		txs  []models.Transaction
	)
	err := s.store.Atomically(ctx, userID, func(tx ledger.Store) error {
		var err error
		if cash, err = tx.GetCash(ctx, userID); err != nil {
			return err
		}
		txs, err = tx.GetTransactions(ctx, userID)
		return err
	})
	if err != nil {
		return portfolio.View{}, err
	}

	symbols := make([]string, 0)
	for symbol := range portfolio.Holdings(txs) {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	quotes := make(map[string]models.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := s.Quote(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Str("symbol", symbol).Msg("holding valued at last execution price")
			continue
		}
		quotes[q.Symbol] = q
	}
	return portfolio.ComputeView(cash, txs, quotes), nil
}

// Holdings returns the active positions of the user.
func (s *Service) Holdings(ctx context.Context, userID uint) (map[string]int64, error) {
	return s.store.GetHoldings(ctx, userID)
}

// History returns every transaction of the user, oldest first.
func (s *Service) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	return s.store.GetTransactions(ctx, userID)
}

// Deposit adds a positive amount to the user's cash and returns the new
// balance. Amounts finer than portfolio.MoneyPlaces are rejected.
func (s *Service) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: deposit must be positive", portfolio.ErrValidation)
	}
	if !amount.Equal(amount.Round(portfolio.MoneyPlaces)) {
		return decimal.Zero, fmt.Errorf("%w: deposit has more than %d decimal places", portfolio.ErrValidation, portfolio.MoneyPlaces)
	}
	var cash decimal.Decimal
	err := s.store.Atomically(ctx, userID, func(tx ledger.Store) error {
		current, err := tx.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		cash = current.Add(amount)
		return tx.SetCash(ctx, userID, cash)
	})
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("deposit failed")
		return decimal.Zero, err
	}
	log.Info().Uint("user_id", userID).Str("amount", amount.String()).Msg("deposit")
	return cash, nil
}
