package trading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocks-simulator/ledger"
	"stocks-simulator/market"
	"stocks-simulator/models"
	"stocks-simulator/portfolio"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type failingSource struct{ err error }

func (f failingSource) Lookup(context.Context, string) (models.Quote, bool, error) {
	return models.Quote{}, false, f.err
}

type fixture struct {
	store   *ledger.MemoryStore
	svc     *Service
	metrics *Metrics
	user    uint
}

func newFixture(t *testing.T, cash string, src portfolio.PriceSource) *fixture {
	t.Helper()
	store := ledger.NewMemoryStore()
	u, err := store.CreateUser(context.Background(), "alice", "hash", dec(cash))
	require.NoError(t, err)
	metrics := NewMetrics(prometheus.NewRegistry())
	return &fixture{
		store:   store,
		svc:     NewService(store, portfolio.NewEngine(src), metrics),
		metrics: metrics,
		user:    u.ID,
	}
}

func prices() market.Static {
	return market.Static{
		"ACME": {Symbol: "ACME", Name: "Acme Corp", Price: dec("20.00")},
		"TENS": {Symbol: "TENS", Name: "Tens Inc", Price: dec("10.00")},
	}
}

func (f *fixture) cash(t *testing.T) decimal.Decimal {
	t.Helper()
	c, err := f.store.GetCash(context.Background(), f.user)
	require.NoError(t, err)
	return c
}

func (f *fixture) log(t *testing.T) []models.Transaction {
	t.Helper()
	txs, err := f.store.GetTransactions(context.Background(), f.user)
	require.NoError(t, err)
	return txs
}

func TestBuy_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, "150.00", prices())

	_, err := f.svc.Buy(context.Background(), f.user, "acme", 10)
	assert.ErrorIs(t, err, portfolio.ErrInsufficientFunds)
	assert.True(t, dec("150").Equal(f.cash(t)))
	assert.Empty(t, f.log(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Orders.WithLabelValues("buy", "insufficient_funds")))
}

func TestBuy_Succeeds(t *testing.T) {
	f := newFixture(t, "150.00", prices())

	r, err := f.svc.Buy(context.Background(), f.user, "acme", 5)
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(r.Cash))
	assert.True(t, dec("50").Equal(f.cash(t)))

	txs := f.log(t)
	require.Len(t, txs, 1)
	assert.Equal(t, "ACME", txs[0].Symbol)
	assert.Equal(t, int64(5), txs[0].Shares)
	assert.True(t, dec("20").Equal(txs[0].Price))
	assert.Equal(t, txs[0].ID, r.Transaction.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Orders.WithLabelValues("buy", "ok")))
}

func TestSell_InsufficientShares(t *testing.T) {
	f := newFixture(t, "0", prices())
	ctx := context.Background()
	_, err := f.store.AppendTransaction(ctx, f.user, "TENS", 2, dec("10"))
	require.NoError(t, err)

	_, err = f.svc.Sell(ctx, f.user, "TENS", 3)
	assert.ErrorIs(t, err, portfolio.ErrInsufficientShares)
	assert.True(t, f.cash(t).IsZero())
	assert.Len(t, f.log(t), 1)
}

func TestSell_Succeeds(t *testing.T) {
	f := newFixture(t, "0.00", prices())
	ctx := context.Background()
	_, err := f.store.AppendTransaction(ctx, f.user, "TENS", 5, dec("10"))
	require.NoError(t, err)

	r, err := f.svc.Sell(ctx, f.user, "tens", 2)
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(r.Cash))
	assert.True(t, dec("20").Equal(f.cash(t)))

	txs := f.log(t)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-2), txs[1].Shares)
	assert.True(t, dec("10").Equal(txs[1].Price))

	holdings, err := f.store.GetHoldings(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), holdings["TENS"])
}

func TestSell_NothingHeld(t *testing.T) {
	f := newFixture(t, "0", prices())
	_, err := f.svc.Sell(context.Background(), f.user, "ACME", 1)
	assert.ErrorIs(t, err, portfolio.ErrInsufficientShares)
}

func TestOrders_RejectBadInput(t *testing.T) {
	f := newFixture(t, "100", prices())
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, f.user, "ACME", 0)
	assert.ErrorIs(t, err, portfolio.ErrValidation)
	_, err = f.svc.Sell(ctx, f.user, "ACME", -1)
	assert.ErrorIs(t, err, portfolio.ErrValidation)
	_, err = f.svc.Buy(ctx, f.user, "", 1)
	assert.ErrorIs(t, err, portfolio.ErrValidation)
	_, err = f.svc.Buy(ctx, f.user, "NOPE", 1)
	assert.ErrorIs(t, err, portfolio.ErrUnknownSymbol)

	assert.True(t, dec("100").Equal(f.cash(t)))
	assert.Empty(t, f.log(t))
}

func TestOrders_QuoteUnavailable(t *testing.T) {
	f := newFixture(t, "100", failingSource{err: errors.New("dial tcp: i/o timeout")})

	_, err := f.svc.Buy(context.Background(), f.user, "ACME", 1)
	assert.ErrorIs(t, err, portfolio.ErrQuoteUnavailable)
	assert.NotErrorIs(t, err, portfolio.ErrUnknownSymbol)
	assert.True(t, dec("100").Equal(f.cash(t)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Quotes.WithLabelValues("quote_unavailable")))
}

func TestOrders_UnknownUser(t *testing.T) {
	f := newFixture(t, "100", prices())
	_, err := f.svc.Buy(context.Background(), f.user+1, "ACME", 1)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestBuy_ConcurrentOrdersNeverOverdraw(t *testing.T) {
	// each order fits the balance alone, both together do not
	f := newFixture(t, "30.00", prices())
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Buy(ctx, f.user, "ACME", 1)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, portfolio.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.True(t, dec("10").Equal(f.cash(t)))
	assert.Len(t, f.log(t), 1)
}

func TestBuy_ManyConcurrentOrders(t *testing.T) {
	f := newFixture(t, "200.00", prices())
	ctx := context.Background()

	const orders = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	filled := 0
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Buy(ctx, f.user, "ACME", 1); err == nil {
				mu.Lock()
				filled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, filled)
	assert.True(t, f.cash(t).IsZero())
	assert.Len(t, f.log(t), 10)
}

func TestSell_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t, "0", prices())
	ctx := context.Background()
	_, err := f.store.AppendTransaction(ctx, f.user, "TENS", 3, dec("10"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Sell(ctx, f.user, "TENS", 1)
		}()
	}
	wg.Wait()

	holdings, err := f.store.GetHoldings(ctx, f.user)
	require.NoError(t, err)
	assert.NotContains(t, holdings, "TENS")
	assert.True(t, dec("30").Equal(f.cash(t)))
}

func TestPortfolio(t *testing.T) {
	src := prices()
	f := newFixture(t, "1000", src)
	ctx := context.Background()

	view, err := f.svc.Portfolio(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, view.Holdings)
	assert.True(t, dec("1000").Equal(view.NetWorth))

	_, err = f.svc.Buy(ctx, f.user, "ACME", 10)
	require.NoError(t, err)
	_, err = f.svc.Buy(ctx, f.user, "TENS", 5)
	require.NoError(t, err)

	src["ACME"] = models.Quote{Symbol: "ACME", Name: "Acme Corp", Price: dec("25")}
	delete(src, "TENS")

	view, err = f.svc.Portfolio(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, view.Holdings, 2)
	assert.Equal(t, "ACME", view.Holdings[0].Symbol)
	assert.True(t, dec("250").Equal(view.Holdings[0].Total))
	assert.True(t, view.Holdings[1].Stale)
	assert.True(t, dec("50").Equal(view.Holdings[1].Total))
	// 1000 - 200 - 50 cash, plus 250 + 50 in stock
	assert.True(t, dec("1050").Equal(view.NetWorth), view.NetWorth.String())

	// buys quote ACME and TENS once each, the two views quote the held symbols
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Quotes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Quotes.WithLabelValues("unknown_symbol")))
}

// directReads counts cash and log reads made outside a unit of work.
type directReads struct {
	*ledger.MemoryStore
	n int
}

func (d *directReads) GetCash(ctx context.Context, userID uint) (decimal.Decimal, error) {
	d.n++
	return d.MemoryStore.GetCash(ctx, userID)
}

func (d *directReads) GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error) {
	d.n++
	return d.MemoryStore.GetTransactions(ctx, userID)
}

func TestPortfolio_ReadsOneSnapshot(t *testing.T) {
	f := newFixture(t, "1000", prices())
	ctx := context.Background()
	_, err := f.svc.Buy(ctx, f.user, "ACME", 10)
	require.NoError(t, err)

	store := &directReads{MemoryStore: f.store}
	svc := NewService(store, portfolio.NewEngine(prices()), nil)

	view, err := svc.Portfolio(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, store.n)
	assert.True(t, dec("1000").Equal(view.NetWorth), view.NetWorth.String())
}

func TestPortfolio_ConsistentWhileTrading(t *testing.T) {
	f := newFixture(t, "100000", prices())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = f.svc.Buy(ctx, f.user, "ACME", 1)
		}
	}()
	// prices are constant, so every snapshot is worth the starting cash
	for i := 0; i < 200; i++ {
		view, err := f.svc.Portfolio(ctx, f.user)
		require.NoError(t, err)
		require.True(t, dec("100000").Equal(view.NetWorth), view.NetWorth.String())
	}
	wg.Wait()
}

func TestHistory(t *testing.T) {
	f := newFixture(t, "1000", prices())
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, f.user, "ACME", 2)
	require.NoError(t, err)
	_, err = f.svc.Sell(ctx, f.user, "ACME", 1)
	require.NoError(t, err)

	txs, err := f.svc.History(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "buy", txs[0].Side())
	assert.Equal(t, "sell", txs[1].Side())
	assert.True(t, dec("20").Equal(txs[1].Amount()))
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, "10", prices())
	ctx := context.Background()

	cash, err := f.svc.Deposit(ctx, f.user, dec("5.25"))
	require.NoError(t, err)
	assert.True(t, dec("15.25").Equal(cash))

	for _, amount := range []string{"0", "-3", "0.00001", "1.23456"} {
		_, err = f.svc.Deposit(ctx, f.user, dec(amount))
		assert.ErrorIs(t, err, portfolio.ErrValidation)
	}
	assert.True(t, dec("15.25").Equal(f.cash(t)))
}
