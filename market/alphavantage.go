package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"stocks-simulator/models"
)

const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

type AlphaVantageConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerMinute is the provider quota; 0 disables local limiting.
	RequestsPerMinute int
	// BreakerFailures consecutive failures open the circuit for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// AlphaVantage is a Source backed by the Alpha Vantage query API.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	// company names by symbol
	names sync.Map
}

type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
	} `json:"bestMatches"`
	TimeSeriesDaily map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func NewAlphaVantage(cfg AlphaVantageConfig) *AlphaVantage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAlphaVantageURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	av := &AlphaVantage{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerMinute > 0 {
		av.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	failures := cfg.BreakerFailures
	av.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alphavantage",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return av
}

// Lookup fetches the latest price of symbol and its company name.
func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (models.Quote, bool, error) {
	res, err := a.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}})
	if err != nil {
		return models.Quote{}, false, err
	}
	if res.GlobalQuote.Price == "" {
		return models.Quote{}, false, nil
	}
	price, err := decimal.NewFromString(res.GlobalQuote.Price)
	if err != nil {
		return models.Quote{}, false, fmt.Errorf("%w: bad price %q for %s", ErrProvider, res.GlobalQuote.Price, symbol)
	}

	q := models.Quote{Symbol: res.GlobalQuote.Symbol, Name: symbol, Price: price}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if name := a.companyName(ctx, q.Symbol); name != "" {
		q.Name = name
	}
	return q, true, nil
}

// companyName returns the name of symbol, or "" when it is unknown or the
// request quota has no room left. The quote itself never waits for it.
func (a *AlphaVantage) companyName(ctx context.Context, symbol string) string {
	if name, ok := a.names.Load(symbol); ok {
		return name.(string)
	}
	if a.limiter != nil && !a.limiter.Allow() {
		return ""
	}

	res, err := a.call(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {symbol}})
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("company name lookup failed")
		return ""
	}
	for _, m := range res.BestMatches {
		if strings.EqualFold(m.Symbol, symbol) {
			a.names.Store(symbol, m.Name)
			return m.Name
		}
	}
	return ""
}

// Daily returns the daily closing prices of symbol, oldest first. An unknown
// symbol yields an empty slice.
func (a *AlphaVantage) Daily(ctx context.Context, symbol string) ([]models.StockPrice, error) {
	res, err := a.query(ctx, url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {symbol}})
	if err != nil {
		return nil, err
	}

	prices := make([]models.StockPrice, 0, len(res.TimeSeriesDaily))
	for day, bar := range res.TimeSeriesDaily {
		ts, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrProvider, day)
		}
		closing, err := decimal.NewFromString(bar.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: bad close %q on %s", ErrProvider, bar.Close, day)
		}
		prices = append(prices, models.StockPrice{Symbol: symbol, Price: closing, Timestamp: ts})
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Timestamp.Before(prices[j].Timestamp) })
	return prices, nil
}

func (a *AlphaVantage) query(ctx context.Context, params url.Values) (*alphaVantageResponse, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return a.call(ctx, params)
}

func (a *AlphaVantage) call(ctx context.Context, params url.Values) (*alphaVantageResponse, error) {
	out, err := a.breaker.Execute(func() (interface{}, error) {
		return a.do(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return out.(*alphaVantageResponse), nil
}

func (a *AlphaVantage) do(ctx context.Context, params url.Values) (*alphaVantageResponse, error) {
	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	log.Debug().Str("function", params.Get("function")).Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).Msg("alphavantage request")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", ErrProvider, resp.Status)
	}

	var result alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrProvider, err)
	}
	switch {
	case result.Note != "":
		return nil, fmt.Errorf("%w: %s", ErrThrottled, result.Note)
	case result.Information != "":
		return nil, fmt.Errorf("%w: %s", ErrThrottled, result.Information)
	}
	// "Error Message" is how the API reports an unknown symbol; the caller
	// sees an empty payload and treats it as not found.
	return &result, nil
}
