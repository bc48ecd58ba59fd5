package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*AlphaVantage, *int32) {
	t.Helper()
	return newLimitedTestProvider(t, 0, handler)
}

func newLimitedTestProvider(t *testing.T, perMinute int, handler http.HandlerFunc) (*AlphaVantage, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewAlphaVantage(AlphaVantageConfig{
		BaseURL:           srv.URL,
		APIKey:            "demo",
		BreakerFailures:   2,
		RequestsPerMinute: perMinute,
	}), &hits
}

func TestAlphaVantage_Lookup(t *testing.T) {
	av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"123.4500"}}`))
		case "SYMBOL_SEARCH":
			w.Write([]byte(`{"bestMatches":[{"1. symbol":"IBMX","2. name":"Other"},{"1. symbol":"IBM","2. name":"International Business Machines"}]}`))
		}
	})

	q, found, err := av.Lookup(context.Background(), "IBM")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "IBM", q.Symbol)
	assert.Equal(t, "International Business Machines", q.Name)
	assert.Equal(t, "123.45", q.Price.String())
}

func TestAlphaVantage_LookupNameFallsBackToSymbol(t *testing.T) {
	av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") == "SYMBOL_SEARCH" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"10"}}`))
	})

	q, found, err := av.Lookup(context.Background(), "IBM")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "IBM", q.Name)
}

func TestAlphaVantage_LookupUnknownSymbol(t *testing.T) {
	av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{}}`))
	})

	_, found, err := av.Lookup(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAlphaVantage_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want error
	}{
		{"rate limit note", `{"Note":"Thank you for using Alpha Vantage!"}`, http.StatusOK, ErrThrottled},
		{"information", `{"Information":"premium endpoint"}`, http.StatusOK, ErrThrottled},
		{"server error", ``, http.StatusBadGateway, ErrProvider},
		{"garbage", `<html>`, http.StatusOK, ErrProvider},
		{"bad price", `{"Global Quote":{"05. price":"n/a"}}`, http.StatusOK, ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			})
			_, found, err := av.Lookup(context.Background(), "IBM")
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, found)
		})
	}
}

func TestAlphaVantage_BreakerOpens(t *testing.T) {
	av, hits := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := av.Lookup(ctx, "IBM")
		require.ErrorIs(t, err, ErrProvider)
	}
	_, _, err := av.Lookup(ctx, "IBM")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))
}

func TestAlphaVantage_Daily(t *testing.T) {
	av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Time Series (Daily)":{
			"2024-03-05":{"4. close":"12.00"},
			"2024-03-01":{"4. close":"10.00"},
			"2024-03-04":{"4. close":"11.50"}}}`))
	})

	prices, err := av.Daily(context.Background(), "IBM")
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, "2024-03-01", prices[0].Timestamp.Format("2006-01-02"))
	assert.Equal(t, "11.5", prices[1].Price.String())
	assert.Equal(t, "2024-03-05", prices[2].Timestamp.Format("2006-01-02"))
	for _, p := range prices {
		assert.Equal(t, "IBM", p.Symbol)
	}
}

func TestAlphaVantage_DailyUnknownSymbol(t *testing.T) {
	av, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message":"Invalid API call."}`))
	})

	prices, err := av.Daily(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func quoteAndNames(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("function") {
	case "GLOBAL_QUOTE":
		w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"123.45"}}`))
	case "SYMBOL_SEARCH":
		w.Write([]byte(`{"bestMatches":[{"1. symbol":"IBM","2. name":"International Business Machines"}]}`))
	}
}

func TestAlphaVantage_LookupDoesNotWaitForName(t *testing.T) {
	av, hits := newLimitedTestProvider(t, 5, quoteAndNames)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	q, found, err := av.Lookup(ctx, "IBM")
	require.NoError(t, err)
	require.True(t, found)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "IBM", q.Name)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestAlphaVantage_NamesAreRemembered(t *testing.T) {
	av, hits := newTestProvider(t, quoteAndNames)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		q, _, err := av.Lookup(ctx, "IBM")
		require.NoError(t, err)
		assert.Equal(t, "International Business Machines", q.Name)
	}
	// two quotes, one name search
	assert.EqualValues(t, 3, atomic.LoadInt32(hits))
}
