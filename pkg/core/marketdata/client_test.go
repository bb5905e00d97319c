package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid_valuation/pkg/core/cache"
)

func testCache(t *testing.T, priceTTL time.Duration) *cache.Manager {
	t.Helper()
	store, err := cache.OpenStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	m := cache.NewManager(store, cache.TTLs{
		Extraction: time.Hour,
		Valuation:  time.Hour,
		Analysis:   time.Hour,
		Price:      priceTTL,
	}, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestGetQuoteServesAndCaches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 150.25, "change": 1.5, "change_percent": 0.01, "market_state": "REGULAR"}`))
	}))
	defer server.Close()

	c := New(server.URL, testCache(t, 30*time.Second), zerolog.Nop())

	quote, err := c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, 150.25, quote.Price)
	assert.False(t, quote.AsOf.IsZero())

	// Second call inside the price TTL never reaches the endpoint.
	_, err = c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetQuoteExpiresWithPriceTTL(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 1.0}`))
	}))
	defer server.Close()

	c := New(server.URL, testCache(t, 20*time.Millisecond), zerolog.Nop())

	_, err := c.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = c.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestGetQuoteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	c := New(server.URL, testCache(t, time.Second), zerolog.Nop())

	_, err := c.GetQuote(context.Background(), "NOPE")
	require.Error(t, err)
}
