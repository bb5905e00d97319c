// Package marketdata fetches real-time quotes from a configurable endpoint.
// Quotes are cached under the price class (short TTL) through the shared
// cache manager; the endpoint is rate-limited.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hybrid_valuation/pkg/core/cache"
)

// Quote is a point-in-time market snapshot for a ticker.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	MarketState   string    `json:"market_state"`
	AsOf          time.Time `json:"as_of"`
}

// Client fetches quotes through the cache.
type Client struct {
	http    *resty.Client
	cache   *cache.Manager
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a quote client for the given base URL.
func New(baseURL string, cacheManager *cache.Manager, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:    httpClient,
		cache:   cacheManager,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  logger.With().Str("component", "marketdata").Logger(),
	}
}

// GetQuote returns the current quote for a ticker, serving from the price
// cache within its TTL.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	key := cache.PriceKey(ticker)

	payload, err := c.cache.GetOrCompute(ctx, key, cache.StagePrice, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(payload, &quote); err != nil {
		return nil, fmt.Errorf("corrupt quote payload: %w", err)
	}
	return &quote, nil
}

func (c *Client) fetch(ctx context.Context, ticker string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote fetch cancelled: %w", err)
	}

	var quote Quote
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetResult(&quote).
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("quote fetch failed for %s: %w", ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote endpoint returned %s for %s", resp.Status(), ticker)
	}

	quote.Ticker = ticker
	quote.AsOf = time.Now().UTC()

	c.logger.Debug().Str("ticker", ticker).Float64("price", quote.Price).Msg("quote fetched")
	return json.Marshal(&quote)
}
