package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	pkgcache "TradePulse/pkg/cache"
	xhttp "TradePulse/pkg/http"
)

// Client fetches instrument series and market context from the market-data
// HTTP API. Requests are rate limited so a fanned-out run cannot overwhelm
// the source, and the shared context is cached because every worker in a run
// asks for the same window.
type Client struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	limiter *rate.Limiter
	cache   pkgcache.Service
	ttl     time.Duration
}

// Option configures Client.
type Option func(*Client)

// WithRateLimit caps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithCache caches market-context responses in the given cache service.
func WithCache(cache pkgcache.Service, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client = xhttp.NewClient(xhttp.WithTimeout(d)) }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		ttl:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type seriesResponse struct {
	Symbol string `json:"symbol"`
	Points []struct {
		Timestamp int64    `json:"ts"`
		Price     *float64 `json:"price"`
	} `json:"points"`
}

type contextResponse struct {
	Points []struct {
		Timestamp       int64    `json:"ts"`
		VolatilityIndex *float64 `json:"vix"`
		BenchmarkIndex  *float64 `json:"benchmark"`
	} `json:"points"`
}

// FetchSeries returns the hourly price series for one symbol.
func (c *Client) FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.InstrumentSeries, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.InstrumentSeries{}, fmt.Errorf("%w: %v", drepo.ErrSourceUnavailable, err)
	}

	var resp seriesResponse
	err := c.get(ctx, "/v1/series/"+symbol, from, to, &resp)
	if err != nil {
		return models.InstrumentSeries{}, err
	}

	series := models.InstrumentSeries{Symbol: symbol, Points: make([]models.PricePoint, 0, len(resp.Points))}
	for _, p := range resp.Points {
		series.Points = append(series.Points, models.PricePoint{
			Timestamp: time.Unix(p.Timestamp, 0).UTC(),
			Price:     p.Price,
		})
	}
	return series, nil
}

// FetchContext returns the volatility/benchmark series for the window.
// The result is cached: all workers of a run share one context.
func (c *Client) FetchContext(ctx context.Context, from, to time.Time) (models.MarketContext, error) {
	cacheKey := fmt.Sprintf("market_context:%d:%d", from.Unix(), to.Unix())
	if c.cache != nil {
		var cached models.MarketContext
		if err := c.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.MarketContext{}, fmt.Errorf("%w: %v", drepo.ErrSourceUnavailable, err)
	}

	var resp contextResponse
	if err := c.get(ctx, "/v1/context", from, to, &resp); err != nil {
		return models.MarketContext{}, err
	}

	mctx := models.MarketContext{Points: make([]models.ContextPoint, 0, len(resp.Points))}
	for _, p := range resp.Points {
		mctx.Points = append(mctx.Points, models.ContextPoint{
			Timestamp:       time.Unix(p.Timestamp, 0).UTC(),
			VolatilityIndex: p.VolatilityIndex,
			BenchmarkIndex:  p.BenchmarkIndex,
		})
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, mctx, c.ttl) // best-effort
	}
	return mctx, nil
}

func (c *Client) get(ctx context.Context, path string, from, to time.Time, dest interface{}) error {
	headers := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		headers["X-API-Key"] = c.apiKey
	}

	resp, err := c.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + path,
		Headers: headers,
		QueryParams: map[string][]string{
			"from": {strconv.FormatInt(from.Unix(), 10)},
			"to":   {strconv.FormatInt(to.Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", drepo.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", drepo.ErrSymbolNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d on %s", drepo.ErrSourceUnavailable, resp.StatusCode, path)
	}

	if err := xhttp.DecodeJSON(resp.Body, dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", drepo.ErrSourceUnavailable, path, err)
	}
	return nil
}

var _ drepo.MarketSource = (*Client)(nil)
