package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	drepo "TradePulse/internal/domain/repository"
	pkgcache "TradePulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSeries(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/series/AAPL", r.URL.Path)
		require.Equal(t, "1000", r.URL.Query().Get("from"))
		require.Equal(t, "2000", r.URL.Query().Get("to"))
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","points":[
			{"ts":1000,"price":101.5},
			{"ts":1060,"price":null},
			{"ts":1120,"price":99.25}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	series, err := c.FetchSeries(context.Background(), "AAPL", time.Unix(1000, 0), time.Unix(2000, 0))

	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "AAPL", series.Symbol)
	require.Len(t, series.Points, 3)
	require.NotNil(t, series.Points[0].Price)
	assert.InDelta(t, 101.5, *series.Points[0].Price, 1e-9)
	assert.Nil(t, series.Points[1].Price, "null price stays undefined")
	assert.Equal(t, time.Unix(1120, 0).UTC(), series.Points[2].Timestamp)
}

func TestFetchSeriesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.FetchSeries(context.Background(), "NOPE", time.Unix(0, 0), time.Unix(1, 0))

	require.ErrorIs(t, err, drepo.ErrSymbolNotFound)
}

func TestFetchSeriesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.FetchSeries(context.Background(), "AAPL", time.Unix(0, 0), time.Unix(1, 0))

	require.ErrorIs(t, err, drepo.ErrSourceUnavailable)
}

func TestFetchContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/context", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"points":[
			{"ts":1000,"vix":18.5,"benchmark":5000},
			{"ts":1060,"vix":null,"benchmark":5010}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	mctx, err := c.FetchContext(context.Background(), time.Unix(1000, 0), time.Unix(2000, 0))

	require.NoError(t, err)
	require.Len(t, mctx.Points, 2)
	require.NotNil(t, mctx.Points[0].VolatilityIndex)
	assert.InDelta(t, 18.5, *mctx.Points[0].VolatilityIndex, 1e-9)
	assert.Nil(t, mctx.Points[1].VolatilityIndex)
	require.NotNil(t, mctx.Points[1].BenchmarkIndex)
	assert.InDelta(t, 5010, *mctx.Points[1].BenchmarkIndex, 1e-9)
}

func TestFetchContextCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"points":[
			{"ts":1000,"vix":18.5,"benchmark":5000},
			{"ts":1060,"vix":null,"benchmark":5010}
		]}`))
	}))
	defer srv.Close()

	mem := pkgcache.NewMemoryCache()
	defer mem.Close()
	c := New(srv.URL, "", WithCache(mem, time.Minute))

	first, err := c.FetchContext(context.Background(), time.Unix(1000, 0), time.Unix(2000, 0))
	require.NoError(t, err)

	// same window again: served from cache, identical down to the nil vix
	second, err := c.FetchContext(context.Background(), time.Unix(1000, 0), time.Unix(2000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "second fetch of the window must not reach the source")
	assert.Equal(t, first.Points, second.Points)

	// a different window is its own cache entry
	_, err = c.FetchContext(context.Background(), time.Unix(3000, 0), time.Unix(4000, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetchSeriesUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", WithTimeout(200*time.Millisecond))

	_, err := c.FetchSeries(context.Background(), "AAPL", time.Unix(0, 0), time.Unix(1, 0))

	require.ErrorIs(t, err, drepo.ErrSourceUnavailable)
}

func TestRateLimiterThrottles(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"X","points":[]}`))
	}))
	defer srv.Close()

	// 1 request immediately, further ones at 20/s
	c := New(srv.URL, "", WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchSeries(context.Background(), "X", time.Unix(0, 0), time.Unix(1, 0))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), hits.Load())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond,
		"burst of 1 at 20 rps must space the second and third request")
}
