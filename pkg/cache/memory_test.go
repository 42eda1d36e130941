package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedDoc struct {
	Name   string    `json:"name"`
	Count  int       `json:"count"`
	Scores []float64 `json:"scores"`
	Ratio  *float64  `json:"ratio"`
	At     time.Time `json:"at"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ratio := 0.75
	in := cachedDoc{
		Name:   "portfolio",
		Count:  3,
		Scores: []float64{1.5, -0.25},
		Ratio:  &ratio,
		At:     time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mc.Set(ctx, "doc", in, time.Minute))

	var out cachedDoc
	require.NoError(t, mc.Get(ctx, "doc", &out))
	assert.Equal(t, in, out)

	// a second read into a fresh typed destination must behave the same
	var again cachedDoc
	require.NoError(t, mc.Get(ctx, "doc", &again))
	assert.Equal(t, in, again)
}

func TestMemoryCacheStringValue(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "s", "hello", time.Minute))

	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "hello", s)
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var out cachedDoc
	err := mc.Get(context.Background(), "absent", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiration(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}
