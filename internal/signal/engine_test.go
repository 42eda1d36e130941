package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradePulse/internal/domain/models"
)

var t0 = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

func hourlySeries(symbol string, prices []*float64) models.InstrumentSeries {
	pts := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = models.PricePoint{Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return models.InstrumentSeries{Symbol: symbol, Points: pts}
}

func flatContext(n int, vol, bench float64) models.MarketContext {
	pts := make([]models.ContextPoint, n)
	for i := range pts {
		pts[i] = models.ContextPoint{
			Timestamp:       t0.Add(time.Duration(i) * time.Hour),
			VolatilityIndex: models.Float(vol),
			BenchmarkIndex:  models.Float(bench),
		}
	}
	return models.MarketContext{Points: pts}
}

func prices(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = models.Float(v)
	}
	return out
}

func TestEnrichScenarioFlatBenchmark(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("AAPL", prices(100, 101, 99, 100))
	ctx := flatContext(4, 15.0, 5000)

	recs := eng.Enrich(series, ctx)
	require.Len(t, recs, 4)

	// price_change_pct: [undef, +1.0, -1.9802, +1.0101]
	assert.Nil(t, recs[0].PriceChangePct)
	require.NotNil(t, recs[1].PriceChangePct)
	assert.InDelta(t, 1.0, *recs[1].PriceChangePct, 1e-9)
	require.NotNil(t, recs[2].PriceChangePct)
	assert.InDelta(t, -1.980198, *recs[2].PriceChangePct, 1e-5)
	require.NotNil(t, recs[3].PriceChangePct)
	assert.InDelta(t, 1.010101, *recs[3].PriceChangePct, 1e-5)

	// thresholds at reference vol are exactly ±0.5
	for _, r := range recs {
		require.NotNil(t, r.BuyThreshold)
		assert.InDelta(t, 0.5, *r.BuyThreshold, 1e-9)
		assert.InDelta(t, -0.5, *r.SellThreshold, 1e-9)
	}

	assert.Equal(t, models.SignalHold, recs[0].Signal)
	assert.Equal(t, models.SignalBuy, recs[1].Signal)
	assert.Equal(t, models.SignalSell, recs[2].Signal)
	assert.Equal(t, models.SignalBuy, recs[3].Signal)

	// benchmark is flat, so beta is undefined at every point
	for _, r := range recs {
		assert.Nil(t, r.Beta)
	}

	assert.Equal(t, models.QualityNeutral, recs[0].TradeQuality)
	assert.Equal(t, models.QualityBad, recs[1].TradeQuality, "buy before a drop")
	assert.Equal(t, models.QualityBad, recs[2].TradeQuality, "sell before a rise")
	assert.Equal(t, models.QualityNeutral, recs[3].TradeQuality, "last timestamp has no next period")
}

func TestEnrichBetaClamped(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("NVDA", prices(100, 110))
	ctx := models.MarketContext{Points: []models.ContextPoint{
		{Timestamp: t0, VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5000)},
		{Timestamp: t0.Add(time.Hour), VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5001)},
	}}

	recs := eng.Enrich(series, ctx)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[1].Beta)
	// +10% stock vs +0.02% benchmark blows past the clamp
	assert.InDelta(t, 3.0, *recs[1].Beta, 1e-9)
}

func TestEnrichBetaRange(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("TSLA", prices(100, 97, 104, 104.1, 99, 120))
	ctx := models.MarketContext{Points: []models.ContextPoint{
		{Timestamp: t0, VolatilityIndex: models.Float(18), BenchmarkIndex: models.Float(5000)},
		{Timestamp: t0.Add(1 * time.Hour), VolatilityIndex: models.Float(19), BenchmarkIndex: models.Float(4990)},
		{Timestamp: t0.Add(2 * time.Hour), VolatilityIndex: models.Float(17), BenchmarkIndex: models.Float(5020)},
		{Timestamp: t0.Add(3 * time.Hour), VolatilityIndex: models.Float(16), BenchmarkIndex: models.Float(5020)},
		{Timestamp: t0.Add(4 * time.Hour), VolatilityIndex: models.Float(22), BenchmarkIndex: models.Float(4900)},
		{Timestamp: t0.Add(5 * time.Hour), VolatilityIndex: models.Float(21), BenchmarkIndex: models.Float(4905)},
	}}

	for _, r := range eng.Enrich(series, ctx) {
		if r.Beta == nil {
			continue
		}
		assert.GreaterOrEqual(t, *r.Beta, -3.0)
		assert.LessOrEqual(t, *r.Beta, 3.0)
	}
}

func TestEnrichThresholdsScaleWithVol(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("MSFT", prices(100, 100, 100))
	ctx := models.MarketContext{Points: []models.ContextPoint{
		{Timestamp: t0, VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5000)},
		{Timestamp: t0.Add(1 * time.Hour), VolatilityIndex: models.Float(30), BenchmarkIndex: models.Float(5000)},
		{Timestamp: t0.Add(2 * time.Hour), VolatilityIndex: models.Float(45), BenchmarkIndex: models.Float(5000)},
	}}

	recs := eng.Enrich(series, ctx)
	require.Len(t, recs, 3)
	want := []float64{0.5, 1.0, 1.5}
	for i, r := range recs {
		require.NotNil(t, r.BuyThreshold)
		require.NotNil(t, r.SellThreshold)
		assert.InDelta(t, want[i], *r.BuyThreshold, 1e-9)
		assert.InDelta(t, -want[i], *r.SellThreshold, 1e-9)
	}
}

func TestEnrichShortSeries(t *testing.T) {
	eng := NewEngine(Params{})

	assert.Empty(t, eng.Enrich(hourlySeries("A", nil), models.MarketContext{}))

	recs := eng.Enrich(hourlySeries("A", prices(100)), models.MarketContext{})
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].PriceChangePct)
	assert.Nil(t, recs[0].Beta)
	assert.Nil(t, recs[0].BuyThreshold)
	assert.Equal(t, models.SignalHold, recs[0].Signal)
	assert.Equal(t, models.QualityNeutral, recs[0].TradeQuality)
}

func TestEnrichNonFinitePricePropagatesAsMissing(t *testing.T) {
	eng := NewEngine(Params{})
	ps := prices(100, 0, 102, 103)
	ps[1] = models.Float(math.NaN())
	series := hourlySeries("GME", ps)
	ctx := flatContext(4, 15, 5000)

	recs := eng.Enrich(series, ctx)
	require.Len(t, recs, 4)
	assert.Nil(t, recs[1].Price)
	assert.Nil(t, recs[1].PriceChangePct)
	assert.Nil(t, recs[2].PriceChangePct, "change against a missing predecessor is undefined")
	assert.NotNil(t, recs[3].PriceChangePct)
	assert.Equal(t, models.SignalHold, recs[1].Signal)
	assert.Equal(t, models.SignalHold, recs[2].Signal)
}

func TestEnrichMissingContextLeavesDerivedUndefined(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("AMD", prices(100, 105))
	// context covers only the first timestamp
	ctx := models.MarketContext{Points: []models.ContextPoint{
		{Timestamp: t0, VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5000)},
	}}

	recs := eng.Enrich(series, ctx)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[1].VolatilityIndex)
	assert.Nil(t, recs[1].BuyThreshold)
	assert.Nil(t, recs[1].Beta)
	// +5% move, but no threshold to clear
	assert.Equal(t, models.SignalHold, recs[1].Signal)
}

func TestEnrichDeterministic(t *testing.T) {
	eng := NewEngine(Params{})
	series := hourlySeries("GOOG", prices(100, 101.5, 100.2, 103, 102.8))
	ctx := flatContext(5, 20, 5000)

	first := eng.Enrich(series, ctx)
	second := eng.Enrich(series, ctx)
	assert.Equal(t, first, second)
}

func TestCheckSeries(t *testing.T) {
	ok := hourlySeries("X", prices(1, 2, 3))
	require.NoError(t, CheckSeries(ok))

	dup := hourlySeries("X", prices(1, 2))
	dup.Points[1].Timestamp = dup.Points[0].Timestamp
	assert.Error(t, CheckSeries(dup))
}

func TestInspect(t *testing.T) {
	eng := NewEngine(Params{})
	ps := prices(
		100, 100.1, 99.9, 100.2, 100, 100.1, 99.8, 100,
		100.1, 99.9, 100, 100.2, 100.1, 100, 99.9, 180,
	)
	ps[3] = nil
	series := hourlySeries("SPOT", ps)
	ctx := flatContext(15, 15, 5000) // one context point short

	rep := eng.Inspect(series, ctx)
	assert.Equal(t, 1, rep.MissingPrices)
	assert.Equal(t, 1, rep.MissingContext)
	assert.Equal(t, 1, rep.OutlierReturns, "the jump to 180 should be flagged")
}
