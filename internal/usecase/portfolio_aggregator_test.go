package usecase

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(t *testing.T, store drepo.ResultStore, cfg AggregatorConfig) *PortfolioAggregator {
	t.Helper()
	return NewPortfolioAggregator(store, testLogger(t), cfg)
}

// tradeRecord builds a graded trade at base+offset hours.
func tradeRecord(symbol string, offset int, sig models.Signal, next float64, q models.TradeQuality) models.EnrichedRecord {
	return models.EnrichedRecord{
		Symbol:             symbol,
		Timestamp:          testBase.Add(time.Duration(offset) * time.Hour),
		Signal:             sig,
		NextPriceChangePct: models.Float(next),
		TradeQuality:       q,
	}
}

func holdRecord(symbol string, offset int) models.EnrichedRecord {
	return models.EnrichedRecord{
		Symbol:       symbol,
		Timestamp:    testBase.Add(time.Duration(offset) * time.Hour),
		Signal:       models.SignalHold,
		TradeQuality: models.QualityNeutral,
	}
}

func TestAggregatePooledWinRate(t *testing.T) {
	store := newFakeStore()
	// AAPL: 3 good, 1 bad; MSFT: nothing graded. Pooled rate is 3/4, not
	// the mean of per-symbol rates.
	store.tables["AAPL"] = []models.EnrichedRecord{
		tradeRecord("AAPL", 0, models.SignalBuy, 1.0, models.QualityGood),
		tradeRecord("AAPL", 1, models.SignalBuy, 0.5, models.QualityGood),
		tradeRecord("AAPL", 2, models.SignalSell, -0.4, models.QualityGood),
		tradeRecord("AAPL", 3, models.SignalBuy, -0.8, models.QualityBad),
	}
	store.tables["MSFT"] = []models.EnrichedRecord{
		holdRecord("MSFT", 0),
		holdRecord("MSFT", 1),
	}
	a := newTestAggregator(t, store, AggregatorConfig{})

	summary, err := a.Aggregate(context.Background(), []string{"AAPL", "MSFT"})

	require.NoError(t, err)
	assert.InDelta(t, 0.75, summary.WinRate, 1e-9)
	assert.Equal(t, 6, summary.TotalRecords)
	assert.Equal(t, 4, summary.TotalTrades)
	assert.Equal(t, models.QualityCounts{Good: 3, Bad: 1, Neutral: 2}, summary.Quality)
	assert.Empty(t, summary.Gaps)

	// sell trades contribute the negated next move
	assert.InDelta(t, 1.0+0.5+0.4-0.8, summary.TotalPnLProxy, 1e-9)
}

func TestAggregateRecordsGaps(t *testing.T) {
	store := newFakeStore()
	store.tables["AAPL"] = []models.EnrichedRecord{
		tradeRecord("AAPL", 0, models.SignalBuy, 1.0, models.QualityGood),
	}
	store.loadErr["GONE"] = drepo.ErrTableNotFound
	store.loadErr["CORRUPT"] = drepo.ErrSchemaMismatch
	a := newTestAggregator(t, store, AggregatorConfig{})

	summary, err := a.Aggregate(context.Background(), []string{"AAPL", "GONE", "CORRUPT"})

	require.NoError(t, err, "gaps must not fail the aggregation")
	require.Len(t, summary.Gaps, 2)
	reasons := map[string]string{}
	for _, g := range summary.Gaps {
		reasons[g.Symbol] = g.Reason
	}
	assert.Equal(t, drepo.KindStorage, reasons["GONE"])
	assert.Equal(t, drepo.KindSchemaMismatch, reasons["CORRUPT"])
	require.Len(t, summary.Symbols, 1)
}

func TestAggregateStoreFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.loadErr["AAPL"] = drepo.ErrSourceUnavailable // not a gap-class error
	a := newTestAggregator(t, store, AggregatorConfig{})

	_, err := a.Aggregate(context.Background(), []string{"AAPL"})

	require.Error(t, err)
}

func TestAggregateEmptyUniverse(t *testing.T) {
	a := newTestAggregator(t, newFakeStore(), AggregatorConfig{})

	_, err := a.Aggregate(context.Background(), nil)

	require.ErrorIs(t, err, drepo.ErrEmptyUniverse)
}

func TestAggregateSharpeUndefinedOnZeroVariance(t *testing.T) {
	store := newFakeStore()
	// two trades with identical return proxies: std is zero, sharpe is N/A
	store.tables["AAPL"] = []models.EnrichedRecord{
		tradeRecord("AAPL", 0, models.SignalBuy, 0.5, models.QualityGood),
		tradeRecord("AAPL", 1, models.SignalBuy, 0.5, models.QualityGood),
	}
	a := newTestAggregator(t, store, AggregatorConfig{})

	summary, err := a.Aggregate(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	assert.Nil(t, summary.SharpeRatio)
	assert.InDelta(t, 1.0, summary.WinRate, 1e-9)
}

func TestAggregateSharpeDefined(t *testing.T) {
	store := newFakeStore()
	store.tables["AAPL"] = []models.EnrichedRecord{
		tradeRecord("AAPL", 0, models.SignalBuy, 1.0, models.QualityGood),
		tradeRecord("AAPL", 1, models.SignalBuy, -0.5, models.QualityBad),
		tradeRecord("AAPL", 2, models.SignalBuy, 0.7, models.QualityGood),
	}
	a := newTestAggregator(t, store, AggregatorConfig{PeriodsPerYear: 252})

	summary, err := a.Aggregate(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	require.NotNil(t, summary.SharpeRatio)
	assert.Positive(t, *summary.SharpeRatio)
}

func TestAggregateTimeBuckets(t *testing.T) {
	store := newFakeStore()
	store.tables["AAPL"] = []models.EnrichedRecord{
		tradeRecord("AAPL", 0, models.SignalBuy, 1.0, models.QualityGood),
		tradeRecord("AAPL", 1, models.SignalBuy, -0.5, models.QualityBad),
		tradeRecord("AAPL", 30, models.SignalSell, -0.3, models.QualityGood),
	}
	a := newTestAggregator(t, store, AggregatorConfig{Bucket: 24 * time.Hour})

	summary, err := a.Aggregate(context.Background(), []string{"AAPL"})

	require.NoError(t, err)
	require.Len(t, summary.Performance, 2)
	assert.True(t, summary.Performance[0].Start.Before(summary.Performance[1].Start))
	assert.Equal(t, 2, summary.Performance[0].Trades)
	assert.Equal(t, 1, summary.Performance[1].Trades)
	assert.Equal(t, 1, summary.Performance[1].Good)
	assert.InDelta(t, 0.3, summary.Performance[1].ReturnProxy, 1e-9)
}

func TestAggregateDeterministicOrdering(t *testing.T) {
	store := newFakeStore()
	store.tables["ZZZ"] = []models.EnrichedRecord{
		tradeRecord("ZZZ", 0, models.SignalBuy, 1.0, models.QualityGood),
	}
	store.tables["AAA"] = []models.EnrichedRecord{
		tradeRecord("AAA", 0, models.SignalBuy, 1.0, models.QualityGood),
	}
	a := newTestAggregator(t, store, AggregatorConfig{})

	first, err := a.Aggregate(context.Background(), []string{"ZZZ", "AAA"})
	require.NoError(t, err)
	second, err := a.Aggregate(context.Background(), []string{"AAA", "ZZZ"})
	require.NoError(t, err)

	require.Len(t, first.Symbols, 2)
	// equal win rates tie-break alphabetically, independent of request order
	assert.Equal(t, "AAA", first.Symbols[0].Symbol)
	assert.Equal(t, first.Symbols[0].Symbol, second.Symbols[0].Symbol)
	assert.Equal(t, first.WinRate, second.WinRate)
}
