package usecase

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestWorker(t *testing.T, source *fakeSource, store *fakeStore, reporter *fakeReporter, metrics *fakeMetrics) *SymbolWorker {
	t.Helper()
	return NewSymbolWorker(source, store, reporter, metrics,
		signal.NewEngine(signal.DefaultParams()), testLogger(t))
}

func TestWorkerProcessPersistsAndReports(t *testing.T) {
	prices := []float64{100, 101, 99, 100}
	source := &fakeSource{
		series: hourlySeries("AAPL", testBase, prices),
		mctx:   flatContext(testBase, len(prices), 15, 5000),
	}
	store := newFakeStore()
	reporter := &fakeReporter{}
	metrics := newFakeMetrics()
	w := newTestWorker(t, source, store, reporter, metrics)

	o := w.Process(context.Background(), "AAPL", testBase, testBase.Add(4*time.Hour))

	require.False(t, o.Failed(), "outcome error: %s", o.Err)
	assert.Equal(t, "AAPL", o.Symbol)
	assert.Equal(t, 4, o.Records)

	// flat benchmark at vol 15: hold, buy, sell, buy
	assert.Equal(t, models.SignalCounts{Buy: 2, Sell: 1, Hold: 1}, o.Signals)
	// next-move grading: the buy into -1.98% and the sell into +1.01% are bad
	assert.Equal(t, models.QualityCounts{Good: 0, Bad: 2, Neutral: 2}, o.Quality)
	assert.Zero(t, o.SuccessRate)

	require.Len(t, store.tables["AAPL"], 4)
	require.Len(t, reporter.outcomes, 1)
	assert.Equal(t, o.Symbol, reporter.outcomes[0].Symbol)
	assert.Equal(t, 1, metrics.outcomes["AAPL:success"])
}

func TestWorkerProcessSourceFailure(t *testing.T) {
	source := &fakeSource{seriesErr: drepo.ErrSourceUnavailable}
	store := newFakeStore()
	reporter := &fakeReporter{}
	metrics := newFakeMetrics()
	w := newTestWorker(t, source, store, reporter, metrics)

	o := w.Process(context.Background(), "MSFT", testBase, testBase.Add(time.Hour))

	require.True(t, o.Failed())
	assert.Equal(t, drepo.KindDataUnavailable, o.ErrKind)
	assert.Empty(t, store.tables, "failed run must not persist")
	require.Len(t, reporter.outcomes, 1, "failures are reported too")
	assert.Equal(t, 1, metrics.outcomes["MSFT:failure"])
	assert.Equal(t, 1, metrics.errors[drepo.KindDataUnavailable])
}

func TestWorkerProcessRejectsUnorderedSeries(t *testing.T) {
	series := hourlySeries("TSLA", testBase, []float64{10, 11, 12})
	series.Points[2].Timestamp = series.Points[0].Timestamp // duplicate ts
	source := &fakeSource{series: series, mctx: flatContext(testBase, 3, 15, 5000)}
	store := newFakeStore()
	w := newTestWorker(t, source, store, &fakeReporter{}, newFakeMetrics())

	o := w.Process(context.Background(), "TSLA", testBase, testBase.Add(3*time.Hour))

	require.True(t, o.Failed())
	assert.Empty(t, store.tables)
}

func TestWorkerProcessStoreFailure(t *testing.T) {
	prices := []float64{100, 101}
	source := &fakeSource{
		series: hourlySeries("NVDA", testBase, prices),
		mctx:   flatContext(testBase, len(prices), 15, 5000),
	}
	store := newFakeStore()
	store.saveErr = drepo.ErrSchemaMismatch
	metrics := newFakeMetrics()
	w := newTestWorker(t, source, store, &fakeReporter{}, metrics)

	o := w.Process(context.Background(), "NVDA", testBase, testBase.Add(2*time.Hour))

	require.True(t, o.Failed())
	assert.Equal(t, drepo.KindSchemaMismatch, o.ErrKind)
	assert.Equal(t, 1, metrics.outcomes["NVDA:failure"])
}

func TestWorkerOutcomeAverages(t *testing.T) {
	// benchmark moves so beta is defined from the second change on
	series := hourlySeries("AMZN", testBase, []float64{100, 102, 103, 101})
	mctx := models.MarketContext{}
	bench := []float64{5000, 5050, 5060, 5040}
	for i := range bench {
		mctx.Points = append(mctx.Points, models.ContextPoint{
			Timestamp:       testBase.Add(time.Duration(i) * time.Hour),
			VolatilityIndex: models.Float(20),
			BenchmarkIndex:  models.Float(bench[i]),
		})
	}
	source := &fakeSource{series: series, mctx: mctx}
	w := newTestWorker(t, source, newFakeStore(), &fakeReporter{}, newFakeMetrics())

	o := w.Process(context.Background(), "AMZN", testBase, testBase.Add(4*time.Hour))

	require.False(t, o.Failed())
	require.NotNil(t, o.AvgVolIndex)
	assert.InDelta(t, 20, *o.AvgVolIndex, 1e-9)
	require.NotNil(t, o.AvgBeta, "benchmark moved, beta must be defined")
}

func TestWorkerReprocessSupersedes(t *testing.T) {
	prices := []float64{100, 101, 99, 100}
	source := &fakeSource{
		series: hourlySeries("AAPL", testBase, prices),
		mctx:   flatContext(testBase, len(prices), 15, 5000),
	}
	store := newFakeStore()
	w := newTestWorker(t, source, store, &fakeReporter{}, newFakeMetrics())

	first := w.Process(context.Background(), "AAPL", testBase, testBase.Add(4*time.Hour))
	second := w.Process(context.Background(), "AAPL", testBase, testBase.Add(4*time.Hour))

	require.False(t, first.Failed())
	require.False(t, second.Failed())
	assert.Equal(t, first.Signals, second.Signals, "same window must reproduce the same table")
	assert.Len(t, store.tables["AAPL"], 4, "reprocessing replaces, not appends")
}
