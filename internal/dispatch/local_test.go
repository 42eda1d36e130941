package dispatch

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/signal"
	"TradePulse/internal/usecase"
	applogger "TradePulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// blockingSource serves a tiny series; it can be gated so workers stay busy.
type blockingSource struct {
	gate chan struct{}
}

func (s *blockingSource) FetchSeries(ctx context.Context, symbol string, _, _ time.Time) (models.InstrumentSeries, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return models.InstrumentSeries{}, ctx.Err()
		}
	}
	return models.InstrumentSeries{
		Symbol: symbol,
		Points: []models.PricePoint{
			{Timestamp: testBase, Price: models.Float(100)},
			{Timestamp: testBase.Add(time.Hour), Price: models.Float(101)},
		},
	}, nil
}

func (s *blockingSource) FetchContext(context.Context, time.Time, time.Time) (models.MarketContext, error) {
	return models.MarketContext{Points: []models.ContextPoint{
		{Timestamp: testBase, VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5000)},
		{Timestamp: testBase.Add(time.Hour), VolatilityIndex: models.Float(15), BenchmarkIndex: models.Float(5000)},
	}}, nil
}

type nopStore struct{}

func (nopStore) Init(context.Context) error { return nil }
func (nopStore) SaveTable(context.Context, string, []models.EnrichedRecord) error {
	return nil
}
func (nopStore) LoadTable(context.Context, string) ([]models.EnrichedRecord, error) {
	return nil, drepo.ErrTableNotFound
}
func (nopStore) Health(context.Context) error { return nil }
func (nopStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordDispatch(string)            {}
func (nopMetrics) RecordWorkerOutcome(string, string) {}
func (nopMetrics) RecordSignal(string, string)      {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

func newLocalForTest(t *testing.T, source *blockingSource, workers, buffer int) *LocalDispatcher {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	worker := usecase.NewSymbolWorker(source, nopStore{}, nil, nopMetrics{},
		signal.NewEngine(signal.DefaultParams()), l)
	d := NewLocalDispatcher(worker, l, workers, buffer)
	t.Cleanup(d.Stop)
	return d
}

func pollUntilTerminal(t *testing.T, d *LocalDispatcher, h drepo.Handle) drepo.DispatchState {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		state, err := d.Poll(context.Background(), h)
		require.NoError(t, err)
		if state != drepo.StatePending {
			return state
		}
		select {
		case <-deadline:
			t.Fatalf("handle %s never left pending", h)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLocalDispatchCompletes(t *testing.T) {
	d := newLocalForTest(t, &blockingSource{}, 2, 8)

	params := drepo.DispatchParams{RunID: "run-1", From: testBase, To: testBase.Add(2 * time.Hour)}
	h, err := d.Dispatch(context.Background(), "AAPL", params, time.Second)

	require.NoError(t, err)
	assert.Equal(t, drepo.StateSucceeded, pollUntilTerminal(t, d, h))
}

func TestLocalPollUnknownHandle(t *testing.T) {
	d := newLocalForTest(t, &blockingSource{}, 1, 4)

	_, err := d.Poll(context.Background(), "missing")

	require.ErrorIs(t, err, drepo.ErrHandleNotFound)
}

func TestLocalDispatchAckTimeout(t *testing.T) {
	gate := make(chan struct{})
	d := newLocalForTest(t, &blockingSource{gate: gate}, 1, 1)
	defer close(gate)

	params := drepo.DispatchParams{RunID: "run-2", From: testBase, To: testBase.Add(time.Hour)}

	// first fills the worker, second fills the buffer
	_, err := d.Dispatch(context.Background(), "A", params, time.Second)
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), "B", params, time.Second)
	require.NoError(t, err)

	// third has nowhere to go within the timeout
	h, err := d.Dispatch(context.Background(), "C", params, 50*time.Millisecond)
	require.ErrorIs(t, err, drepo.ErrDispatchFailed)
	assert.Empty(t, h)
}

func TestLocalDispatchAfterStop(t *testing.T) {
	d := newLocalForTest(t, &blockingSource{}, 1, 4)
	d.Stop()

	params := drepo.DispatchParams{RunID: "run-3", From: testBase, To: testBase.Add(time.Hour)}
	_, err := d.Dispatch(context.Background(), "AAPL", params, time.Second)

	require.ErrorIs(t, err, drepo.ErrDispatchFailed)
}

func TestLocalHandlesAreUnique(t *testing.T) {
	d := newLocalForTest(t, &blockingSource{}, 2, 8)

	params := drepo.DispatchParams{RunID: "run-4", From: testBase, To: testBase.Add(time.Hour)}
	seen := make(map[drepo.Handle]bool)
	for i := 0; i < 5; i++ {
		h, err := d.Dispatch(context.Background(), "AAPL", params, time.Second)
		require.NoError(t, err)
		require.False(t, seen[h], "handle %s issued twice", h)
		seen[h] = true
	}
}
