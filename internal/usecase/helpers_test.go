package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type fakeSource struct {
	series    models.InstrumentSeries
	mctx      models.MarketContext
	seriesErr error
	ctxErr    error
}

func (f *fakeSource) FetchSeries(_ context.Context, symbol string, _, _ time.Time) (models.InstrumentSeries, error) {
	if f.seriesErr != nil {
		return models.InstrumentSeries{}, f.seriesErr
	}
	s := f.series
	s.Symbol = symbol
	return s, nil
}

func (f *fakeSource) FetchContext(_ context.Context, _, _ time.Time) (models.MarketContext, error) {
	if f.ctxErr != nil {
		return models.MarketContext{}, f.ctxErr
	}
	return f.mctx, nil
}

type fakeStore struct {
	mu      sync.Mutex
	tables  map[string][]models.EnrichedRecord
	saveErr error
	loadErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:  make(map[string][]models.EnrichedRecord),
		loadErr: make(map[string]error),
	}
}

func (f *fakeStore) Init(context.Context) error { return nil }

func (f *fakeStore) SaveTable(_ context.Context, symbol string, records []models.EnrichedRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[symbol] = records
	return nil
}

func (f *fakeStore) LoadTable(_ context.Context, symbol string) ([]models.EnrichedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.loadErr[symbol]; ok {
		return nil, err
	}
	records, ok := f.tables[symbol]
	if !ok {
		return nil, drepo.ErrTableNotFound
	}
	return records, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

type fakeReporter struct {
	mu       sync.Mutex
	outcomes []models.Outcome
	runs     []models.RunSummary
}

func (f *fakeReporter) ReportOutcome(_ context.Context, o models.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
	return nil
}

func (f *fakeReporter) ReportRun(_ context.Context, s models.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, s)
	return nil
}

func (f *fakeReporter) Close() error { return nil }

type fakeMetrics struct {
	mu         sync.Mutex
	dispatches map[string]int
	outcomes   map[string]int
	errors     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		dispatches: make(map[string]int),
		outcomes:   make(map[string]int),
		errors:     make(map[string]int),
	}
}

func (f *fakeMetrics) RecordDispatch(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches[status]++
}

func (f *fakeMetrics) RecordWorkerOutcome(symbol, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[symbol+":"+result]++
}

func (f *fakeMetrics) RecordSignal(string, string) {}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLatency(string, float64) {}

// fakeDispatcher accepts every symbol unless it is listed in reject.
type fakeDispatcher struct {
	mu     sync.Mutex
	seq    int
	reject map[string]bool
	states map[drepo.Handle]drepo.DispatchState
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		reject: make(map[string]bool),
		states: make(map[drepo.Handle]drepo.DispatchState),
	}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, symbol string, params drepo.DispatchParams, _ time.Duration) (drepo.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject[symbol] {
		return "", drepo.ErrDispatchFailed
	}
	f.seq++
	h := drepo.Handle(fmt.Sprintf("%s-%s-%d", params.RunID, symbol, f.seq))
	f.states[h] = drepo.StatePending
	return h, nil
}

func (f *fakeDispatcher) Poll(_ context.Context, h drepo.Handle) (drepo.DispatchState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[h]
	if !ok {
		return "", drepo.ErrHandleNotFound
	}
	return state, nil
}

// hourlySeries builds a series with one point per hour starting at base.
func hourlySeries(symbol string, base time.Time, prices []float64) models.InstrumentSeries {
	s := models.InstrumentSeries{Symbol: symbol}
	for i, p := range prices {
		s.Points = append(s.Points, models.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     models.Float(p),
		})
	}
	return s
}

// flatContext builds a context with constant vol and benchmark aligned to
// the series timestamps.
func flatContext(base time.Time, n int, vol, bench float64) models.MarketContext {
	var m models.MarketContext
	for i := 0; i < n; i++ {
		m.Points = append(m.Points, models.ContextPoint{
			Timestamp:       base.Add(time.Duration(i) * time.Hour),
			VolatilityIndex: models.Float(vol),
			BenchmarkIndex:  models.Float(bench),
		})
	}
	return m
}
