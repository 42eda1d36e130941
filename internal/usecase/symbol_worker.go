package usecase

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/signal"
	applogger "TradePulse/pkg/logger"
)

// SymbolWorker runs the load/compute/persist lifecycle for one instrument.
// Every invocation is independent: reprocessing a symbol never touches
// another symbol's data, so workers are safe to run in parallel.
type SymbolWorker struct {
	source   drepo.MarketSource
	store    drepo.ResultStore
	reporter drepo.Reporter
	metrics  drepo.Metrics
	engine   *signal.Engine
	logger   *applogger.Logger
}

func NewSymbolWorker(
	source drepo.MarketSource,
	store drepo.ResultStore,
	reporter drepo.Reporter,
	metrics drepo.Metrics,
	engine *signal.Engine,
	logger *applogger.Logger,
) *SymbolWorker {
	return &SymbolWorker{
		source:   source,
		store:    store,
		reporter: reporter,
		metrics:  metrics,
		engine:   engine,
		logger:   logger,
	}
}

// Process analyzes one symbol over [from, to] and persists the result table.
// Failures are returned inside the Outcome; the error channel of the caller
// (dispatcher, HTTP handler) never needs to distinguish them from panics.
func (w *SymbolWorker) Process(ctx context.Context, symbol string, from, to time.Time) models.Outcome {
	started := time.Now()

	series, mctx, err := w.load(ctx, symbol, from, to)
	if err != nil {
		return w.fail(ctx, symbol, started, err)
	}

	report := w.engine.Inspect(series, mctx)
	records := w.engine.Enrich(series, mctx)

	if err := w.store.SaveTable(ctx, symbol, records); err != nil {
		return w.fail(ctx, symbol, started, err)
	}

	o := buildOutcome(symbol, records, report, started)
	for _, r := range records {
		w.metrics.RecordSignal(symbol, string(r.Signal))
	}
	w.metrics.RecordWorkerOutcome(symbol, "success")
	w.metrics.RecordLatency("symbol_process", time.Since(started).Seconds())
	w.logger.Info("symbol processed",
		applogger.String("symbol", symbol),
		applogger.Int("records", o.Records),
		applogger.Int("trades", o.Signals.Total()),
		applogger.Duration("duration_ms", o.Duration))

	w.report(ctx, o)
	return o
}

func (w *SymbolWorker) load(ctx context.Context, symbol string, from, to time.Time) (models.InstrumentSeries, models.MarketContext, error) {
	series, err := w.source.FetchSeries(ctx, symbol, from, to)
	if err != nil {
		return models.InstrumentSeries{}, models.MarketContext{}, err
	}
	if err := signal.CheckSeries(series); err != nil {
		return models.InstrumentSeries{}, models.MarketContext{}, err
	}
	mctx, err := w.source.FetchContext(ctx, from, to)
	if err != nil {
		return models.InstrumentSeries{}, models.MarketContext{}, err
	}
	return series, mctx, nil
}

func (w *SymbolWorker) fail(ctx context.Context, symbol string, started time.Time, err error) models.Outcome {
	kind := drepo.Classify(err)
	w.metrics.RecordWorkerOutcome(symbol, "failure")
	w.metrics.RecordError(kind)
	w.logger.Error("symbol processing failed",
		applogger.String("symbol", symbol),
		applogger.String("kind", kind),
		applogger.Error(err))

	o := models.Outcome{
		Symbol:    symbol,
		StartedAt: started,
		Duration:  time.Since(started),
		Err:       err.Error(),
		ErrKind:   kind,
	}
	w.report(ctx, o)
	return o
}

func (w *SymbolWorker) report(ctx context.Context, o models.Outcome) {
	if w.reporter == nil {
		return
	}
	if err := w.reporter.ReportOutcome(ctx, o); err != nil {
		w.metrics.RecordError("report_outcome")
		w.logger.Warn("outcome report failed",
			applogger.String("symbol", o.Symbol),
			applogger.Error(err))
	}
}

func buildOutcome(symbol string, records []models.EnrichedRecord, report models.DataQualityReport, started time.Time) models.Outcome {
	o := models.Outcome{
		Symbol:      symbol,
		Records:     len(records),
		DataQuality: report,
		StartedAt:   started,
	}

	var betaSum, volSum float64
	var betaN, volN int
	for _, r := range records {
		switch r.Signal {
		case models.SignalBuy:
			o.Signals.Buy++
		case models.SignalSell:
			o.Signals.Sell++
		default:
			o.Signals.Hold++
		}
		switch r.TradeQuality {
		case models.QualityGood:
			o.Quality.Good++
		case models.QualityBad:
			o.Quality.Bad++
		default:
			o.Quality.Neutral++
		}
		if r.Beta != nil {
			betaSum += *r.Beta
			betaN++
		}
		if r.VolatilityIndex != nil {
			volSum += *r.VolatilityIndex
			volN++
		}
	}

	// good/(good+bad); a symbol with nothing graded scores 0, not NaN
	if graded := o.Quality.Graded(); graded > 0 {
		o.SuccessRate = float64(o.Quality.Good) / float64(graded)
	}
	if betaN > 0 {
		o.AvgBeta = models.Float(betaSum / float64(betaN))
	}
	if volN > 0 {
		o.AvgVolIndex = models.Float(volSum / float64(volN))
	}

	o.Duration = time.Since(started)
	return o
}
