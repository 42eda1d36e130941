package usecase

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// CoordinatorConfig holds run-level settings, passed in explicitly at
// construction; there is no ambient run state.
type CoordinatorConfig struct {
	DispatchTimeout time.Duration
}

// Coordinator fans a resolved instrument universe out to the dispatcher.
// It fires and tracks: each dispatch returns a handle for later polling,
// but the run itself only waits for dispatch acknowledgments, never for
// analytic completion.
type Coordinator struct {
	dispatcher drepo.Dispatcher
	reporter   drepo.Reporter
	metrics    drepo.Metrics
	logger     *applogger.Logger
	cfg        CoordinatorConfig
}

func NewCoordinator(
	dispatcher drepo.Dispatcher,
	reporter drepo.Reporter,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &Coordinator{
		dispatcher: dispatcher,
		reporter:   reporter,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run dispatches one SymbolWorker per symbol. Per-symbol dispatch failures
// are recorded and do not stop the remaining dispatches; the run as a whole
// fails only on an empty universe or when not a single dispatch is accepted.
func (c *Coordinator) Run(ctx context.Context, symbols []string, from, to time.Time) (models.RunSummary, error) {
	if len(symbols) == 0 {
		return models.RunSummary{}, drepo.ErrEmptyUniverse
	}

	summary := models.RunSummary{
		RunID:     fmt.Sprintf("run-%d", time.Now().UnixNano()),
		StartedAt: time.Now(),
		Symbols:   make([]models.DispatchRecord, 0, len(symbols)),
	}
	params := drepo.DispatchParams{RunID: summary.RunID, From: from, To: to}

	// one in-flight dispatch per symbol per run: a repeated symbol is a
	// no-op that reuses the first handle
	handles := make(map[string]drepo.Handle, len(symbols))

	for _, sym := range symbols {
		if h, seen := handles[sym]; seen {
			summary.Duplicates++
			summary.Symbols = append(summary.Symbols, models.DispatchRecord{
				Symbol: sym,
				Status: models.DispatchDuplicate,
				Handle: string(h),
			})
			c.metrics.RecordDispatch(string(models.DispatchDuplicate))
			continue
		}
		summary.Universe++

		h, err := c.dispatcher.Dispatch(ctx, sym, params, c.cfg.DispatchTimeout)
		if err != nil {
			summary.Failures++
			summary.Symbols = append(summary.Symbols, models.DispatchRecord{
				Symbol: sym,
				Status: models.DispatchFailed,
				Err:    err.Error(),
			})
			c.metrics.RecordDispatch(string(models.DispatchFailed))
			c.logger.Warn("dispatch failed",
				applogger.String("symbol", sym),
				applogger.Error(err))
			continue
		}

		handles[sym] = h
		summary.Dispatched++
		summary.Symbols = append(summary.Symbols, models.DispatchRecord{
			Symbol: sym,
			Status: models.DispatchAccepted,
			Handle: string(h),
		})
		c.metrics.RecordDispatch(string(models.DispatchAccepted))
	}

	c.logger.Info("run dispatched",
		applogger.String("run_id", summary.RunID),
		applogger.Int("universe", summary.Universe),
		applogger.Int("dispatched", summary.Dispatched),
		applogger.Int("duplicates", summary.Duplicates),
		applogger.Int("failures", summary.Failures))

	if c.reporter != nil {
		if err := c.reporter.ReportRun(ctx, summary); err != nil {
			c.metrics.RecordError("report_run")
			c.logger.Warn("run report failed", applogger.Error(err))
		}
	}

	if summary.Dispatched == 0 {
		return summary, fmt.Errorf("%w: no dispatch accepted for %d symbols",
			drepo.ErrDispatchFailed, summary.Universe)
	}
	return summary, nil
}

// Poll reports the state of a previously dispatched unit of work.
func (c *Coordinator) Poll(ctx context.Context, h drepo.Handle) (drepo.DispatchState, error) {
	return c.dispatcher.Poll(ctx, h)
}
