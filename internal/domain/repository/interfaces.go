package repository

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
)

// MarketSource supplies instrument price series and the shared market context.
// A source may return gapped series; missing points come back with nil values.
type MarketSource interface {
	FetchSeries(ctx context.Context, symbol string, from, to time.Time) (models.InstrumentSeries, error)
	FetchContext(ctx context.Context, from, to time.Time) (models.MarketContext, error)
}

// ResultStore persists one result table per instrument. Keys are the
// lowercased symbol; SaveTable supersedes the previous table wholesale and a
// reader never observes a partially written one.
type ResultStore interface {
	Init(ctx context.Context) error
	SaveTable(ctx context.Context, symbol string, records []models.EnrichedRecord) error
	LoadTable(ctx context.Context, symbol string) ([]models.EnrichedRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// DispatchState reports where a dispatched unit of work stands.
type DispatchState string

const (
	StatePending   DispatchState = "pending"
	StateSucceeded DispatchState = "succeeded"
	StateFailed    DispatchState = "failed"
)

// Handle identifies one dispatched unit of work.
type Handle string

// DispatchParams carries the per-symbol worker parameters across the
// dispatch boundary.
type DispatchParams struct {
	RunID string    `json:"run_id"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

// Dispatcher starts a SymbolWorker for one instrument and reports on it
// asynchronously. Dispatch returns once the work is accepted, not when it
// completes; timeout bounds the acknowledgment wait only.
type Dispatcher interface {
	Dispatch(ctx context.Context, symbol string, params DispatchParams, timeout time.Duration) (Handle, error)
	Poll(ctx context.Context, h Handle) (DispatchState, error)
}

// Reporter consumes summary records for display or downstream sinks.
// Implementations must not block the worker on slow consumers.
type Reporter interface {
	ReportOutcome(ctx context.Context, o models.Outcome) error
	ReportRun(ctx context.Context, s models.RunSummary) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordDispatch(status string)
	RecordWorkerOutcome(symbol, result string)
	RecordSignal(symbol string, signal string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
