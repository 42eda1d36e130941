package models

import "time"

// SignalCounts tallies signals over one instrument's records.
type SignalCounts struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
	Hold int `json:"hold"`
}

// Total returns the number of actionable signals.
func (c SignalCounts) Total() int { return c.Buy + c.Sell }

// QualityCounts tallies trade-quality grades.
type QualityCounts struct {
	Good    int `json:"good"`
	Bad     int `json:"bad"`
	Neutral int `json:"neutral"`
}

// Graded returns the number of graded (non-neutral) trades.
func (c QualityCounts) Graded() int { return c.Good + c.Bad }

// DataQualityReport summarizes pre-analysis validation of a series.
// Issues are advisory; they never abort the worker.
type DataQualityReport struct {
	MissingPrices  int `json:"missing_prices"`
	MissingContext int `json:"missing_context"`
	OutlierReturns int `json:"outlier_returns"`
}

// Outcome is a SymbolWorker's compact result for one instrument.
type Outcome struct {
	Symbol      string            `json:"symbol"`
	Records     int               `json:"records"`
	Signals     SignalCounts      `json:"signals"`
	Quality     QualityCounts     `json:"quality"`
	SuccessRate float64           `json:"success_rate"` // good/(good+bad), 0 when nothing graded
	AvgBeta     *float64          `json:"avg_beta"`
	AvgVolIndex *float64          `json:"avg_vol_index"`
	DataQuality DataQualityReport `json:"data_quality"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration_ms"`
	Err         string            `json:"error,omitempty"`
	ErrKind     string            `json:"error_kind,omitempty"`
}

// Failed reports whether the worker ended with an error.
func (o Outcome) Failed() bool { return o.Err != "" }
