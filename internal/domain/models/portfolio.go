package models

import "time"

// SymbolRollup is the per-instrument slice of a portfolio aggregation.
type SymbolRollup struct {
	Symbol      string        `json:"symbol"`
	Records     int           `json:"records"`
	Trades      int           `json:"trades"`
	Quality     QualityCounts `json:"quality"`
	WinRate     float64       `json:"win_rate"` // good/(good+bad), 0 when nothing graded
	ReturnProxy float64       `json:"return_proxy"`
	AvgBeta     *float64      `json:"avg_beta"`
}

// TimeBucket is one bin of the portfolio's time-bucketed performance series.
type TimeBucket struct {
	Start       time.Time `json:"start"`
	Trades      int       `json:"trades"`
	Good        int       `json:"good"`
	Bad         int       `json:"bad"`
	ReturnProxy float64   `json:"return_proxy"`
}

// SymbolGap records a requested symbol that contributed nothing to the
// aggregation, with the reason (table missing, schema mismatch).
type SymbolGap struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// PortfolioSummary is the PortfolioAggregator output. Aggregate win rate is
// pooled across symbols (sum of good over sum of graded), not a mean of
// per-symbol rates. SharpeRatio is nil when the return-proxy variance is zero.
type PortfolioSummary struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	Symbols       []SymbolRollup `json:"symbols"`
	Gaps          []SymbolGap    `json:"gaps,omitempty"`
	TotalRecords  int            `json:"total_records"`
	TotalTrades   int            `json:"total_trades"`
	Quality       QualityCounts  `json:"quality"`
	WinRate       float64        `json:"win_rate"`
	TotalPnLProxy float64        `json:"total_pnl_proxy"`
	SharpeRatio   *float64       `json:"sharpe_ratio"`
	Performance   []TimeBucket   `json:"performance"`
}
