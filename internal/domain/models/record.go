package models

import "time"

// Signal is the trade decision for one timestamp.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// TradeQuality grades a signal against the following period's move.
type TradeQuality string

const (
	QualityGood    TradeQuality = "good"
	QualityBad     TradeQuality = "bad"
	QualityNeutral TradeQuality = "neutral"
)

// EnrichedRecord is the per-timestamp analysis output for one instrument.
// Optional fields are nil when the value is undefined (first/last timestamp,
// missing source data, zero benchmark move); nil is never interchangeable
// with zero.
type EnrichedRecord struct {
	Symbol             string       `json:"symbol"`
	Timestamp          time.Time    `json:"timestamp"`
	Price              *float64     `json:"price"`
	PriceChangePct     *float64     `json:"price_change_pct"`
	VolatilityIndex    *float64     `json:"volatility_index"`
	BenchmarkIndex     *float64     `json:"benchmark_index"`
	BenchmarkChangePct *float64     `json:"benchmark_change_pct"`
	Beta               *float64     `json:"beta"`
	Signal             Signal       `json:"signal"`
	BuyThreshold       *float64     `json:"buy_threshold"`
	SellThreshold      *float64     `json:"sell_threshold"`
	NextPriceChangePct *float64     `json:"next_price_change_pct"`
	TradeQuality       TradeQuality `json:"trade_quality"`
}

// IsTrade reports whether the record carries an actionable signal.
func (r EnrichedRecord) IsTrade() bool { return r.Signal != SignalHold }
