package models

import "time"

// PricePoint is one observation of an instrument's price series.
// Price is nil when the source had no value for the timestamp.
type PricePoint struct {
	Timestamp time.Time
	Price     *float64
}

// InstrumentSeries is the ordered hourly price series for one instrument.
// Timestamps are strictly increasing; the series owner guarantees no duplicates.
type InstrumentSeries struct {
	Symbol string
	Points []PricePoint
}

// Len returns the number of observations in the series.
func (s InstrumentSeries) Len() int { return len(s.Points) }

// ContextPoint carries the market-wide signals for one timestamp.
type ContextPoint struct {
	Timestamp       time.Time
	VolatilityIndex *float64
	BenchmarkIndex  *float64
}

// MarketContext holds the volatility and benchmark index series shared by
// every instrument in a run. Lookup is by exact timestamp.
type MarketContext struct {
	Points []ContextPoint

	byTime map[int64]int
}

// At returns the context point for ts, or (zero, false) when the context has
// no entry for that timestamp. Derived fields that depend on a missing entry
// stay undefined rather than defaulting to zero.
func (m *MarketContext) At(ts time.Time) (ContextPoint, bool) {
	if m.byTime == nil {
		m.byTime = make(map[int64]int, len(m.Points))
		for i, p := range m.Points {
			m.byTime[p.Timestamp.UnixNano()] = i
		}
	}
	i, ok := m.byTime[ts.UnixNano()]
	if !ok {
		return ContextPoint{}, false
	}
	return m.Points[i], true
}

// Float returns a pointer to v, for building optional fields in literals.
func Float(v float64) *float64 { return &v }
