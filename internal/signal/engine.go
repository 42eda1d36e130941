package signal

import (
	"math"

	"TradePulse/internal/domain/models"
)

// Engine enriches an instrument series with market-context analytics and
// trade signals. It performs no I/O and holds no state beyond its parameters,
// so concurrent use across instruments needs no synchronization and replaying
// the same inputs yields identical output.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the given parameters; zero-valued fields
// fall back to defaults.
func NewEngine(params Params) *Engine {
	params.normalize()
	return &Engine{params: params}
}

// Params returns the effective engine parameters.
func (e *Engine) Params() Params { return e.params }

// Enrich produces one EnrichedRecord per input point, in input order.
// Empty and single-point series yield zero or one record with all derived
// fields undefined and a neutral grade.
func (e *Engine) Enrich(series models.InstrumentSeries, ctx models.MarketContext) []models.EnrichedRecord {
	n := len(series.Points)
	records := make([]models.EnrichedRecord, n)
	if n == 0 {
		return records
	}

	changes := make([]*float64, n)
	benchChanges := make([]*float64, n)
	for i, pt := range series.Points {
		rec := models.EnrichedRecord{
			Symbol:    series.Symbol,
			Timestamp: pt.Timestamp,
			Price:     finiteOrNil(pt.Price),
			Signal:    models.SignalHold,
		}

		if cp, ok := ctx.At(pt.Timestamp); ok {
			rec.VolatilityIndex = finiteOrNil(cp.VolatilityIndex)
			rec.BenchmarkIndex = finiteOrNil(cp.BenchmarkIndex)
		}

		if i > 0 {
			changes[i] = pctChange(records[i-1].Price, rec.Price)
			benchChanges[i] = pctChange(records[i-1].BenchmarkIndex, rec.BenchmarkIndex)
		}
		rec.PriceChangePct = changes[i]
		rec.BenchmarkChangePct = benchChanges[i]
		rec.Beta = e.beta(changes[i], benchChanges[i])

		if rec.VolatilityIndex != nil {
			buy := e.params.BaseMultiplier * *rec.VolatilityIndex / e.params.ReferenceVol
			rec.BuyThreshold = models.Float(buy)
			rec.SellThreshold = models.Float(-buy)
		}

		// An undefined change or threshold cannot clear either bound.
		if rec.PriceChangePct != nil && rec.BuyThreshold != nil {
			switch {
			case *rec.PriceChangePct > *rec.BuyThreshold:
				rec.Signal = models.SignalBuy
			case *rec.PriceChangePct < *rec.SellThreshold:
				rec.Signal = models.SignalSell
			}
		}

		records[i] = rec
	}

	for i := range records {
		if i+1 < n {
			records[i].NextPriceChangePct = changes[i+1]
		}
		records[i].TradeQuality = gradeTrade(records[i].Signal, records[i].NextPriceChangePct)
	}

	return records
}

// beta is the price change over the benchmark change, clamped to
// [-BetaClamp, BetaClamp]. A zero or missing benchmark change leaves beta
// undefined; zero is a valid clamped value and must not stand in for "no data".
func (e *Engine) beta(change, benchChange *float64) *float64 {
	if change == nil || benchChange == nil || *benchChange == 0 {
		return nil
	}
	b := *change / *benchChange
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return nil
	}
	if b > e.params.BetaClamp {
		b = e.params.BetaClamp
	} else if b < -e.params.BetaClamp {
		b = -e.params.BetaClamp
	}
	return models.Float(b)
}

// gradeTrade applies the look-ahead quality rule. Holds and the final
// timestamp (no next period) grade neutral.
func gradeTrade(sig models.Signal, next *float64) models.TradeQuality {
	if next == nil || sig == models.SignalHold {
		return models.QualityNeutral
	}
	switch {
	case sig == models.SignalBuy && *next > 0,
		sig == models.SignalSell && *next < 0:
		return models.QualityGood
	case sig == models.SignalBuy && *next < 0,
		sig == models.SignalSell && *next > 0:
		return models.QualityBad
	default:
		return models.QualityNeutral
	}
}

// pctChange returns (cur-prev)/prev*100, or nil when either side is missing
// or prev is zero.
func pctChange(prev, cur *float64) *float64 {
	if prev == nil || cur == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / *prev * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return models.Float(v)
}

// finiteOrNil drops NaN/Inf inputs so they propagate as missing data.
func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
