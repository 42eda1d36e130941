package signal

import (
	"fmt"
	"math"

	"TradePulse/internal/domain/models"
)

// CheckSeries verifies the series ordering invariant: strictly increasing
// timestamps, no duplicates. Gapped prices are legal and reported separately
// by Inspect.
func CheckSeries(series models.InstrumentSeries) error {
	for i := 1; i < len(series.Points); i++ {
		prev, cur := series.Points[i-1].Timestamp, series.Points[i].Timestamp
		if !cur.After(prev) {
			return fmt.Errorf("series %s: timestamp %s not after %s at index %d",
				series.Symbol, cur.Format("2006-01-02T15:04:05Z07:00"), prev.Format("2006-01-02T15:04:05Z07:00"), i)
		}
	}
	return nil
}

// Inspect builds the data-quality report for a series against its context:
// missing prices, context gaps, and period returns whose z-score exceeds
// OutlierZ. Advisory only; none of these abort processing.
func (e *Engine) Inspect(series models.InstrumentSeries, ctx models.MarketContext) models.DataQualityReport {
	var rep models.DataQualityReport

	changes := make([]float64, 0, len(series.Points))
	var prev *float64
	for _, pt := range series.Points {
		price := finiteOrNil(pt.Price)
		if price == nil {
			rep.MissingPrices++
		}
		if cp, ok := ctx.At(pt.Timestamp); !ok ||
			finiteOrNil(cp.VolatilityIndex) == nil || finiteOrNil(cp.BenchmarkIndex) == nil {
			rep.MissingContext++
		}
		if c := pctChange(prev, price); c != nil {
			changes = append(changes, *c)
		}
		prev = price
	}

	rep.OutlierReturns = countOutliers(changes, e.params.OutlierZ)
	return rep
}

func countOutliers(xs []float64, zLimit float64) int {
	if len(xs) < 2 {
		return 0
	}
	mean, std := meanStd(xs)
	if std == 0 {
		return 0
	}
	n := 0
	for _, x := range xs {
		if math.Abs((x-mean)/std) > zLimit {
			n++
		}
	}
	return n
}

// meanStd returns the mean and sample standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
