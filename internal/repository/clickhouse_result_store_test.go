package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/signal"
)

func enriched(t *testing.T, prices []float64) []models.EnrichedRecord {
	t.Helper()
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, len(prices))
	cpts := make([]models.ContextPoint, len(prices))
	for i, p := range prices {
		ts := base.Add(time.Duration(i) * time.Hour)
		pts[i] = models.PricePoint{Timestamp: ts, Price: models.Float(p)}
		cpts[i] = models.ContextPoint{
			Timestamp:       ts,
			VolatilityIndex: models.Float(18),
			BenchmarkIndex:  models.Float(5000 + 2*float64(i)),
		}
	}
	eng := signal.NewEngine(signal.Params{})
	return eng.Enrich(
		models.InstrumentSeries{Symbol: "aapl", Points: pts},
		models.MarketContext{Points: cpts},
	)
}

func TestRestoreLookaheadRoundTrip(t *testing.T) {
	original := enriched(t, []float64{100, 101.5, 100.2, 103, 102.8, 99.9})

	// the persisted schema drops the look-ahead column; reload sees all others
	persisted := make([]models.EnrichedRecord, len(original))
	copy(persisted, original)
	for i := range persisted {
		persisted[i].NextPriceChangePct = nil
	}

	restoreLookahead(persisted)

	assert.Equal(t, original, persisted,
		"reloaded table must match the enrichment output, look-ahead column included")
}

func TestRestoreLookaheadShortSequences(t *testing.T) {
	restoreLookahead(nil)

	one := enriched(t, []float64{100})
	one[0].NextPriceChangePct = nil
	restoreLookahead(one)
	assert.Nil(t, one[0].NextPriceChangePct, "single record has no next period")
}

func TestBumpVersion(t *testing.T) {
	assert.Equal(t, uint64(200), bumpVersion(100, 200), "wall clock ahead of history wins")
	assert.Equal(t, uint64(101), bumpVersion(100, 50), "clock regression still supersedes")
	assert.Equal(t, uint64(101), bumpVersion(100, 100))
	assert.Equal(t, uint64(5), bumpVersion(0, 5), "first version for a symbol")
}
