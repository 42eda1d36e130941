package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// AggregatorConfig holds portfolio aggregation settings.
type AggregatorConfig struct {
	// Bucket is the bin size of the time-bucketed performance series.
	Bucket time.Duration
	// PeriodsPerYear drives the Sharpe annualization factor
	// sqrt(PeriodsPerYear). Default approximates hourly equity bars:
	// 252 trading days x 6.5 hours.
	PeriodsPerYear float64
	// LoadConcurrency bounds parallel table loads.
	LoadConcurrency int
}

func (c *AggregatorConfig) normalize() {
	if c.Bucket <= 0 {
		c.Bucket = 24 * time.Hour
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 252 * 6.5
	}
	if c.LoadConcurrency <= 0 {
		c.LoadConcurrency = 4
	}
}

// PortfolioAggregator reduces all persisted per-symbol result tables into
// portfolio metrics. It only reads; rerunning over the same tables yields
// identical output, and the reduction is order-independent so loads may run
// in parallel.
type PortfolioAggregator struct {
	store  drepo.ResultStore
	logger *applogger.Logger
	cfg    AggregatorConfig
}

func NewPortfolioAggregator(store drepo.ResultStore, logger *applogger.Logger, cfg AggregatorConfig) *PortfolioAggregator {
	cfg.normalize()
	return &PortfolioAggregator{store: store, logger: logger, cfg: cfg}
}

type loadedTable struct {
	symbol  string
	records []models.EnrichedRecord
	err     error
}

// Aggregate loads every requested symbol's table and computes the portfolio
// summary. A missing or malformed table becomes a recorded gap; only an
// unreachable store fails the aggregation as a whole.
func (a *PortfolioAggregator) Aggregate(ctx context.Context, symbols []string) (models.PortfolioSummary, error) {
	return a.AggregateBucket(ctx, symbols, a.cfg.Bucket)
}

// AggregateBucket is Aggregate with a per-call bucket size override.
func (a *PortfolioAggregator) AggregateBucket(ctx context.Context, symbols []string, bucket time.Duration) (models.PortfolioSummary, error) {
	if bucket <= 0 {
		bucket = a.cfg.Bucket
	}
	symbols = dedupe(symbols)
	if len(symbols) == 0 {
		return models.PortfolioSummary{}, drepo.ErrEmptyUniverse
	}

	tables := a.loadAll(ctx, symbols)

	summary := models.PortfolioSummary{GeneratedAt: time.Now()}
	var tradeReturns []float64
	buckets := make(map[int64]*models.TimeBucket)

	for _, tb := range tables {
		if tb.err != nil {
			if errors.Is(tb.err, drepo.ErrTableNotFound) || errors.Is(tb.err, drepo.ErrSchemaMismatch) {
				summary.Gaps = append(summary.Gaps, models.SymbolGap{
					Symbol: tb.symbol,
					Reason: drepo.Classify(tb.err),
				})
				a.logger.Warn("symbol skipped in aggregation",
					applogger.String("symbol", tb.symbol),
					applogger.Error(tb.err))
				continue
			}
			return models.PortfolioSummary{}, fmt.Errorf("load table %s: %w", tb.symbol, tb.err)
		}

		roll := rollupSymbol(tb.symbol, tb.records)
		summary.Symbols = append(summary.Symbols, roll)
		summary.TotalRecords += roll.Records
		summary.TotalTrades += roll.Trades
		summary.Quality.Good += roll.Quality.Good
		summary.Quality.Bad += roll.Quality.Bad
		summary.Quality.Neutral += roll.Quality.Neutral
		summary.TotalPnLProxy += roll.ReturnProxy

		for _, r := range tb.records {
			ret, ok := tradeReturn(r)
			if !ok {
				continue
			}
			tradeReturns = append(tradeReturns, ret)
			key := r.Timestamp.Truncate(bucket)
			b := buckets[key.UnixNano()]
			if b == nil {
				b = &models.TimeBucket{Start: key}
				buckets[key.UnixNano()] = b
			}
			b.Trades++
			b.ReturnProxy += ret
			switch r.TradeQuality {
			case models.QualityGood:
				b.Good++
			case models.QualityBad:
				b.Bad++
			}
		}
	}

	// pooled win rate: sum(good)/sum(good+bad) across symbols, so that
	// low-trade-count symbols are not overweighted
	if graded := summary.Quality.Graded(); graded > 0 {
		summary.WinRate = float64(summary.Quality.Good) / float64(graded)
	}

	summary.SharpeRatio = a.sharpe(tradeReturns)
	summary.Performance = sortBuckets(buckets)
	sort.Slice(summary.Symbols, func(i, j int) bool {
		if summary.Symbols[i].WinRate != summary.Symbols[j].WinRate {
			return summary.Symbols[i].WinRate > summary.Symbols[j].WinRate
		}
		return summary.Symbols[i].Symbol < summary.Symbols[j].Symbol
	})

	a.logger.Info("portfolio aggregated",
		applogger.Int("symbols", len(summary.Symbols)),
		applogger.Int("gaps", len(summary.Gaps)),
		applogger.Int("trades", summary.TotalTrades))

	return summary, nil
}

func (a *PortfolioAggregator) loadAll(ctx context.Context, symbols []string) []loadedTable {
	out := make([]loadedTable, len(symbols))
	sem := make(chan struct{}, a.cfg.LoadConcurrency)
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			records, err := a.store.LoadTable(ctx, sym)
			out[i] = loadedTable{symbol: sym, records: records, err: err}
		}(i, sym)
	}
	wg.Wait()
	return out
}

// sharpe annualizes mean/std of the per-trade return proxies. Nil when the
// variance degenerates to zero; N/A is not the same as zero risk-adjusted
// return.
func (a *PortfolioAggregator) sharpe(returns []float64) *float64 {
	if len(returns) < 2 {
		return nil
	}
	mean, std := meanStdDev(returns)
	if std == 0 {
		return nil
	}
	return models.Float(mean / std * math.Sqrt(a.cfg.PeriodsPerYear))
}

func rollupSymbol(symbol string, records []models.EnrichedRecord) models.SymbolRollup {
	roll := models.SymbolRollup{Symbol: symbol, Records: len(records)}

	var betaSum float64
	var betaN int
	for _, r := range records {
		if r.IsTrade() {
			roll.Trades++
		}
		switch r.TradeQuality {
		case models.QualityGood:
			roll.Quality.Good++
		case models.QualityBad:
			roll.Quality.Bad++
		default:
			roll.Quality.Neutral++
		}
		if ret, ok := tradeReturn(r); ok {
			roll.ReturnProxy += ret
		}
		if r.Beta != nil {
			betaSum += *r.Beta
			betaN++
		}
	}
	if graded := roll.Quality.Graded(); graded > 0 {
		roll.WinRate = float64(roll.Quality.Good) / float64(graded)
	}
	if betaN > 0 {
		roll.AvgBeta = models.Float(betaSum / float64(betaN))
	}
	return roll
}

// tradeReturn is the direction-signed next-period move of a non-hold signal:
// positive for good trades, negative for bad ones.
func tradeReturn(r models.EnrichedRecord) (float64, bool) {
	if !r.IsTrade() || r.NextPriceChangePct == nil {
		return 0, false
	}
	if r.Signal == models.SignalSell {
		return -*r.NextPriceChangePct, true
	}
	return *r.NextPriceChangePct, true
}

func sortBuckets(m map[int64]*models.TimeBucket) []models.TimeBucket {
	out := make([]models.TimeBucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func meanStdDev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
