package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	pkgch "TradePulse/pkg/clickhouse"
	applogger "TradePulse/pkg/logger"
)

// resultColumns is the fixed persisted schema. A consumer fails with a
// schema-mismatch error instead of silently coercing missing columns.
var resultColumns = []string{
	"symbol", "run_version", "ts", "price", "price_change_pct",
	"volatility_index", "benchmark_index", "benchmark_change_pct", "beta",
	"signal", "buy_threshold", "sell_threshold", "trade_quality",
}

// CHResultStore persists one result table per instrument in ClickHouse.
// Every save writes a single batch under a fresh run_version; readers select
// only the highest version for the symbol, so a table is superseded wholesale
// and is never observed half-written.
type CHResultStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger

	schemaOnce sync.Once
	schemaErr  error
}

func NewCHResultStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHResultStore {
	return &CHResultStore{
		db:       ch.DB(),
		database: database,
		table:    database + ".signal_records",
		l:        l,
	}
}

func (s *CHResultStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol LowCardinality(String),
			run_version UInt64,
			ts DateTime64(3, 'UTC'),
			price Nullable(Float64),
			price_change_pct Nullable(Float64),
			volatility_index Nullable(Float64),
			benchmark_index Nullable(Float64),
			benchmark_change_pct Nullable(Float64),
			beta Nullable(Float64),
			signal LowCardinality(String),
			buy_threshold Nullable(Float64),
			sell_threshold Nullable(Float64),
			trade_quality LowCardinality(String)
		) ENGINE=MergeTree ORDER BY (symbol, run_version, ts)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("result store init: %w", err)
		}
	}
	return nil
}

// SaveTable writes the full record sequence for symbol as one batch. Keys are
// lowercased for storage; an empty sequence clears the previous table.
func (s *CHResultStore) SaveTable(ctx context.Context, symbol string, records []models.EnrichedRecord) error {
	key := storageKey(symbol)
	start := time.Now()

	if len(records) == 0 {
		// wholesale supersede of a now-empty series
		q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE symbol = ?", s.table)
		if _, err := s.db.ExecContext(ctx, q, key); err != nil {
			return fmt.Errorf("clear table %s: %w", key, err)
		}
		return nil
	}

	version, err := s.nextRunVersion(ctx, key)
	if err != nil {
		return err
	}
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*len(resultColumns))
	for _, r := range records {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			key,
			version,
			r.Timestamp,
			nullable(r.Price),
			nullable(r.PriceChangePct),
			nullable(r.VolatilityIndex),
			nullable(r.BenchmarkIndex),
			nullable(r.BenchmarkChangePct),
			nullable(r.Beta),
			string(r.Signal),
			nullable(r.BuyThreshold),
			nullable(r.SellThreshold),
			string(r.TradeQuality),
		)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		s.table, strings.Join(resultColumns, ", "), strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("result table save error",
				applogger.String("symbol", key),
				applogger.Int("rows", len(records)),
				applogger.Error(err))
		}
		return fmt.Errorf("save table %s: %w", key, err)
	}

	if s.l != nil {
		s.l.Info("result table saved",
			applogger.String("symbol", key),
			applogger.Int("rows", len(records)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return nil
}

// nextRunVersion picks a version strictly above every version already
// persisted for the symbol. The wall clock is the normal source; the guard
// keeps the supersede ordering intact when the clock steps backward between
// runs.
func (s *CHResultStore) nextRunVersion(ctx context.Context, key string) (uint64, error) {
	var cur uint64
	q := fmt.Sprintf("SELECT max(run_version) FROM %s WHERE symbol = ?", s.table)
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&cur); err != nil {
		return 0, fmt.Errorf("current version %s: %w", key, err)
	}
	return bumpVersion(cur, uint64(time.Now().UnixNano())), nil
}

func bumpVersion(cur, wall uint64) uint64 {
	if wall > cur {
		return wall
	}
	return cur + 1
}

// LoadTable returns the latest persisted table for symbol in timestamp order.
// The look-ahead column is reconstructed from the sequence itself: next(t) is
// by definition price_change_pct(t+1).
func (s *CHResultStore) LoadTable(ctx context.Context, symbol string) ([]models.EnrichedRecord, error) {
	if err := s.checkSchema(ctx); err != nil {
		return nil, err
	}
	key := storageKey(symbol)

	q := fmt.Sprintf(`
        SELECT ts, price, price_change_pct, volatility_index, benchmark_index,
               benchmark_change_pct, beta, signal, buy_threshold, sell_threshold, trade_quality
        FROM %s
        WHERE symbol = ?
          AND run_version = (SELECT max(run_version) FROM %s WHERE symbol = ?)
        ORDER BY ts ASC
    `, s.table, s.table)
	rows, err := s.db.QueryContext(ctx, q, key, key)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", key, err)
	}
	defer rows.Close()

	out := make([]models.EnrichedRecord, 0, 1024)
	for rows.Next() {
		var (
			r                            models.EnrichedRecord
			ts                           time.Time
			price, chg, vol, bench       sql.NullFloat64
			benchChg, beta, buyThr, selThr sql.NullFloat64
			sig, quality                 string
		)
		if err := rows.Scan(&ts, &price, &chg, &vol, &bench, &benchChg, &beta, &sig, &buyThr, &selThr, &quality); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", drepo.ErrSchemaMismatch, key, err)
		}
		r.Symbol = key
		r.Timestamp = ts
		r.Price = fromNull(price)
		r.PriceChangePct = fromNull(chg)
		r.VolatilityIndex = fromNull(vol)
		r.BenchmarkIndex = fromNull(bench)
		r.BenchmarkChangePct = fromNull(benchChg)
		r.Beta = fromNull(beta)
		r.Signal = models.Signal(sig)
		r.BuyThreshold = fromNull(buyThr)
		r.SellThreshold = fromNull(selThr)
		r.TradeQuality = models.TradeQuality(quality)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load table %s: %w", key, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", drepo.ErrTableNotFound, key)
	}

	restoreLookahead(out)
	return out, nil
}

// restoreLookahead rebuilds the look-ahead column omitted from the persisted
// schema: next(t) is by definition price_change_pct(t+1), so the ordered
// sequence contains everything needed to restore it. The final record keeps
// nil, same as at enrichment time.
func restoreLookahead(records []models.EnrichedRecord) {
	for i := range records {
		if i+1 < len(records) {
			records[i].NextPriceChangePct = records[i+1].PriceChangePct
		}
	}
}

// checkSchema verifies the fixed column set once per store lifetime.
func (s *CHResultStore) checkSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		parts := strings.SplitN(s.table, ".", 2)
		if len(parts) != 2 {
			s.schemaErr = fmt.Errorf("%w: bad table name %s", drepo.ErrSchemaMismatch, s.table)
			return
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT name FROM system.columns WHERE database = ? AND table = ?",
			parts[0], parts[1])
		if err != nil {
			s.schemaErr = fmt.Errorf("describe %s: %w", s.table, err)
			return
		}
		defer rows.Close()

		found := make(map[string]bool, len(resultColumns))
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				s.schemaErr = fmt.Errorf("describe %s: %w", s.table, err)
				return
			}
			found[name] = true
		}
		if err := rows.Err(); err != nil {
			s.schemaErr = fmt.Errorf("describe %s: %w", s.table, err)
			return
		}
		for _, col := range resultColumns {
			if !found[col] {
				s.schemaErr = fmt.Errorf("%w: missing column %s in %s", drepo.ErrSchemaMismatch, col, s.table)
				return
			}
		}
	})
	return s.schemaErr
}

func (s *CHResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHResultStore) Close() error {
	return nil // connection pool managed by pkg/clickhouse
}

// storageKey lowercases the symbol to satisfy downstream naming constraints.
func storageKey(symbol string) string {
	return strings.ToLower(symbol)
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ drepo.ResultStore = (*CHResultStore)(nil)
