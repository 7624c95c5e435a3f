package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	pkgch "FluxFeed/pkg/clickhouse"
	applogger "FluxFeed/pkg/logger"
)

// CandleSchema returns the DDL for the candle table. One row per
// (symbol, resolution, bucket); later writes replace earlier ones.
func CandleSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    symbol     LowCardinality(String),
    resolution LowCardinality(String),
    bucket     DateTime('UTC'),
    open       Float64,
    high       Float64,
    low        Float64,
    close      Float64,
    volume     Float64,
    source     LowCardinality(String),
    updated_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(updated_at)
PARTITION BY (resolution, toYYYYMM(bucket))
ORDER BY (symbol, resolution, bucket)`, table)}
}

// CHCandleStore serves and stores chart history in ClickHouse.
type CHCandleStore struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
	l      *applogger.Logger
	now    func() time.Time
}

func NewCHCandleStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHCandleStore{client: ch, db: ch.DB(), table: table, l: l, now: time.Now}
}

// Name lets the store act as a candle source in the chart cascade.
func (s *CHCandleStore) Name() string { return "clickhouse" }

func (s *CHCandleStore) Init(ctx context.Context) error {
	return s.client.Exec(ctx, CandleSchema(s.table)...)
}

// Candles adapts GetCandles to the chart source signature.
func (s *CHCandleStore) Candles(ctx context.Context, symbol string, res domrepo.Resolution, from, to time.Time) ([]models.Candle, error) {
	return s.GetCandles(ctx, symbol, res, from, to)
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, res domrepo.Resolution, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT toUnixTimestamp(bucket), open, high, low, close, volume
FROM %s FINAL
WHERE symbol = ? AND resolution = ? AND bucket >= ? AND bucket <= ?
ORDER BY bucket ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, string(res), from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse get_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("resolution", string(res)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse get_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("resolution", string(res)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHCandleStore) SaveCandles(ctx context.Context, symbol string, res domrepo.Resolution, source string, candles []models.Candle) error {
	q, args := candleInsert(s.table, symbol, res, source, s.now().UTC(), candles)
	if q == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse save_candles error",
			applogger.String("symbol", symbol),
			applogger.String("resolution", string(res)),
			applogger.Int("rows", len(candles)),
			applogger.Error(err),
		)
		return fmt.Errorf("save candles: %w", err)
	}
	return nil
}

func candleInsert(table, symbol string, res domrepo.Resolution, source string, at time.Time, candles []models.Candle) (string, []interface{}) {
	if symbol == "" || len(candles) == 0 {
		return "", nil
	}
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*10)
	for _, c := range candles {
		if c.Time <= 0 {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, string(res), time.Unix(c.Time, 0).UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume, source, at)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, resolution, bucket, open, high, low, close, volume, source, updated_at) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)
