// Package clickhouse loads prepared catalogs into a ClickHouse table, one
// table row per catalog row, tagged with the preparation time.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/couchcryptid/sunset-catalog-prep/internal/config"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/jonboulle/clockwork"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	prepared_at DateTime64(3, 'UTC'),
	position    UInt32,
	ts          DateTime64(6, 'UTC'),
	day         Date,
	fields      Map(String, String),
	values      Map(String, Float64)
) ENGINE = MergeTree
ORDER BY (prepared_at, position)`

// rowBatch is the part of driver.Batch the writer needs.
type rowBatch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

type session interface {
	Exec(ctx context.Context, query string, args ...any) error
	prepare(ctx context.Context, query string) (rowBatch, error)
	Close() error
}

type conn struct {
	driver.Conn
}

func (c conn) prepare(ctx context.Context, query string) (rowBatch, error) {
	return c.PrepareBatch(ctx, query)
}

// Writer implements pipeline.Loader.
type Writer struct {
	sess     session
	tableFQN string
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewWriter connects to ClickHouse and verifies the connection.
func NewWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Writer, error) {
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	tableFQN := fmt.Sprintf("%s.%s", cfg.ClickHouseDatabase, cfg.ClickHouseTable)
	return newWriter(conn{c}, tableFQN, clockwork.NewRealClock(), logger), nil
}

func newWriter(s session, tableFQN string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	return &Writer{sess: s, tableFQN: tableFQN, clock: clock, logger: logger}
}

func (w *Writer) Name() string { return "clickhouse" }

// Load creates the table if needed and inserts every row in one batch.
func (w *Writer) Load(ctx context.Context, c *domain.Catalog) error {
	if err := w.sess.Exec(ctx, fmt.Sprintf(createTableSQL, w.tableFQN)); err != nil {
		return fmt.Errorf("create table %s: %w", w.tableFQN, err)
	}

	batch, err := w.sess.prepare(ctx, fmt.Sprintf("INSERT INTO %s", w.tableFQN))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	preparedAt := w.clock.Now().UTC()
	for i := 0; i < c.Len(); i++ {
		if err := batch.Append(toRow(c.Row(i), preparedAt)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	w.logger.Debug("catalog inserted", "table", w.tableFQN, "rows", c.Len())
	return nil
}

func (w *Writer) Close() error {
	return w.sess.Close()
}

// toRow maps a record onto the table columns. day is the UTC date, matching
// Record.Day. Missing numeric values are left out of the values map.
func toRow(rec domain.Record, preparedAt time.Time) []any {
	values := make(map[string]float64, len(rec.Values))
	for name, v := range rec.Values {
		if v != nil {
			values[name] = *v
		}
	}
	ts := rec.Timestamp.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return []any{preparedAt, uint32(rec.Position), ts, day, rec.Fields, values}
}
