package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// TradeStore writes one source's trades into its own table, upserting by id.
type TradeStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewTradeStore creates a TradeStore for table, which may be schema
// qualified ("market.bitflyer_executions").
func NewTradeStore(pool *pgxpool.Pool, table string) *TradeStore {
	return &TradeStore{pool: pool, table: quoteTable(table)}
}

func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id         TEXT PRIMARY KEY,
		traded_at  TIMESTAMPTZ NOT NULL,
		quantity   DOUBLE PRECISION NOT NULL,
		price      DOUBLE PRECISION NOT NULL
	)`
}

func upsertSQL(table string) string {
	return `INSERT INTO ` + table + ` (id, traded_at, quantity, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			traded_at = EXCLUDED.traded_at,
			quantity  = EXCLUDED.quantity,
			price     = EXCLUDED.price`
}

// EnsureTable creates the table if it does not exist.
func (s *TradeStore) EnsureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", s.table, err)
	}
	return nil
}

// Write upserts trades in a single batch. Re-delivered trades overwrite the
// identical row.
func (s *TradeStore) Write(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	query := upsertSQL(s.table)
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query, t.ID, t.TradedAt.UTC(), t.Quantity, t.Price)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var affected int64
	for i := range trades {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("postgres: upsert %s item %d: %w", s.table, i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// LastTradedAt returns the newest stored trade time, or the zero time when
// the table is empty.
func (s *TradeStore) LastTradedAt(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, "SELECT MAX(traded_at) FROM "+s.table).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("postgres: last traded_at in %s: %w", s.table, err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return ts.UTC(), nil
}

var _ domain.TradeWriter = (*TradeStore)(nil)
