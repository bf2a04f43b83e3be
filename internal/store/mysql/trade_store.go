package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// TradeStore writes one source's trades into a table with REPLACE INTO, so a
// redelivered trade replaces its own row.
type TradeStore struct {
	db    *sql.DB
	table string
}

// NewTradeStore creates a TradeStore for table.
func NewTradeStore(db *sql.DB, table string) *TradeStore {
	return &TradeStore{db: db, table: quoteIdent(table)}
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

func createTableSQL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + ` (
		id        VARCHAR(64) NOT NULL PRIMARY KEY,
		traded_at DATETIME(6) NOT NULL,
		quantity  DOUBLE NOT NULL,
		price     DOUBLE NOT NULL
	)`
}

// replaceSQL returns a multi-row REPLACE statement for n trades.
func replaceSQL(table string, n int) string {
	var b strings.Builder
	b.WriteString("REPLACE INTO ")
	b.WriteString(table)
	b.WriteString(" (id, traded_at, quantity, price) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
	}
	return b.String()
}

// EnsureTable creates the table if it does not exist.
func (s *TradeStore) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("mysql: create table %s: %w", s.table, err)
	}
	return nil
}

func (s *TradeStore) Write(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(trades)*4)
	for _, t := range trades {
		args = append(args, t.ID, t.TradedAt.UTC(), t.Quantity, t.Price)
	}

	res, err := s.db.ExecContext(ctx, replaceSQL(s.table, len(trades)), args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: replace into %s: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

var _ domain.TradeWriter = (*TradeStore)(nil)
