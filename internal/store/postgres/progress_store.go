package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// ProgressStore keeps one source's cursor in a row of ingest_progress.
type ProgressStore struct {
	pool   *pgxpool.Pool
	source string
}

// NewProgressStore creates a ProgressStore for source.
func NewProgressStore(pool *pgxpool.Pool, source string) *ProgressStore {
	return &ProgressStore{pool: pool, source: source}
}

func (s *ProgressStore) Read(ctx context.Context) (string, error) {
	var cur string
	err := s.pool.QueryRow(ctx,
		"SELECT cursor FROM ingest_progress WHERE source = $1", s.source,
	).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: read progress %s: %w", s.source, err)
	}
	return cur, nil
}

func (s *ProgressStore) Write(ctx context.Context, serialized string) error {
	const query = `
		INSERT INTO ingest_progress (source, cursor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, query, s.source, serialized); err != nil {
		return fmt.Errorf("postgres: write progress %s: %w", s.source, err)
	}
	return nil
}

var _ domain.ProgressRecorder = (*ProgressStore)(nil)
