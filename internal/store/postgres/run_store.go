package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStore appends finished supervised runs to ingest_runs.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// RecordRun inserts one run outcome. errMsg may be empty.
func (s *RunStore) RecordRun(ctx context.Context, source, outcome, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO ingest_runs (source, outcome, error) VALUES ($1, $2, $3)",
		source, outcome, msg,
	)
	if err != nil {
		return fmt.Errorf("postgres: record run %s: %w", source, err)
	}
	return nil
}

// Prune deletes runs finished before cutoff and returns how many were
// removed.
func (s *RunStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM ingest_runs WHERE finished_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
