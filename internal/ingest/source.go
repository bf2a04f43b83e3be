// Package ingest drives incremental downloads: one Engine per source walks a
// cursor from the last persisted position to the configured end, and the
// Supervisor keeps every enabled source running.
package ingest

import (
	"context"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// Source adapts one paginated HTTP data source. R is the raw record type the
// source returns before conversion.
type Source[R any] interface {
	// Name identifies the source in logs, metrics and lock keys.
	Name() string
	// Start is the default cursor when no progress has been recorded. Its
	// variant also determines how persisted progress is parsed.
	Start() cursor.Cursor
	End() cursor.Cursor
	// Continue reports whether another page should be fetched.
	Continue(current, end cursor.Cursor) bool
	// Fetch returns at most limit records at the given cursor. It never
	// retries; non-2xx responses are domain.ErrTransport.
	Fetch(ctx context.Context, at cursor.Cursor, limit int) ([]R, error)
	Convert(rec R) (domain.Trade, error)
	Paging() Paging
	Limit() int
	Delay() time.Duration
}

// Runner is the source-agnostic view of an Engine used by the Supervisor.
type Runner interface {
	Name() string
	Run(ctx context.Context, w domain.TradeWriter, rec domain.ProgressRecorder) error
}
