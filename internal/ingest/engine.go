package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/metrics"
)

// Engine runs the fetch, convert, write and persist loop for one source.
// Each iteration either completes fully or leaves the persisted progress
// untouched, so a failed run resumes from the last completed page.
type Engine[R any] struct {
	src    Source[R]
	logger *slog.Logger
}

// NewEngine creates an Engine for src.
func NewEngine[R any](src Source[R], logger *slog.Logger) *Engine[R] {
	return &Engine[R]{
		src:    src,
		logger: logger.With(slog.String("component", "engine"), slog.String("source", src.Name())),
	}
}

// Name returns the source name.
func (e *Engine[R]) Name() string { return e.src.Name() }

// Run downloads from the persisted (or default) cursor until the source's
// continue predicate fails. It returns nil when the end is reached,
// domain.ErrCaughtUp when the source is drained to its live edge, and the
// first failure otherwise. The engine never retries.
func (e *Engine[R]) Run(ctx context.Context, w domain.TradeWriter, rec domain.ProgressRecorder) error {
	tr, err := e.initial(ctx, rec)
	if err != nil {
		e.count(err)
		return err
	}

	end := e.src.End()
	e.logger.InfoContext(ctx, "run starting",
		slog.String("cursor", tr.String()),
		slog.String("end", end.String()),
	)

	pages := 0
	for e.src.Continue(tr.Current(), end) {
		caughtUp, err := e.step(ctx, tr, w, rec)
		if err != nil {
			e.count(err)
			return err
		}
		pages++
		if caughtUp {
			e.count(domain.ErrCaughtUp)
			return fmt.Errorf("ingest: %s at %s: %w", e.src.Name(), tr, domain.ErrCaughtUp)
		}
		if err := sleep(ctx, e.src.Delay()); err != nil {
			return err
		}
	}

	e.logger.InfoContext(ctx, "run reached end",
		slog.String("cursor", tr.String()),
		slog.Int("pages", pages),
	)
	return nil
}

// initial restores the cursor from rec. Unparseable progress falls back to
// the default start; only a failing read is returned.
func (e *Engine[R]) initial(ctx context.Context, rec domain.ProgressRecorder) (*cursor.Tracker, error) {
	start := e.src.Start()

	raw, err := rec.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: read progress: %w", e.src.Name(), err)
	}
	if raw == "" {
		e.logger.InfoContext(ctx, "no recorded progress, using default start",
			slog.String("cursor", start.String()),
		)
		return cursor.NewTracker(start), nil
	}

	c, err := cursor.Parse(raw, start)
	if err != nil {
		e.count(domain.ErrStateParse)
		e.logger.WarnContext(ctx, "recorded progress unreadable, using default start",
			slog.String("recorded", raw),
			slog.String("cursor", start.String()),
			slog.String("error", err.Error()),
		)
		return cursor.NewTracker(start), nil
	}
	return cursor.NewTracker(c), nil
}

// step runs one iteration. It reports whether the source is caught up.
func (e *Engine[R]) step(ctx context.Context, tr *cursor.Tracker, w domain.TradeWriter, rec domain.ProgressRecorder) (bool, error) {
	name := e.src.Name()
	at := tr.Current()
	limit := e.src.Limit()

	began := time.Now()
	records, err := e.src.Fetch(ctx, at, limit)
	metrics.FetchSeconds.WithLabelValues(name).Observe(time.Since(began).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrTransport) && !errors.Is(err, domain.ErrConversion) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		return false, fmt.Errorf("ingest: %s: fetch at %s: %w", name, at, err)
	}
	if len(records) == 0 {
		return false, fmt.Errorf("ingest: %s: fetch at %s: %w", name, at, domain.ErrEmptyPage)
	}
	metrics.PagesFetched.WithLabelValues(name).Inc()

	page := make([]domain.Trade, 0, len(records))
	for i, r := range records {
		t, err := e.src.Convert(r)
		if err != nil {
			if !errors.Is(err, domain.ErrConversion) {
				err = fmt.Errorf("%w: %w", domain.ErrConversion, err)
			}
			return false, fmt.Errorf("ingest: %s: record %d at %s: %w", name, i, at, err)
		}
		page = append(page, t)
	}

	write, next, err := e.src.Paging().Next(page, limit, at)
	if err != nil {
		return false, fmt.Errorf("ingest: %s: page at %s: %w", name, at, err)
	}

	var written int64
	if len(write) > 0 {
		written, err = w.Write(ctx, write)
		if err != nil {
			if !errors.Is(err, domain.ErrWrite) {
				err = fmt.Errorf("%w: %w", domain.ErrWrite, err)
			}
			return false, fmt.Errorf("ingest: %s: write %d trades: %w", name, len(write), err)
		}
	}
	metrics.TradesWritten.WithLabelValues(name).Add(float64(len(write)))
	if held := len(page) - len(write); held > 0 {
		metrics.TradesHeldBack.WithLabelValues(name).Add(float64(held))
	}

	short := len(records) < limit
	stalled := next.Equal(at)
	if stalled && !short {
		return false, fmt.Errorf("ingest: %s: full page left cursor at %s: %w", name, at, domain.ErrBoundaryOverflow)
	}

	if err := rec.Write(ctx, next.String()); err != nil {
		return false, fmt.Errorf("ingest: %s: persist %s: %w", name, next, err)
	}
	if err := tr.Update(next); err != nil {
		return false, fmt.Errorf("ingest: %s: %w", name, err)
	}
	metrics.LastAdvance.WithLabelValues(name).SetToCurrentTime()

	e.logger.DebugContext(ctx, "page ingested",
		slog.String("from", at.String()),
		slog.String("next", next.String()),
		slog.Int("fetched", len(records)),
		slog.Int("written", len(write)),
		slog.Int64("affected", written),
	)
	return stalled, nil
}

func (e *Engine[R]) count(err error) {
	metrics.RunErrors.WithLabelValues(e.src.Name(), ErrorKind(err)).Inc()
}

// ErrorKind maps an error to the label used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrConversion):
		return "conversion"
	case errors.Is(err, domain.ErrEmptyPage):
		return "empty_page"
	case errors.Is(err, domain.ErrWrite):
		return "write"
	case errors.Is(err, domain.ErrStateParse):
		return "state_parse"
	case errors.Is(err, domain.ErrBoundaryOverflow):
		return "overflow"
	case errors.Is(err, domain.ErrCaughtUp):
		return "caught_up"
	case errors.Is(err, domain.ErrLockLost):
		return "lock_lost"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
