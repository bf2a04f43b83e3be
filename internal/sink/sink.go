// Package sink holds trade writers that are not backed by a SQL store:
// standard output, object storage archives, InfluxDB and a fan-out Tee.
package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// Stdout prints one line per trade. Printing twice is harmless, so it meets
// the idempotency contract trivially.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout returns a Stdout writer printing to w.
func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

func (s *Stdout) Write(_ context.Context, trades []domain.Trade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw := bufio.NewWriter(s.w)
	for _, t := range trades {
		if _, err := fmt.Fprintln(bw, t.String()); err != nil {
			return 0, fmt.Errorf("sink: stdout: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("sink: stdout: %w", err)
	}
	return int64(len(trades)), nil
}

// Tee writes every page to each writer in order and stops at the first
// failure. The reported count is the first writer's.
type Tee struct {
	writers []domain.TradeWriter
}

// NewTee returns a Tee over writers.
func NewTee(writers ...domain.TradeWriter) *Tee {
	return &Tee{writers: writers}
}

func (t *Tee) Write(ctx context.Context, trades []domain.Trade) (int64, error) {
	var first int64
	for i, w := range t.writers {
		n, err := w.Write(ctx, trades)
		if err != nil {
			return 0, fmt.Errorf("sink: tee writer %d: %w", i, err)
		}
		if i == 0 {
			first = n
		}
	}
	return first, nil
}

var (
	_ domain.TradeWriter = (*Stdout)(nil)
	_ domain.TradeWriter = (*Tee)(nil)
)
