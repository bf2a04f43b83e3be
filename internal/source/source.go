// Package source adapts the exchange clients to ingest.Source: cursor
// handling, record conversion and per-exchange paging rules.
package source

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
)

// Settings are the per-source knobs shared by every adapter. Zero Product,
// Limit and Delay take the adapter's defaults.
type Settings struct {
	Name    string
	Product string
	Start   cursor.Cursor
	End     cursor.Cursor
	Limit   int
	Delay   time.Duration
}

func (s Settings) withDefaults(name, product string, limit int, delay time.Duration) Settings {
	if s.Name == "" {
		s.Name = name
	}
	if s.Product == "" {
		s.Product = product
	}
	if s.Limit <= 0 {
		s.Limit = limit
	}
	if s.Delay <= 0 {
		s.Delay = delay
	}
	return s
}

// base carries the accessors every adapter shares.
type base struct {
	s Settings
}

func (b base) Name() string { return b.s.Name }
func (b base) Start() cursor.Cursor { return b.s.Start }
func (b base) End() cursor.Cursor { return b.s.End }
func (b base) Limit() int { return b.s.Limit }
func (b base) Delay() time.Duration { return b.s.Delay }

// ParseOrdinal reads a configured ordinal bound.
func ParseOrdinal(s string) (cursor.Cursor, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return cursor.Cursor{}, fmt.Errorf("source: ordinal bound %q: %w", s, err)
	}
	return cursor.NewOrdinal(n), nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime reads a configured time bound: RFC 3339, a zoneless timestamp
// or a date, all taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("source: time bound %q: want RFC 3339 or YYYY-MM-DD", s)
}
