package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

var csvHeader = []string{"id", "traded_at", "quantity", "price"}

// ArchiveStore is the object storage surface the Archive needs.
type ArchiveStore interface {
	domain.BlobWriter
	domain.BlobReader
}

// Archive uploads each page as a gzip-compressed CSV object keyed by the
// source and the page's first and last trade ids.
//
// Redelivered trades always overlap the previous batch, so the ids of the
// last batch are kept in a marker object next to the archive and skipped on
// the following write. The marker is written after the page object: a crash
// between the two leaves the old marker, and the redelivered page filters to
// the same object key.
type Archive struct {
	blobs  ArchiveStore
	prefix string

	mu     sync.Mutex
	loaded bool
	last   map[string]struct{}
}

// NewArchive returns an Archive writing under prefix, typically the source
// name.
func NewArchive(blobs ArchiveStore, prefix string) *Archive {
	return &Archive{blobs: blobs, prefix: prefix}
}

func (a *Archive) Write(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.loadMarker(ctx); err != nil {
		return 0, err
	}

	fresh := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if _, seen := a.last[t.ID]; !seen {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	data, err := encodeCSVGzip(fresh)
	if err != nil {
		return 0, fmt.Errorf("sink: archive: %w", err)
	}

	key := a.Key(fresh)
	if err := a.blobs.Put(ctx, key, bytes.NewReader(data), "application/gzip"); err != nil {
		return 0, fmt.Errorf("sink: archive put %s: %w", key, err)
	}
	if err := a.storeMarker(ctx, trades); err != nil {
		return 0, err
	}
	return int64(len(fresh)), nil
}

// MarkerKey returns the key of the object holding the last batch's ids.
func (a *Archive) MarkerKey() string {
	return path.Join(a.prefix, "_last.json")
}

func (a *Archive) loadMarker(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	key := a.MarkerKey()
	rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.last, a.loaded = map[string]struct{}{}, true
			return nil
		}
		return fmt.Errorf("sink: archive get %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("sink: archive read %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("sink: archive decode %s: %w", key, err)
	}
	a.last = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		a.last[id] = struct{}{}
	}
	a.loaded = true
	return nil
}

func (a *Archive) storeMarker(ctx context.Context, trades []domain.Trade) error {
	ids := make([]string, len(trades))
	last := make(map[string]struct{}, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
		last[t.ID] = struct{}{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("sink: archive: %w", err)
	}
	key := a.MarkerKey()
	if err := a.blobs.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("sink: archive put %s: %w", key, err)
	}
	a.last = last
	return nil
}

// Key returns the object key for a page.
func (a *Archive) Key(trades []domain.Trade) string {
	first, last := trades[0], trades[len(trades)-1]
	day := first.TradedAt.UTC().Format("2006-01-02")
	name := fmt.Sprintf("%s_%s.csv.gz", first.ID, last.ID)
	return path.Join(a.prefix, day, name)
}

func encodeCSVGzip(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	w := csv.NewWriter(zw)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			t.TradedAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

var _ domain.TradeWriter = (*Archive)(nil)
