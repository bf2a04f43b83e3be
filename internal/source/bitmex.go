package source

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/platform/bitmex"
)

// BitMEX defaults. Anonymous clients get about 30 requests a minute.
const (
	BitmexName    = "bitmex"
	BitmexProduct = "XBTUSD"
	BitmexLimit   = 500
	BitmexDelay   = 2 * time.Second
)

// Bitmex walks trades forward by (timestamp, offset); the offset lets a
// busy second be paged through without loss.
type Bitmex struct {
	base
	client *bitmex.Client
}

// NewBitmex creates the adapter. s.Start and s.End must be Paginated over
// Timestamp.
func NewBitmex(client *bitmex.Client, s Settings) *Bitmex {
	return &Bitmex{
		base:   base{s: s.withDefaults(BitmexName, BitmexProduct, BitmexLimit, BitmexDelay)},
		client: client,
	}
}

func (m *Bitmex) Continue(current, end cursor.Cursor) bool {
	return cursor.Compare(current, end) <= 0
}

func (m *Bitmex) Fetch(ctx context.Context, at cursor.Cursor, limit int) ([]bitmex.Trade, error) {
	return m.client.Trades(ctx, m.s.Product, at.Inner().Time(), at.Offset(), limit)
}

// Convert reports quantity in the base currency: contracts are quoted in
// USD, so size/price.
func (m *Bitmex) Convert(t bitmex.Trade) (domain.Trade, error) {
	if t.TrdMatchID == "" {
		return domain.Trade{}, fmt.Errorf("bitmex: trade at %s has no trdMatchID", t.Timestamp)
	}
	if t.Price <= 0 {
		return domain.Trade{}, fmt.Errorf("bitmex: trade %s: price %v", t.TrdMatchID, t.Price)
	}
	qty := t.Size / t.Price
	switch t.Side {
	case "Buy":
	case "Sell":
		qty = -qty
	default:
		return domain.Trade{}, fmt.Errorf("bitmex: trade %s: invalid side %q", t.TrdMatchID, t.Side)
	}
	return domain.Trade{
		ID:       t.TrdMatchID,
		TradedAt: t.Timestamp.UTC(),
		Quantity: qty,
		Price:    t.Price,
	}, nil
}

func (m *Bitmex) Paging() ingest.Paging { return ingest.OffsetPaging{} }

var _ ingest.Source[bitmex.Trade] = (*Bitmex)(nil)
