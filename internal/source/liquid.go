package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/platform/liquid"
)

// Liquid defaults. Product 5 is BTC/JPY.
const (
	LiquidName    = "liquid"
	LiquidProduct = "5"
	LiquidLimit   = 1000
	LiquidDelay   = 1100 * time.Millisecond
)

// Liquid walks executions forward by timestamp. The API can cut a second in
// half at the page boundary, so TimestampPaging re-fetches it.
type Liquid struct {
	base
	client *liquid.Client
}

// NewLiquid creates the adapter. s.Start and s.End must be Timestamp.
func NewLiquid(client *liquid.Client, s Settings) *Liquid {
	return &Liquid{
		base:   base{s: s.withDefaults(LiquidName, LiquidProduct, LiquidLimit, LiquidDelay)},
		client: client,
	}
}

func (l *Liquid) Continue(current, end cursor.Cursor) bool {
	return !current.Time().After(end.Time())
}

func (l *Liquid) Fetch(ctx context.Context, at cursor.Cursor, limit int) ([]liquid.Execution, error) {
	return l.client.Executions(ctx, l.s.Product, at.Time().Unix(), limit)
}

func (l *Liquid) Convert(e liquid.Execution) (domain.Trade, error) {
	qty, err := strconv.ParseFloat(e.Quantity, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("liquid: execution %d quantity %q: %w", e.ID, e.Quantity, err)
	}
	price, err := strconv.ParseFloat(e.Price, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("liquid: execution %d price %q: %w", e.ID, e.Price, err)
	}
	switch e.TakerSide {
	case "buy":
	case "sell":
		qty = -qty
	default:
		return domain.Trade{}, fmt.Errorf("liquid: execution %d: invalid taker_side %q", e.ID, e.TakerSide)
	}
	return domain.Trade{
		ID:       strconv.FormatInt(e.ID, 10),
		TradedAt: time.Unix(e.CreatedAt, 0).UTC(),
		Quantity: qty,
		Price:    price,
	}, nil
}

func (l *Liquid) Paging() ingest.Paging { return ingest.TimestampPaging{} }

var _ ingest.Source[liquid.Execution] = (*Liquid)(nil)
