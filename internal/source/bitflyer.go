package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/platform/bitflyer"
)

// bitFlyer defaults. The public API allows roughly 500 requests a minute.
const (
	BitflyerName    = "bitflyer"
	BitflyerProduct = "FX_BTC_JPY"
	BitflyerLimit   = 500
	BitflyerDelay   = 130 * time.Millisecond
)

// bitflyerExecDate is exec_date without a zone; the API reports UTC.
const bitflyerExecDate = "2006-01-02T15:04:05.999999999"

// Bitflyer walks executions backwards by id: Start is the newer id, End the
// older, and each page continues before its last (oldest) id.
type Bitflyer struct {
	base
	client *bitflyer.Client
}

// NewBitflyer creates the adapter. s.Start and s.End must be Ordinal.
func NewBitflyer(client *bitflyer.Client, s Settings) *Bitflyer {
	return &Bitflyer{
		base:   base{s: s.withDefaults(BitflyerName, BitflyerProduct, BitflyerLimit, BitflyerDelay)},
		client: client,
	}
}

func (b *Bitflyer) Continue(current, end cursor.Cursor) bool {
	return current.Ordinal() > end.Ordinal()
}

func (b *Bitflyer) Fetch(ctx context.Context, at cursor.Cursor, limit int) ([]bitflyer.Execution, error) {
	return b.client.Executions(ctx, b.s.Product, at.Ordinal(), limit)
}

func (b *Bitflyer) Convert(e bitflyer.Execution) (domain.Trade, error) {
	tradedAt, err := time.ParseInLocation(bitflyerExecDate, strings.TrimSuffix(e.ExecDate, "Z"), time.UTC)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("bitflyer: execution %d exec_date %q: %w", e.ID, e.ExecDate, err)
	}
	qty := e.Size
	if e.Side != "BUY" {
		qty = -qty
	}
	return domain.Trade{
		ID:       strconv.FormatInt(e.ID, 10),
		TradedAt: tradedAt,
		Quantity: qty,
		Price:    e.Price,
	}, nil
}

func (b *Bitflyer) Paging() ingest.Paging { return ingest.DescendingIDs }

var _ ingest.Source[bitflyer.Execution] = (*Bitflyer)(nil)
