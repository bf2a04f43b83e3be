// Package bitmex reads public trades from the BitMEX API.
package bitmex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.bitmex.com"

// startTimeLayout is the startTime query format.
const startTimeLayout = "2006-01-02T15:04:05.000Z"

// Trade is one row of GET /api/v1/trade.
type Trade struct {
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Size            float64   `json:"size"`
	Price           float64   `json:"price"`
	TickDirection   string    `json:"tickDirection"`
	TrdMatchID      string    `json:"trdMatchID"`
	GrossValue      float64   `json:"grossValue"`
	HomeNotional    float64   `json:"homeNotional"`
	ForeignNotional float64   `json:"foreignNotional"`
}

// Client is the BitMEX REST client.
type Client struct {
	rest *rest.Client
}

// NewClient wraps a configured rest.Client.
func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// Trades returns up to count trades of symbol at or after start, skipping
// the first offset rows, oldest first.
func (c *Client) Trades(ctx context.Context, symbol string, start time.Time, offset uint64, count int) ([]Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("startTime", start.UTC().Format(startTimeLayout))
	params.Set("start", strconv.FormatUint(offset, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("reverse", "false")

	var out []Trade
	if err := c.rest.GetJSON(ctx, "/api/v1/trade", params, &out); err != nil {
		return nil, fmt.Errorf("bitmex: trades at %s+%d: %w", start.UTC().Format(startTimeLayout), offset, err)
	}
	return out, nil
}
