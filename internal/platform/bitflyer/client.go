// Package bitflyer reads public executions from the bitFlyer Lightning API.
package bitflyer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.bitflyer.com"

// Execution is one row of GET /v1/executions.
type Execution struct {
	ID                         int64   `json:"id"`
	Side                       string  `json:"side"`
	Price                      float64 `json:"price"`
	Size                       float64 `json:"size"`
	ExecDate                   string  `json:"exec_date"`
	BuyChildOrderAcceptanceID  string  `json:"buy_child_order_acceptance_id"`
	SellChildOrderAcceptanceID string  `json:"sell_child_order_acceptance_id"`
}

// Client is the bitFlyer REST client.
type Client struct {
	rest *rest.Client
}

// NewClient wraps a configured rest.Client.
func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// Executions returns up to count executions of product with ids strictly
// below before, newest first.
func (c *Client) Executions(ctx context.Context, product string, before int64, count int) ([]Execution, error) {
	params := url.Values{}
	params.Set("product_code", product)
	params.Set("before", strconv.FormatInt(before, 10))
	params.Set("count", strconv.Itoa(count))

	var out []Execution
	if err := c.rest.GetJSON(ctx, "/v1/executions", params, &out); err != nil {
		return nil, fmt.Errorf("bitflyer: executions before %d: %w", before, err)
	}
	return out, nil
}
