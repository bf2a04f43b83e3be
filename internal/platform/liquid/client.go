// Package liquid reads public executions from the Liquid (Quoine) API.
package liquid

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.liquid.com"

// APIVersionHeader must accompany every request.
const APIVersionHeader = "X-Quoine-API-Version"

// Headers returns the headers the API expects.
func Headers() map[string]string {
	return map[string]string{
		APIVersionHeader: "2",
		"Content-Type":   "application/json",
	}
}

// Execution is one row of GET /executions by timestamp. Quantity and price
// are decimal strings.
type Execution struct {
	ID        int64  `json:"id"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	TakerSide string `json:"taker_side"`
	CreatedAt int64  `json:"created_at"`
}

// Client is the Liquid REST client.
type Client struct {
	rest *rest.Client
}

// NewClient wraps a rest.Client configured with Headers.
func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// Executions returns up to limit executions of productID at or after the
// unix timestamp, oldest first.
func (c *Client) Executions(ctx context.Context, productID string, timestamp int64, limit int) ([]Execution, error) {
	params := url.Values{}
	params.Set("product_id", productID)
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	params.Set("limit", strconv.Itoa(limit))

	var out []Execution
	if err := c.rest.GetJSON(ctx, "/executions", params, &out); err != nil {
		return nil, fmt.Errorf("liquid: executions at %d: %w", timestamp, err)
	}
	return out, nil
}
