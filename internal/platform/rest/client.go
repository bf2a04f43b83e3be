// Package rest is the HTTP plumbing shared by the exchange clients: request
// building, a request budget, a circuit breaker and status mapping.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// maxErrorBody caps how much of a failed response is kept in APIError.
const maxErrorBody = 512

// Throttle spaces requests out. *rate.Limiter satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Config configures a Client.
type Config struct {
	// Name labels metrics and breaker state, usually the source name.
	Name    string
	BaseURL string
	Timeout time.Duration
	// Headers are sent with every request.
	Headers  map[string]string
	Throttle Throttle
	Breaker  BreakerConfig
}

// Client performs GET requests against one API and decodes JSON bodies.
type Client struct {
	name       string
	baseURL    string
	headers    map[string]string
	throttle   Throttle
	breaker    *gobreaker.CircuitBreaker[[]byte]
	httpClient *http.Client
}

// New creates a Client. A zero Timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		headers:    cfg.Headers,
		throttle:   cfg.Throttle,
		breaker:    newBreaker(cfg.Name, cfg.Breaker),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetJSON sends GET baseURL+path?params and decodes the body into out.
// Transport failures, non-2xx statuses and undecodable bodies are
// domain.ErrTransport. A well-formed body whose fields have the wrong type is
// domain.ErrConversion.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.throttle != nil {
		if err := c.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("%s: throttle: %w", c.name, err)
		}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, fullURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: GET %s: %w: %w", c.name, path, domain.ErrTransport, err)
		}
		return fmt.Errorf("%s: GET %s: %w", c.name, path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%s: decode %s: %w: %w", c.name, path, domain.ErrConversion, err)
		}
		return fmt.Errorf("%s: decode %s: %w: %w", c.name, path, domain.ErrTransport, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: http request: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// State reports the breaker state for status pages.
func (c *Client) State() string {
	return c.breaker.State().String()
}
