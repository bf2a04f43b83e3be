package rest

import (
	"fmt"
	"net/http"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// APIError is a non-2xx response. It matches domain.ErrTransport, and also
// domain.ErrRateLimited for 429.
type APIError struct {
	StatusCode int
	Body       string
}

func newAPIError(status int, body []byte) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{StatusCode: status, Body: string(body)}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusTooManyRequests {
		return []error{domain.ErrTransport, domain.ErrRateLimited}
	}
	return []error{domain.ErrTransport}
}
