package rest

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// NewLocalThrottle allows one request per interval with the given burst,
// within this process only.
func NewLocalThrottle(interval time.Duration, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}

// SharedThrottle draws from a budget shared across processes, such as the
// Redis sliding window.
type SharedThrottle struct {
	limiter domain.RateLimiter
	key     string
	limit   int
	window  time.Duration
}

// NewSharedThrottle allows limit requests per window under key.
func NewSharedThrottle(limiter domain.RateLimiter, key string, limit int, window time.Duration) *SharedThrottle {
	return &SharedThrottle{limiter: limiter, key: key, limit: limit, window: window}
}

func (t *SharedThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx, t.key, t.limit, t.window)
}

var (
	_ Throttle = (*rate.Limiter)(nil)
	_ Throttle = (*SharedThrottle)(nil)
)
