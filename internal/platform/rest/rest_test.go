package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

type item struct {
	ID int `json:"id"`
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/things", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("before"))
		assert.Equal(t, "2", r.Header.Get("X-Api-Version"))
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer srv.Close()

	c := New(Config{Name: "test-ok", BaseURL: srv.URL, Headers: map[string]string{"X-Api-Version": "2"}})

	var out []item
	require.NoError(t, c.GetJSON(context.Background(), "/v1/things", url.Values{"before": {"7"}}, &out))
	assert.Equal(t, []item{{1}, {2}}, out)
}

func TestGetJSONStatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"server error", http.StatusBadGateway, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"nope"}`, tt.status)
			}))
			defer srv.Close()

			c := New(Config{Name: "test-" + tt.name, BaseURL: srv.URL})
			var out []item
			err := c.GetJSON(context.Background(), "/x", nil, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTransport)
			assert.Equal(t, tt.rateLimited, errors.Is(err, domain.ErrRateLimited))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestGetJSONUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	var out []item
	err := New(Config{Name: "test-html", BaseURL: srv.URL}).GetJSON(context.Background(), "/x", nil, &out)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestGetJSONWrongFieldTypeIsConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":"two"}]`))
	}))
	defer srv.Close()

	var out []item
	err := New(Config{Name: "test-type", BaseURL: srv.URL}).GetJSON(context.Background(), "/x", nil, &out)
	require.ErrorIs(t, err, domain.ErrConversion)
	assert.NotErrorIs(t, err, domain.ErrTransport)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{
		Name:    "test-breaker",
		BaseURL: srv.URL,
		Breaker: BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour},
	})

	var out []item
	for i := 0; i < 4; i++ {
		err := c.GetJSON(context.Background(), "/x", nil, &out)
		assert.ErrorIs(t, err, domain.ErrTransport)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", c.State())
}

type countingThrottle struct{ n int }

func (t *countingThrottle) Wait(context.Context) error {
	t.n++
	return nil
}

func TestThrottleConsulted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	th := &countingThrottle{}
	c := New(Config{Name: "test-throttle", BaseURL: srv.URL, Throttle: th})
	var out []item
	require.NoError(t, c.GetJSON(context.Background(), "/x", nil, &out))
	require.NoError(t, c.GetJSON(context.Background(), "/x", nil, &out))
	assert.Equal(t, 2, th.n)
}

type fakeLimiter struct {
	key    string
	limit  int
	window time.Duration
}

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLimiter) Wait(_ context.Context, key string, limit int, window time.Duration) error {
	f.key, f.limit, f.window = key, limit, window
	return nil
}

func TestSharedThrottle(t *testing.T) {
	l := &fakeLimiter{}
	require.NoError(t, NewSharedThrottle(l, "bitmex", 30, time.Minute).Wait(context.Background()))
	assert.Equal(t, "bitmex", l.key)
	assert.Equal(t, 30, l.limit)
	assert.Equal(t, time.Minute, l.window)
}

func TestLocalThrottleHonoursContext(t *testing.T) {
	th := NewLocalThrottle(time.Hour, 1)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(ctx))
}
