package bitflyer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
)

func TestExecutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/executions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "FX_BTC_JPY", q.Get("product_code"))
		assert.Equal(t, "1000", q.Get("before"))
		assert.Equal(t, "2", q.Get("count"))
		_, _ = w.Write([]byte(`[
			{"id":999,"side":"BUY","price":1250000.0,"size":0.01,"exec_date":"2019-04-01T00:00:01.123",
			 "buy_child_order_acceptance_id":"JRF1","sell_child_order_acceptance_id":"JRF2"},
			{"id":998,"side":"SELL","price":1249999.0,"size":0.5,"exec_date":"2019-04-01T00:00:00.9"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(rest.New(rest.Config{Name: "bitflyer-test", BaseURL: srv.URL}))
	execs, err := c.Executions(context.Background(), "FX_BTC_JPY", 1000, 2)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, int64(999), execs[0].ID)
	assert.Equal(t, "BUY", execs[0].Side)
	assert.Equal(t, "2019-04-01T00:00:01.123", execs[0].ExecDate)
	assert.Equal(t, 0.5, execs[1].Size)
}

func TestExecutionsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(rest.New(rest.Config{Name: "bitflyer-test-500", BaseURL: srv.URL}))
	_, err := c.Executions(context.Background(), "FX_BTC_JPY", 1000, 2)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
