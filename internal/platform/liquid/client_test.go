package liquid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
)

func TestExecutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/executions", r.URL.Path)
		assert.Equal(t, "2", r.Header.Get(APIVersionHeader))
		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("product_id"))
		assert.Equal(t, "1323318775", q.Get("timestamp"))
		assert.Equal(t, "1000", q.Get("limit"))
		_, _ = w.Write([]byte(`[{"id":5,"quantity":"0.12","price":"123.4","taker_side":"buy","created_at":1323318775}]`))
	}))
	defer srv.Close()

	c := NewClient(rest.New(rest.Config{Name: "liquid-test", BaseURL: srv.URL, Headers: Headers()}))
	execs, err := c.Executions(context.Background(), "5", 1323318775, 1000)
	require.NoError(t, err)
	assert.Equal(t, []Execution{{ID: 5, Quantity: "0.12", Price: "123.4", TakerSide: "buy", CreatedAt: 1323318775}}, execs)
}
