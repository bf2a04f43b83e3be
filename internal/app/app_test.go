package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/config"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/progress"
	"github.com/alanyoungcy/tradeloader/internal/sink"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureWriter struct {
	trades []domain.Trade
}

func (w *captureWriter) Write(_ context.Context, trades []domain.Trade) (int64, error) {
	w.trades = append(w.trades, trades...)
	return int64(len(trades)), nil
}

func testConfig(t *testing.T, name, baseURL, start, end string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	sc := cfg.Sources[name]
	sc.Enabled = true
	sc.BaseURL = baseURL
	sc.Start = start
	sc.End = end
	cfg.Sources[name] = sc
	cfg.Progress.Kind = config.ProgressFile
	cfg.Progress.Dir = t.TempDir()
	cfg.Server.Enabled = false
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestBitflyerJobPersistsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/executions", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("before"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":19,"side":"BUY","price":100,"size":0.5,"exec_date":"2019-01-01T00:00:03.5"},
			{"id":15,"side":"SELL","price":101,"size":0.25,"exec_date":"2019-01-01T00:00:02"},
			{"id":9,"side":"BUY","price":99,"size":1,"exec_date":"2019-01-01T00:00:01"}
		]`)
	}))
	defer srv.Close()

	cfg := testConfig(t, config.SourceBitflyer, srv.URL, "20", "10")
	deps := &Dependencies{}
	job, closeJob, err := buildJob(context.Background(), cfg, config.SourceBitflyer, deps, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, closeJob)
	assert.IsType(t, &sink.Stdout{}, job.Writer)

	w := &captureWriter{}
	require.NoError(t, job.Runner.Run(context.Background(), w, job.Recorder))

	require.Len(t, w.trades, 3)
	assert.Equal(t, "19", w.trades[0].ID)
	assert.InDelta(t, -0.25, w.trades[1].Quantity, 1e-12)

	data, err := os.ReadFile(filepath.Join(cfg.Progress.Dir, "bitflyer.cursor"))
	require.NoError(t, err)
	assert.Equal(t, `{"current":9}`, string(data))
}

func TestOnceModeTreatsEmptyPageAsIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.Header.Get("X-Quoine-API-Version"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	cfg := testConfig(t, config.SourceLiquid, srv.URL, "2019-01-01", "2019-01-02")
	cfg.Mode = "once"
	cfg.Progress.Kind = config.ProgressMemory

	a := New(cfg, quietLogger())
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))
}

func TestOnceModeReportsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t, config.SourceBitmex, srv.URL, "2019-01-01", "2019-01-02")
	cfg.Mode = "once"

	a := New(cfg, quietLogger())
	defer a.Close()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestBuildRunnerRejectsBadBounds(t *testing.T) {
	cfg := testConfig(t, config.SourceBitflyer, "http://127.0.0.1:1", "latest", "10")
	_, err := buildRunner(cfg, config.SourceBitflyer, cfg.Sources[config.SourceBitflyer], &Dependencies{}, quietLogger())
	assert.Error(t, err)

	cfg = testConfig(t, config.SourceLiquid, "http://127.0.0.1:1", "2019-01-01", "yesterday")
	_, err = buildRunner(cfg, config.SourceLiquid, cfg.Sources[config.SourceLiquid], &Dependencies{}, quietLogger())
	assert.Error(t, err)
}

func TestBuildRecorderKinds(t *testing.T) {
	cfg := testConfig(t, config.SourceLiquid, "http://127.0.0.1:1", "2019-01-01", "2019-01-02")
	sc := cfg.Sources[config.SourceLiquid]
	sc.ProgressKey = "liquid-btcjpy"

	rec, err := buildRecorder(cfg, config.SourceLiquid, sc, &Dependencies{})
	require.NoError(t, err)
	file, ok := rec.(*progress.File)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.Progress.Dir, "liquid-btcjpy.cursor"), file.Path())

	cfg.Progress.Kind = config.ProgressMemory
	rec, err = buildRecorder(cfg, config.SourceLiquid, sc, &Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &progress.Memory{}, rec)

	cfg.Progress.Kind = "etcd"
	_, err = buildRecorder(cfg, config.SourceLiquid, sc, &Dependencies{})
	assert.Error(t, err)
}

func TestBuildWriterTeesSinks(t *testing.T) {
	cfg := testConfig(t, config.SourceLiquid, "http://127.0.0.1:1", "2019-01-01", "2019-01-02")
	cfg.Sink.Kinds = []string{config.SinkStdout, config.SinkInflux}
	cfg.Influx.Org = "desk"

	w, closeFn, err := buildWriter(context.Background(), cfg, config.SourceLiquid, cfg.Sources[config.SourceLiquid], &Dependencies{})
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()
	assert.IsType(t, &sink.Tee{}, w)
}
