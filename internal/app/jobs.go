package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cache/redis"
	"github.com/alanyoungcy/tradeloader/internal/config"
	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/platform/bitflyer"
	"github.com/alanyoungcy/tradeloader/internal/platform/bitmex"
	"github.com/alanyoungcy/tradeloader/internal/platform/liquid"
	"github.com/alanyoungcy/tradeloader/internal/platform/rest"
	"github.com/alanyoungcy/tradeloader/internal/progress"
	"github.com/alanyoungcy/tradeloader/internal/sink"
	"github.com/alanyoungcy/tradeloader/internal/source"
	"github.com/alanyoungcy/tradeloader/internal/store/mysql"
	"github.com/alanyoungcy/tradeloader/internal/store/postgres"
)

// buildJob assembles the engine, writer and recorder for one source. The
// returned func releases what the job owns, and may be nil.
func buildJob(ctx context.Context, cfg *config.Config, name string, deps *Dependencies, logger *slog.Logger) (ingest.Job, func(), error) {
	sc := cfg.Sources[name]

	runner, err := buildRunner(cfg, name, sc, deps, logger)
	if err != nil {
		return ingest.Job{}, nil, err
	}
	writer, closeWriter, err := buildWriter(ctx, cfg, name, sc, deps)
	if err != nil {
		return ingest.Job{}, nil, err
	}
	recorder, err := buildRecorder(cfg, name, sc, deps)
	if err != nil {
		if closeWriter != nil {
			closeWriter()
		}
		return ingest.Job{}, nil, err
	}

	return ingest.Job{Runner: runner, Writer: writer, Recorder: recorder}, closeWriter, nil
}

// buildRunner parses the configured bounds for the source's cursor kind and
// creates its engine.
func buildRunner(cfg *config.Config, name string, sc config.SourceConfig, deps *Dependencies, logger *slog.Logger) (ingest.Runner, error) {
	settings := source.Settings{
		Name:    name,
		Product: sc.Product,
		Limit:   sc.PageLimit,
		Delay:   sc.Delay.Duration,
	}

	switch name {
	case config.SourceBitflyer:
		if err := ordinalBounds(&settings, sc); err != nil {
			return nil, err
		}
		rc := restClient(cfg, name, sc, nil, source.BitflyerDelay, deps)
		src := source.NewBitflyer(bitflyer.NewClient(rc), settings)
		return ingest.NewEngine[bitflyer.Execution](src, logger), nil

	case config.SourceLiquid:
		start, end, err := timeBounds(sc)
		if err != nil {
			return nil, err
		}
		settings.Start, settings.End = cursor.NewTimestamp(start), cursor.NewTimestamp(end)
		rc := restClient(cfg, name, sc, liquid.Headers(), source.LiquidDelay, deps)
		src := source.NewLiquid(liquid.NewClient(rc), settings)
		return ingest.NewEngine[liquid.Execution](src, logger), nil

	case config.SourceBitmex:
		start, end, err := timeBounds(sc)
		if err != nil {
			return nil, err
		}
		settings.Start = cursor.NewPaginated(cursor.NewTimestamp(start), 0)
		settings.End = cursor.NewPaginated(cursor.NewTimestamp(end), 0)
		rc := restClient(cfg, name, sc, nil, source.BitmexDelay, deps)
		src := source.NewBitmex(bitmex.NewClient(rc), settings)
		return ingest.NewEngine[bitmex.Trade](src, logger), nil

	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

func ordinalBounds(settings *source.Settings, sc config.SourceConfig) error {
	start, err := source.ParseOrdinal(sc.Start)
	if err != nil {
		return err
	}
	end, err := source.ParseOrdinal(sc.End)
	if err != nil {
		return err
	}
	settings.Start, settings.End = start, end
	return nil
}

func timeBounds(sc config.SourceConfig) (time.Time, time.Time, error) {
	start, err := source.ParseTime(sc.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := source.ParseTime(sc.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// restClient builds the source's HTTP client. Requests are paced at one per
// source delay: locally, or across processes through the Redis budget.
func restClient(cfg *config.Config, name string, sc config.SourceConfig, headers map[string]string, defaultDelay time.Duration, deps *Dependencies) *rest.Client {
	delay := sc.Delay.Duration
	if delay <= 0 {
		delay = defaultDelay
	}

	var throttle rest.Throttle
	if cfg.RateLimit.Backend == "redis" && deps.RateLimiter != nil {
		window := cfg.RateLimit.Window.Duration
		limit := max(int(window/delay), 1)
		throttle = rest.NewSharedThrottle(deps.RateLimiter, "source:"+name, limit, window)
	} else {
		throttle = rest.NewLocalThrottle(delay, cfg.RateLimit.Burst)
	}

	return rest.New(rest.Config{
		Name:     name,
		BaseURL:  sc.BaseURL,
		Timeout:  sc.Timeout.Duration,
		Headers:  headers,
		Throttle: throttle,
		Breaker: rest.BreakerConfig{
			ConsecutiveFailures: uint32(cfg.RateLimit.BreakerFailures),
			OpenTimeout:         cfg.RateLimit.BreakerOpenTimeout.Duration,
			Interval:            cfg.RateLimit.BreakerInterval.Duration,
		},
	})
}

// buildWriter creates one writer per configured sink kind, in order, and
// tees them when there is more than one.
func buildWriter(ctx context.Context, cfg *config.Config, name string, sc config.SourceConfig, deps *Dependencies) (domain.TradeWriter, func(), error) {
	var (
		writers []domain.TradeWriter
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, kind := range cfg.Sink.Kinds {
		switch kind {
		case config.SinkStdout:
			writers = append(writers, sink.NewStdout(os.Stdout))

		case config.SinkPostgres:
			store := postgres.NewTradeStore(deps.Postgres.Pool(), sc.Table)
			if err := store.EnsureTable(ctx); err != nil {
				closeAll()
				return nil, nil, err
			}
			writers = append(writers, store)

		case config.SinkMySQL:
			store := mysql.NewTradeStore(deps.MySQL.DB(), sc.Table)
			if err := store.EnsureTable(ctx); err != nil {
				closeAll()
				return nil, nil, err
			}
			writers = append(writers, store)

		case config.SinkArchive:
			writers = append(writers, sink.NewArchive(deps.Archive, name))

		case config.SinkInflux:
			w := sink.NewInflux(sink.InfluxConfig{
				URL:         cfg.Influx.URL,
				Token:       cfg.Influx.Token,
				Org:         cfg.Influx.Org,
				Bucket:      cfg.Influx.Bucket,
				Measurement: cfg.Influx.Measurement,
				UseGzip:     cfg.Influx.UseGzip,
			}, name)
			writers = append(writers, w)
			closers = append(closers, w.Close)

		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown sink %q", kind)
		}
	}

	var closeFn func()
	if len(closers) > 0 {
		closeFn = closeAll
	}
	if len(writers) == 1 {
		return writers[0], closeFn, nil
	}
	return sink.NewTee(writers...), closeFn, nil
}

// buildRecorder creates the source's progress slot. The slot is named by
// progress_key, or the source name.
func buildRecorder(cfg *config.Config, name string, sc config.SourceConfig, deps *Dependencies) (domain.ProgressRecorder, error) {
	key := sc.ProgressKey
	if key == "" {
		key = name
	}

	switch cfg.Progress.Kind {
	case config.ProgressMemory:
		return progress.NewMemory(""), nil
	case config.ProgressFile:
		return progress.NewFile(filepath.Join(cfg.Progress.Dir, key+".cursor")), nil
	case config.ProgressRedis:
		return redis.NewProgressStore(deps.Redis, key), nil
	case config.ProgressPostgres:
		return postgres.NewProgressStore(deps.Postgres.Pool(), key), nil
	case config.ProgressS3:
		return progress.NewBlob(deps.ProgressBlobs, path.Join(key, "cursor")), nil
	default:
		return nil, fmt.Errorf("unknown progress kind %q", cfg.Progress.Kind)
	}
}
