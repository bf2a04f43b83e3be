package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/tradeloader/internal/blob/s3"
	"github.com/alanyoungcy/tradeloader/internal/cache/redis"
	"github.com/alanyoungcy/tradeloader/internal/config"
	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/notify"
	"github.com/alanyoungcy/tradeloader/internal/server/handler"
	"github.com/alanyoungcy/tradeloader/internal/store/mysql"
	"github.com/alanyoungcy/tradeloader/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Clients that no configured
// component uses stay nil.
type Dependencies struct {
	Postgres *postgres.Client
	MySQL    *mysql.Client
	Redis    *redis.Client
	S3       *s3blob.Client

	// Archive holds the S3 archive sink objects, ProgressBlobs the S3
	// progress recorders.
	Archive       *s3blob.Store
	ProgressBlobs *s3blob.Store

	RateLimiter domain.RateLimiter
	Locks       domain.LockManager
	Runs        *postgres.RunStore

	Notifier *notify.Notifier

	// Checks back the health endpoint, one per connected backend.
	Checks map[string]handler.Check

	Jobs []ingest.Job
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: map[string]handler.Check{}}

	// --- PostgreSQL ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)
		deps.Postgres = pgClient
		deps.Checks["postgres"] = pgClient.Ping

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
			deps.Runs = postgres.NewRunStore(pgClient.Pool())
			pruneRuns(ctx, deps.Runs, cfg.Supervisor.RunRetention.Duration, logger)
		}
	}

	// --- MySQL ---
	if cfg.HasSink(config.SinkMySQL) {
		myClient, err := mysql.New(ctx, mysql.ClientConfig{
			DSN:      cfg.MySQL.DSN,
			Addr:     cfg.MySQL.Addr,
			Database: cfg.MySQL.Database,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			MaxConns: cfg.MySQL.MaxConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: mysql: %w", err))
		}
		closers = append(closers, func() { _ = myClient.Close() })
		deps.MySQL = myClient
		deps.Checks["mysql"] = myClient.Ping
	}

	// --- Redis ---
	if cfg.NeedsRedis() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Redis = redisClient
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- S3 ---
	if cfg.NeedsS3() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		partSize := int64(cfg.S3.PartSizeMB) * 1024 * 1024
		deps.S3 = s3Client
		deps.Archive = s3blob.NewStore(s3Client, cfg.Sink.ArchivePrefix, partSize)
		deps.ProgressBlobs = s3blob.NewStore(s3Client, cfg.Progress.Prefix, partSize)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Ingestion jobs ---
	for _, name := range cfg.EnabledSources() {
		job, closeJob, err := buildJob(ctx, cfg, name, deps, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: source %s: %w", name, err))
		}
		if closeJob != nil {
			closers = append(closers, closeJob)
		}
		deps.Jobs = append(deps.Jobs, job)
	}

	return deps, cleanup, nil
}

// pruneRuns drops recorded run outcomes older than retention. Failure is
// logged and ignored.
func pruneRuns(ctx context.Context, runs *postgres.RunStore, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	n, err := runs.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.WarnContext(ctx, "prune ingest runs failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		logger.InfoContext(ctx, "pruned ingest runs",
			slog.Int64("rows", n),
			slog.Duration("retention", retention),
		)
	}
}
