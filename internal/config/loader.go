package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADELOADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Sources = fillSourceDefaults(cfg.Sources)

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADELOADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Sources ──
	for name, s := range cfg.Sources {
		prefix := "TRADELOADER_SOURCES_" + strings.ToUpper(name) + "_"
		setBool(&s.Enabled, prefix+"ENABLED")
		setStr(&s.BaseURL, prefix+"BASE_URL")
		setStr(&s.Product, prefix+"PRODUCT")
		setStr(&s.Start, prefix+"START")
		setStr(&s.End, prefix+"END")
		setInt(&s.PageLimit, prefix+"PAGE_LIMIT")
		setDuration(&s.Delay, prefix+"DELAY")
		setStr(&s.Table, prefix+"TABLE")
		setStr(&s.ProgressKey, prefix+"PROGRESS_KEY")
		cfg.Sources[name] = s
	}

	// ── Sink / Progress ──
	setStringSlice(&cfg.Sink.Kinds, "TRADELOADER_SINK_KINDS")
	setStr(&cfg.Sink.ArchivePrefix, "TRADELOADER_SINK_ARCHIVE_PREFIX")
	setStr(&cfg.Progress.Kind, "TRADELOADER_PROGRESS_KIND")
	setStr(&cfg.Progress.Dir, "TRADELOADER_PROGRESS_DIR")
	setStr(&cfg.Progress.Prefix, "TRADELOADER_PROGRESS_PREFIX")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TRADELOADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADELOADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADELOADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADELOADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADELOADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADELOADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADELOADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADELOADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADELOADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADELOADER_POSTGRES_RUN_MIGRATIONS")

	// ── MySQL ──
	setStr(&cfg.MySQL.DSN, "TRADELOADER_MYSQL_DSN")
	setStr(&cfg.MySQL.Addr, "TRADELOADER_MYSQL_ADDR")
	setStr(&cfg.MySQL.Database, "TRADELOADER_MYSQL_DATABASE")
	setStr(&cfg.MySQL.User, "TRADELOADER_MYSQL_USER")
	setStr(&cfg.MySQL.Password, "TRADELOADER_MYSQL_PASSWORD")
	setInt(&cfg.MySQL.MaxConns, "TRADELOADER_MYSQL_MAX_CONNS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TRADELOADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADELOADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADELOADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADELOADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADELOADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADELOADER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TRADELOADER_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TRADELOADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADELOADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADELOADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADELOADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADELOADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADELOADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADELOADER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.PartSizeMB, "TRADELOADER_S3_PART_SIZE_MB")

	// ── Influx ──
	setStr(&cfg.Influx.URL, "TRADELOADER_INFLUX_URL")
	setStr(&cfg.Influx.Token, "TRADELOADER_INFLUX_TOKEN")
	setStr(&cfg.Influx.Org, "TRADELOADER_INFLUX_ORG")
	setStr(&cfg.Influx.Bucket, "TRADELOADER_INFLUX_BUCKET")
	setStr(&cfg.Influx.Measurement, "TRADELOADER_INFLUX_MEASUREMENT")
	setBool(&cfg.Influx.UseGzip, "TRADELOADER_INFLUX_USE_GZIP")

	// ── Rate limit ──
	setStr(&cfg.RateLimit.Backend, "TRADELOADER_RATE_LIMIT_BACKEND")
	setInt(&cfg.RateLimit.Burst, "TRADELOADER_RATE_LIMIT_BURST")
	setDuration(&cfg.RateLimit.Window, "TRADELOADER_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.BreakerFailures, "TRADELOADER_RATE_LIMIT_BREAKER_FAILURES")
	setDuration(&cfg.RateLimit.BreakerOpenTimeout, "TRADELOADER_RATE_LIMIT_BREAKER_OPEN_TIMEOUT")
	setDuration(&cfg.RateLimit.BreakerInterval, "TRADELOADER_RATE_LIMIT_BREAKER_INTERVAL")

	// ── Supervisor ──
	setDuration(&cfg.Supervisor.RetryInterval, "TRADELOADER_SUPERVISOR_RETRY_INTERVAL")
	setBool(&cfg.Supervisor.Lock, "TRADELOADER_SUPERVISOR_LOCK")
	setDuration(&cfg.Supervisor.LockTTL, "TRADELOADER_SUPERVISOR_LOCK_TTL")
	setBool(&cfg.Supervisor.StopAtEnd, "TRADELOADER_SUPERVISOR_STOP_AT_END")
	setDuration(&cfg.Supervisor.RunRetention, "TRADELOADER_SUPERVISOR_RUN_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADELOADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADELOADER_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADELOADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADELOADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADELOADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADELOADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADELOADER_MODE")
	setStr(&cfg.LogLevel, "TRADELOADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
