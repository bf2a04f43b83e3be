// Package config defines the top-level configuration for tradeloader and
// provides validation helpers.
package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADELOADER_* environment variables.
type Config struct {
	Sources    map[string]SourceConfig `toml:"sources"`
	Sink       SinkConfig              `toml:"sink"`
	Progress   ProgressConfig          `toml:"progress"`
	Postgres   PostgresConfig          `toml:"postgres"`
	MySQL      MySQLConfig             `toml:"mysql"`
	Redis      RedisConfig             `toml:"redis"`
	S3         S3Config                `toml:"s3"`
	Influx     InfluxConfig            `toml:"influx"`
	RateLimit  RateLimitConfig         `toml:"rate_limit"`
	Supervisor SupervisorConfig        `toml:"supervisor"`
	Server     ServerConfig            `toml:"server"`
	Notify     NotifyConfig            `toml:"notify"`
	Mode       string                  `toml:"mode"`
	LogLevel   string                  `toml:"log_level"`
}

// SourceConfig configures one exchange feed under [sources.<name>]. Zero
// product, page_limit and delay take the exchange's defaults.
type SourceConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Product string `toml:"product"`
	// Start and End bound the run. bitflyer takes execution ids, the others
	// take RFC 3339 times or plain dates.
	Start     string   `toml:"start"`
	End       string   `toml:"end"`
	PageLimit int      `toml:"page_limit"`
	Delay     duration `toml:"delay"`
	Timeout   duration `toml:"timeout"`
	// Table is the destination table for the postgres and mysql sinks.
	Table string `toml:"table"`
	// ProgressKey names this source's progress slot. Defaults to the source
	// name.
	ProgressKey string `toml:"progress_key"`
}

// SinkConfig selects where converted trades go. Several kinds are written in
// the listed order.
type SinkConfig struct {
	Kinds []string `toml:"kinds"`
	// ArchivePrefix is the S3 key prefix for the archive sink.
	ArchivePrefix string `toml:"archive_prefix"`
}

// ProgressConfig selects the progress recorder.
type ProgressConfig struct {
	// Kind is one of memory, file, redis, postgres, s3.
	Kind string `toml:"kind"`
	// Dir holds one file per source for the file recorder.
	Dir string `toml:"dir"`
	// Prefix is the S3 key prefix for the s3 recorder.
	Prefix string `toml:"prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// MySQLConfig holds MySQL connection parameters.
type MySQLConfig struct {
	DSN      string `toml:"dsn"`
	Addr     string `toml:"addr"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	MaxConns int    `toml:"max_conns"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	PartSizeMB     int    `toml:"part_size_mb"`
}

// InfluxConfig holds InfluxDB v2 parameters for the influx sink.
type InfluxConfig struct {
	URL         string `toml:"url"`
	Token       string `toml:"token"`
	Org         string `toml:"org"`
	Bucket      string `toml:"bucket"`
	Measurement string `toml:"measurement"`
	UseGzip     bool   `toml:"use_gzip"`
}

// RateLimitConfig controls the request budget and circuit breaker put in
// front of every source.
type RateLimitConfig struct {
	// Backend is "local" (per process) or "redis" (shared by every process
	// using the same key prefix).
	Backend string `toml:"backend"`
	// Burst applies to the local backend.
	Burst int `toml:"burst"`
	// Window applies to the redis backend. The budget per window is
	// window / source delay.
	Window             duration `toml:"window"`
	BreakerFailures    int      `toml:"breaker_failures"`
	BreakerOpenTimeout duration `toml:"breaker_open_timeout"`
	BreakerInterval    duration `toml:"breaker_interval"`
}

// SupervisorConfig controls how the ingest mode restarts runs.
type SupervisorConfig struct {
	RetryInterval duration `toml:"retry_interval"`
	// Lock takes a Redis lock per source so only one process advances a
	// progress slot.
	Lock      bool     `toml:"lock"`
	LockTTL   duration `toml:"lock_ttl"`
	StopAtEnd bool     `toml:"stop_at_end"`
	// RunRetention prunes recorded run outcomes older than this at startup.
	// Only used when a postgres connection is configured.
	RunRetention duration `toml:"run_retention"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the ops HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Known source names.
const (
	SourceBitflyer = "bitflyer"
	SourceLiquid   = "liquid"
	SourceBitmex   = "bitmex"
)

// Sink kinds.
const (
	SinkStdout   = "stdout"
	SinkPostgres = "postgres"
	SinkMySQL    = "mysql"
	SinkArchive  = "s3"
	SinkInflux   = "influx"
)

// Progress recorder kinds.
const (
	ProgressMemory   = "memory"
	ProgressFile     = "file"
	ProgressRedis    = "redis"
	ProgressPostgres = "postgres"
	ProgressS3       = "s3"
)

// sourceDefaults are merged under every [sources.<name>] table. The TOML
// decoder replaces whole map entries, so Load re-applies them after decoding.
var sourceDefaults = map[string]SourceConfig{
	SourceBitflyer: {
		BaseURL: "https://api.bitflyer.com",
		Table:   "bitflyer_executions",
	},
	SourceLiquid: {
		BaseURL: "https://api.liquid.com",
		Table:   "liquid_executions",
	},
	SourceBitmex: {
		BaseURL: "https://www.bitmex.com",
		Table:   "bitmex_trades",
	},
}

// fillSourceDefaults returns sources with every known source present and
// empty base_url and table filled in.
func fillSourceDefaults(sources map[string]SourceConfig) map[string]SourceConfig {
	out := make(map[string]SourceConfig, len(sourceDefaults))
	for name, s := range sources {
		out[name] = s
	}
	for name, def := range sourceDefaults {
		s := out[name]
		if s.BaseURL == "" {
			s.BaseURL = def.BaseURL
		}
		if s.Table == "" {
			s.Table = def.Table
		}
		out[name] = s
	}
	return out
}

// Defaults returns a Config populated with reasonable default values. Every
// source is disabled until the config file turns it on.
func Defaults() Config {
	return Config{
		Sources: fillSourceDefaults(nil),
		Sink: SinkConfig{
			Kinds:         []string{SinkStdout},
			ArchivePrefix: "trades",
		},
		Progress: ProgressConfig{
			Kind:   ProgressFile,
			Dir:    "./progress",
			Prefix: "progress",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		MySQL: MySQLConfig{
			Addr:     "localhost:3306",
			Database: "trades",
			User:     "root",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "tradeloader",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradeloader",
			ForcePathStyle: true,
			PartSizeMB:     5,
		},
		Influx: InfluxConfig{
			URL:         "http://localhost:8086",
			Bucket:      "trades",
			Measurement: "trade",
			UseGzip:     true,
		},
		RateLimit: RateLimitConfig{
			Backend:            "local",
			Burst:              1,
			Window:             duration{time.Minute},
			BreakerFailures:    5,
			BreakerOpenTimeout: duration{30 * time.Second},
			BreakerInterval:    duration{time.Minute},
		},
		Supervisor: SupervisorConfig{
			RetryInterval: duration{time.Minute},
			LockTTL:       duration{10 * time.Minute},
			RunRetention:  duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"source_stopped"},
		},
		Mode:     "ingest",
		LogLevel: "info",
	}
}

// EnabledSources returns the names of the enabled sources in sorted order.
func (c *Config) EnabledSources() []string {
	var names []string
	for name, s := range c.Sources {
		if s.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasSink reports whether kind is among the configured sink kinds.
func (c *Config) HasSink(kind string) bool {
	return slices.Contains(c.Sink.Kinds, kind)
}

// NeedsPostgres reports whether any configured component talks to PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.HasSink(SinkPostgres) || c.Progress.Kind == ProgressPostgres
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Progress.Kind == ProgressRedis || c.RateLimit.Backend == "redis" || c.Supervisor.Lock
}

// NeedsS3 reports whether any configured component talks to S3.
func (c *Config) NeedsS3() bool {
	return c.HasSink(SinkArchive) || c.Progress.Kind == ProgressS3
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"ingest": true,
	"once":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSources = map[string]bool{
	SourceBitflyer: true,
	SourceLiquid:   true,
	SourceBitmex:   true,
}

var validSinks = map[string]bool{
	SinkStdout:   true,
	SinkPostgres: true,
	SinkMySQL:    true,
	SinkArchive:  true,
	SinkInflux:   true,
}

var validProgress = map[string]bool{
	ProgressMemory:   true,
	ProgressFile:     true,
	ProgressRedis:    true,
	ProgressPostgres: true,
	ProgressS3:       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, once)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Sources
	if len(c.EnabledSources()) == 0 {
		errs = append(errs, "sources: at least one source must be enabled")
	}
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := c.Sources[name]
		if !validSources[name] {
			errs = append(errs, fmt.Sprintf("sources: unknown source %q (valid: bitflyer, liquid, bitmex)", name))
			continue
		}
		if !s.Enabled {
			continue
		}
		if s.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("sources.%s: base_url must not be empty", name))
		}
		if s.Start == "" {
			errs = append(errs, fmt.Sprintf("sources.%s: start must not be empty", name))
		}
		if s.End == "" {
			errs = append(errs, fmt.Sprintf("sources.%s: end must not be empty", name))
		}
		if s.PageLimit < 0 {
			errs = append(errs, fmt.Sprintf("sources.%s: page_limit must be >= 0", name))
		}
		if s.Delay.Duration < 0 {
			errs = append(errs, fmt.Sprintf("sources.%s: delay must be >= 0", name))
		}
		if c.HasSink(SinkPostgres) || c.HasSink(SinkMySQL) {
			if s.Table == "" {
				errs = append(errs, fmt.Sprintf("sources.%s: table must not be empty for database sinks", name))
			}
		}
	}

	// Sink
	if len(c.Sink.Kinds) == 0 {
		errs = append(errs, "sink: kinds must not be empty")
	}
	for _, k := range c.Sink.Kinds {
		if !validSinks[k] {
			errs = append(errs, fmt.Sprintf("sink: unknown kind %q (valid: stdout, postgres, mysql, s3, influx)", k))
		}
	}

	// Progress
	if !validProgress[c.Progress.Kind] {
		errs = append(errs, fmt.Sprintf("progress: unknown kind %q (valid: memory, file, redis, postgres, s3)", c.Progress.Kind))
	}
	if c.Progress.Kind == ProgressFile && c.Progress.Dir == "" {
		errs = append(errs, "progress: dir must not be empty for the file recorder")
	}

	// Postgres
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// MySQL
	if c.HasSink(SinkMySQL) && strings.TrimSpace(c.MySQL.DSN) == "" {
		if c.MySQL.Addr == "" {
			errs = append(errs, "mysql: addr must not be empty (or set mysql.dsn)")
		}
		if c.MySQL.Database == "" {
			errs = append(errs, "mysql: database must not be empty")
		}
	}

	// Redis
	if c.NeedsRedis() {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.NeedsS3() && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Influx
	if c.HasSink(SinkInflux) {
		if c.Influx.URL == "" {
			errs = append(errs, "influx: url must not be empty")
		}
		if c.Influx.Org == "" {
			errs = append(errs, "influx: org must not be empty")
		}
		if c.Influx.Bucket == "" {
			errs = append(errs, "influx: bucket must not be empty")
		}
	}

	// Rate limit
	switch c.RateLimit.Backend {
	case "local":
	case "redis":
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be > 0 for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("rate_limit: unknown backend %q (valid: local, redis)", c.RateLimit.Backend))
	}
	if c.RateLimit.BreakerFailures < 0 {
		errs = append(errs, "rate_limit: breaker_failures must be >= 0")
	}

	// Supervisor
	if c.Supervisor.RetryInterval.Duration <= 0 {
		errs = append(errs, "supervisor: retry_interval must be > 0")
	}
	if c.Supervisor.Lock && c.Supervisor.LockTTL.Duration <= 0 {
		errs = append(errs, "supervisor: lock_ttl must be > 0 when lock is enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
