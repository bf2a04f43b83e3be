// Package mysql writes trades to MySQL with REPLACE INTO, keyed by trade id.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
)

// ClientConfig holds connection parameters for the MySQL client.
type ClientConfig struct {
	DSN      string
	Addr     string
	Database string
	User     string
	Password string
	MaxConns int
}

// DSN builds a driver DSN. An explicit DSN wins over the individual fields.
func DSN(cfg ClientConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysqldrv.NewConfig()
	mc.Net = "tcp"
	mc.Addr = cfg.Addr
	mc.DBName = cfg.Database
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Client wraps a *sql.DB opened with the MySQL driver.
type Client struct {
	db *sql.DB
}

// New opens a pool and pings it.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Client{db: db}, nil
}

// DB returns the underlying pool.
func (c *Client) DB() *sql.DB { return c.db }

// Ping checks connectivity for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}
