package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/trades?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "trades", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p@db:6543/t?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "t", User: "u", Password: "p", SSLMode: "require"}))
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"bitflyer_executions"`, quoteTable("bitflyer_executions"))
	assert.Equal(t, `"market"."liquid"`, quoteTable("market.liquid"))
	assert.Equal(t, `"bad""name"`, quoteTable(`bad"name`))
}

func TestUpsertSQL(t *testing.T) {
	q := upsertSQL(`"bitmex_trades"`)
	assert.Contains(t, q, `INSERT INTO "bitmex_trades" (id, traded_at, quantity, price)`)
	assert.Contains(t, q, "ON CONFLICT (id) DO UPDATE")
	assert.Contains(t, createTableSQL(`"bitmex_trades"`), "id         TEXT PRIMARY KEY")
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_ingest_progress.sql", "002_ingest_runs.sql"}, names)
}
