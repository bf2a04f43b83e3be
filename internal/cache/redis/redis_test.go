package redis

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	assert.Equal(t, "progress:bitflyer", NewFromClient(rdb, "").key("progress", "bitflyer"))

	c := NewFromClient(rdb, "tl")
	assert.Equal(t, "tl:lock:ingest:liquid", c.key("lock", "ingest:liquid"))
	assert.Equal(t, "tl:progress:bitmex", NewProgressStore(c, "bitmex").key)
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
	assert.Contains(t, slidingWindowLua, "return {1, count + 1}")
}
