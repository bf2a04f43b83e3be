package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// ProgressStore keeps one source's cursor in a plain string key. SET replaces
// the value atomically.
type ProgressStore struct {
	c   *Client
	key string
}

// NewProgressStore creates a ProgressStore for source.
func NewProgressStore(c *Client, source string) *ProgressStore {
	return &ProgressStore{c: c, key: c.key("progress", source)}
}

func (s *ProgressStore) Read(ctx context.Context) (string, error) {
	v, err := s.c.Underlying().Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis: read progress %s: %w", s.key, err)
	}
	return v, nil
}

func (s *ProgressStore) Write(ctx context.Context, serialized string) error {
	if err := s.c.Underlying().Set(ctx, s.key, serialized, 0).Err(); err != nil {
		return fmt.Errorf("redis: write progress %s: %w", s.key, err)
	}
	return nil
}

var _ domain.ProgressRecorder = (*ProgressStore)(nil)
