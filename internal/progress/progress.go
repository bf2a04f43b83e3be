// Package progress provides domain.ProgressRecorder implementations that do
// not need a database: in-memory, local file and object storage. Redis and
// Postgres recorders live with their clients.
package progress

import (
	"context"
	"sync"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// Memory keeps progress for the lifetime of the process.
type Memory struct {
	mu    sync.Mutex
	value string
}

// NewMemory returns a Memory recorder holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{value: initial}
}

func (m *Memory) Read(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *Memory) Write(_ context.Context, serialized string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = serialized
	return nil
}

var _ domain.ProgressRecorder = (*Memory)(nil)
