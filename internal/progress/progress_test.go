package progress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	v, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, m.Write(ctx, `{"current":18}`))
	v, _ = m.Read(ctx)
	assert.Equal(t, `{"current":18}`, v)
}

func TestFileMissingReadsEmpty(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "none", "bitflyer.json"))
	v, err := f.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileOverwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "state", "liquid.txt"))

	require.NoError(t, f.Write(ctx, "2019-04-01T00:00:00Z"))
	require.NoError(t, f.Write(ctx, "2019-04-02T00:00:00Z"))

	v, err := f.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2019-04-02T00:00:00Z", v)

	entries, err := os.ReadDir(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileTrimsHandEditedValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p")
	require.NoError(t, os.WriteFile(path, []byte("  {\"current\":5}\n"), 0o644))

	v, err := NewFile(path).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"current":5}`, v)
}

type memBlobs struct {
	objects map[string][]byte
	getErr  error
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestBlob(t *testing.T) {
	ctx := context.Background()
	store := &memBlobs{objects: map[string][]byte{}}
	b := NewBlob(store, "progress/bitmex")

	v, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, b.Write(ctx, `{"id":"2019-01-01T00:00:00Z","num":500}`))
	v, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"2019-01-01T00:00:00Z","num":500}`, v)

	store.getErr = errors.New("access denied")
	_, err = b.Read(ctx)
	assert.Error(t, err)
}
