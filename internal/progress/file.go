package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// File stores progress in a single local file. Writes go to a temporary file
// in the same directory which is synced and renamed over the target, so a
// crash leaves either the old or the new value.
type File struct {
	path string
}

// NewFile returns a File recorder at path. The file need not exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Read(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("progress: read %s: %w", f.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *File) Write(_ context.Context, serialized string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("progress: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("progress: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(serialized); err != nil {
		tmp.Close()
		return fmt.Errorf("progress: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("progress: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("progress: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("progress: replace %s: %w", f.path, err)
	}
	return nil
}

var _ domain.ProgressRecorder = (*File)(nil)
