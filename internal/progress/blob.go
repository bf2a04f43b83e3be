package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// BlobStore is the object storage surface the Blob recorder needs.
type BlobStore interface {
	domain.BlobWriter
	domain.BlobReader
}

// Blob stores progress as a single object. Object stores replace whole
// objects on put, which gives the atomic overwrite the recorder needs.
type Blob struct {
	store BlobStore
	key   string
}

// NewBlob returns a Blob recorder for the object at key.
func NewBlob(store BlobStore, key string) *Blob {
	return &Blob{store: store, key: key}
}

func (b *Blob) Read(ctx context.Context) (string, error) {
	rc, err := b.store.Get(ctx, b.key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("progress: get %s: %w", b.key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("progress: read %s: %w", b.key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (b *Blob) Write(ctx context.Context, serialized string) error {
	if err := b.store.Put(ctx, b.key, strings.NewReader(serialized), "application/json"); err != nil {
		return fmt.Errorf("progress: put %s: %w", b.key, err)
	}
	return nil
}

var _ domain.ProgressRecorder = (*Blob)(nil)
