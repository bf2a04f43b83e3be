package domain

import "context"

// TradeWriter persists canonical trades. Implementations must be idempotent:
// a page may be delivered again after a crash between write and progress
// persistence.
type TradeWriter interface {
	Write(ctx context.Context, trades []Trade) (int64, error)
}

// ProgressRecorder is a durable single-slot store for a serialized cursor.
// Read returns "" when nothing has been recorded yet. Write replaces the slot
// atomically; a later Read never observes a partial value.
type ProgressRecorder interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, serialized string) error
}
