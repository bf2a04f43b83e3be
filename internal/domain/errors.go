package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
	ErrLockLost    = errors.New("lock lost")

	// Ingestion failures. Each aborts the current run before progress is
	// persisted, so the page is attempted again by the next run.
	ErrTransport        = errors.New("transport failure")
	ErrConversion       = errors.New("malformed record")
	ErrEmptyPage        = errors.New("no data found")
	ErrWrite            = errors.New("write failure")
	ErrStateParse       = errors.New("cannot parse persisted cursor")
	ErrBoundaryOverflow = errors.New("too many trades share one cursor key to page through accurately")

	// ErrCaughtUp ends a run whose cursor stopped moving on a short page: the
	// source has nothing newer yet.
	ErrCaughtUp = errors.New("source caught up")
)

// IsTerminal reports whether re-running would only reproduce err.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrBoundaryOverflow)
}

// IsIdle reports whether err means the source had no new data rather than a
// fault.
func IsIdle(err error) bool {
	return errors.Is(err, ErrEmptyPage) || errors.Is(err, ErrCaughtUp)
}
