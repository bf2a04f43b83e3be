package cursor

import "fmt"

// Tracker holds the current position of a single run. It is not safe for
// concurrent use; each engine owns its own Tracker.
type Tracker struct {
	current Cursor
}

// NewTracker starts a Tracker at c.
func NewTracker(c Cursor) *Tracker {
	return &Tracker{current: c}
}

// Current returns the current position.
func (t *Tracker) Current() Cursor {
	return t.current
}

// Update replaces the current position. It only fails when next is a
// different variant, which means the source produced a cursor it cannot
// have been configured with.
func (t *Tracker) Update(next Cursor) error {
	if next.kind != t.current.kind {
		return fmt.Errorf("cursor: update %s tracker with %s cursor", t.current.kind, next.kind)
	}
	t.current = next
	return nil
}

// String serializes the current position.
func (t *Tracker) String() string {
	return t.current.String()
}
