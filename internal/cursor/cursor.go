// Package cursor implements the position markers that drive incremental
// downloads and form the unit of persisted progress.
//
// A Cursor is one of three closed variants: Ordinal (a totally ordered
// integer such as an execution id), Timestamp (a UTC instant at second
// precision) and Paginated (an inner cursor plus a row offset within that
// inner position). Cursors are immutable values; Tracker holds the mutable
// current position of a run.
package cursor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Kind identifies the cursor variant.
type Kind uint8

const (
	Ordinal Kind = iota + 1
	Timestamp
	Paginated
)

func (k Kind) String() string {
	switch k {
	case Ordinal:
		return "ordinal"
	case Timestamp:
		return "timestamp"
	case Paginated:
		return "paginated"
	default:
		return "unknown"
	}
}

// TimeLayout is the persisted form of a Timestamp cursor.
const TimeLayout = "2006-01-02T15:04:05Z"

// Cursor is an ordered position in a data source.
type Cursor struct {
	kind   Kind
	num    int64
	at     time.Time
	inner  *Cursor
	offset uint64
}

// NewOrdinal returns an Ordinal cursor at v.
func NewOrdinal(v int64) Cursor {
	return Cursor{kind: Ordinal, num: v}
}

// NewTimestamp returns a Timestamp cursor at t, converted to UTC and
// truncated to the second.
func NewTimestamp(t time.Time) Cursor {
	return Cursor{kind: Timestamp, at: t.UTC().Truncate(time.Second)}
}

// NewPaginated returns a Paginated cursor at offset rows past inner.
func NewPaginated(inner Cursor, offset uint64) Cursor {
	in := inner
	return Cursor{kind: Paginated, inner: &in, offset: offset}
}

// Kind returns the cursor variant. The zero Cursor has kind 0.
func (c Cursor) Kind() Kind { return c.kind }

// IsZero reports whether c is the zero Cursor.
func (c Cursor) IsZero() bool { return c.kind == 0 }

// Ordinal returns the integer position of an Ordinal cursor.
func (c Cursor) Ordinal() int64 { return c.num }

// Time returns the instant of a Timestamp cursor.
func (c Cursor) Time() time.Time { return c.at }

// Inner returns the inner cursor of a Paginated cursor, or the zero Cursor.
func (c Cursor) Inner() Cursor {
	if c.inner == nil {
		return Cursor{}
	}
	return *c.inner
}

// Offset returns the row offset of a Paginated cursor.
func (c Cursor) Offset() uint64 { return c.offset }

// Equal reports whether c and o are the same variant at the same position.
func (c Cursor) Equal(o Cursor) bool {
	if c.kind != o.kind {
		return false
	}
	cmp, err := CompareStrict(c, o)
	return err == nil && cmp == 0
}

// CompareStrict orders two cursors of the same variant. It returns -1, 0 or
// +1, or an error when the variants differ.
func CompareStrict(a, b Cursor) (int, error) {
	if a.kind != b.kind {
		return 0, fmt.Errorf("cursor: cannot compare %s with %s", a.kind, b.kind)
	}
	switch a.kind {
	case Ordinal:
		return cmpInt(a.num, b.num), nil
	case Timestamp:
		return a.at.Compare(b.at), nil
	case Paginated:
		c, err := CompareStrict(a.Inner(), b.Inner())
		if err != nil || c != 0 {
			return c, err
		}
		switch {
		case a.offset < b.offset:
			return -1, nil
		case a.offset > b.offset:
			return 1, nil
		}
		return 0, nil
	default:
		return 0, nil
	}
}

// Compare is CompareStrict with mismatched variants treated as equal.
func Compare(a, b Cursor) int {
	c, _ := CompareStrict(a, b)
	return c
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type ordinalJSON struct {
	Current *int64 `json:"current"`
}

type paginatedJSON struct {
	ID  json.RawMessage `json:"id"`
	Num uint64          `json:"num"`
}

// String serializes the cursor into its persisted form.
func (c Cursor) String() string {
	switch c.kind {
	case Ordinal:
		return `{"current":` + strconv.FormatInt(c.num, 10) + `}`
	case Timestamp:
		return c.at.Format(TimeLayout)
	case Paginated:
		data, err := json.Marshal(paginatedJSON{ID: c.Inner().jsonValue(), Num: c.offset})
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// jsonValue is the cursor embedded as a JSON value: timestamps become JSON
// strings, the other variants are already JSON objects.
func (c Cursor) jsonValue() json.RawMessage {
	if c.kind == Timestamp {
		return json.RawMessage(strconv.Quote(c.String()))
	}
	return json.RawMessage(c.String())
}

// Parse decodes s in the shape of like, which is typically the configured
// default start cursor of the source. For Paginated cursors the inner
// variant is taken from like.Inner().
func Parse(s string, like Cursor) (Cursor, error) {
	s = strings.TrimSpace(s)
	switch like.kind {
	case Ordinal:
		return parseOrdinal(s)
	case Timestamp:
		t, err := time.Parse(TimeLayout, s)
		if err != nil {
			return Cursor{}, fmt.Errorf("cursor: parse timestamp %q: %w", s, err)
		}
		return NewTimestamp(t), nil
	case Paginated:
		return parsePaginated(s, like.Inner())
	default:
		return Cursor{}, fmt.Errorf("cursor: parse %q: unknown cursor kind", s)
	}
}

// parseOrdinal accepts {"current":N} and, for files written by hand, a bare
// integer.
func parseOrdinal(s string) (Cursor, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewOrdinal(n), nil
	}
	var v ordinalJSON
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Cursor{}, fmt.Errorf("cursor: parse ordinal %q: %w", s, err)
	}
	if v.Current == nil {
		return Cursor{}, fmt.Errorf("cursor: parse ordinal %q: missing current", s)
	}
	return NewOrdinal(*v.Current), nil
}

func parsePaginated(s string, innerLike Cursor) (Cursor, error) {
	var v paginatedJSON
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Cursor{}, fmt.Errorf("cursor: parse paginated %q: %w", s, err)
	}
	if len(v.ID) == 0 {
		return Cursor{}, fmt.Errorf("cursor: parse paginated %q: missing id", s)
	}

	raw := string(v.ID)
	if innerLike.kind == Timestamp {
		var str string
		if err := json.Unmarshal(v.ID, &str); err != nil {
			return Cursor{}, fmt.Errorf("cursor: parse paginated id %s: %w", raw, err)
		}
		raw = str
	}
	inner, err := Parse(raw, innerLike)
	if err != nil {
		return Cursor{}, err
	}
	return NewPaginated(inner, v.Num), nil
}
