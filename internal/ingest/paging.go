package ingest

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// Paging decides, for one converted page, which trades are written now and
// where the next fetch starts. A trade held back at a page boundary is always
// re-fetched by the next request.
type Paging interface {
	Next(page []domain.Trade, limit int, at cursor.Cursor) (write []domain.Trade, next cursor.Cursor, err error)
}

// boundaryKey is the cursor value a trade would produce. Persisted timestamps
// have second precision, so trades are grouped by second.
func boundaryKey(t domain.Trade) time.Time {
	return t.TradedAt.UTC().Truncate(time.Second)
}

// trailingRun returns the index at which the run of trades sharing key at the
// end of page starts. Zero means the whole page shares the key.
func trailingRun(page []domain.Trade, key time.Time) int {
	i := len(page)
	for i > 0 && boundaryKey(page[i-1]).Equal(key) {
		i--
	}
	return i
}

// OrdinalPaging serves sources whose cursor is a unique record id. There is
// no tie at the boundary, so every page is written whole.
type OrdinalPaging struct {
	NextFrom func(last domain.Trade) (int64, error)
}

func (p OrdinalPaging) Next(page []domain.Trade, _ int, _ cursor.Cursor) ([]domain.Trade, cursor.Cursor, error) {
	n, err := p.NextFrom(page[len(page)-1])
	if err != nil {
		return nil, cursor.Cursor{}, fmt.Errorf("%w: next position: %w", domain.ErrConversion, err)
	}
	return page, cursor.NewOrdinal(n), nil
}

// AscendingIDs continues after the last id of the page.
var AscendingIDs = OrdinalPaging{NextFrom: func(last domain.Trade) (int64, error) {
	id, err := strconv.ParseInt(last.ID, 10, 64)
	return id + 1, err
}}

// DescendingIDs continues from the last id of the page for sources that
// return records strictly before the cursor.
var DescendingIDs = OrdinalPaging{NextFrom: func(last domain.Trade) (int64, error) {
	return strconv.ParseInt(last.ID, 10, 64)
}}

// TimestampPaging serves sources queried by "trades at or after instant".
// The trailing second of a full page may be incomplete, so it is held back
// and re-fetched. A full page inside a single second can never make progress.
type TimestampPaging struct{}

func (TimestampPaging) Next(page []domain.Trade, limit int, _ cursor.Cursor) ([]domain.Trade, cursor.Cursor, error) {
	lastKey := boundaryKey(page[len(page)-1])
	if len(page) < limit {
		return page, cursor.NewTimestamp(lastKey), nil
	}
	cut := trailingRun(page, lastKey)
	if cut == 0 {
		return nil, cursor.Cursor{}, fmt.Errorf("%w: %d trades at %s", domain.ErrBoundaryOverflow, len(page), lastKey.Format(cursor.TimeLayout))
	}
	return page[:cut], cursor.NewTimestamp(lastKey), nil
}

// OffsetPaging serves sources queried by timestamp plus row offset. The
// offset lets a page entirely inside one second advance without losing rows.
type OffsetPaging struct{}

func (OffsetPaging) Next(page []domain.Trade, limit int, at cursor.Cursor) ([]domain.Trade, cursor.Cursor, error) {
	inner, off := at.Inner(), at.Offset()
	lastKey := cursor.NewTimestamp(boundaryKey(page[len(page)-1]))

	if len(page) < limit {
		if lastKey.Equal(inner) {
			return page, cursor.NewPaginated(inner, off+uint64(len(page))), nil
		}
		return page, cursor.NewPaginated(lastKey, 0), nil
	}

	cut := trailingRun(page, lastKey.Time())
	if cut == 0 {
		return page, cursor.NewPaginated(inner, off+uint64(len(page))), nil
	}
	return page[:cut], cursor.NewPaginated(lastKey, 0), nil
}
