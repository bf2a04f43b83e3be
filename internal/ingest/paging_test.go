package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/cursor"
	"github.com/alanyoungcy/tradeloader/internal/domain"
)

func tradesAt(ms ...int64) []domain.Trade {
	out := make([]domain.Trade, len(ms))
	for i, v := range ms {
		out[i] = domain.Trade{ID: string(rune('a' + i)), TradedAt: time.UnixMilli(v).UTC()}
	}
	return out
}

func TestTimestampPagingGroupsBySecond(t *testing.T) {
	at := cursor.NewTimestamp(time.Unix(10, 0))

	// 11.2s and 11.9s share the persisted key 11s.
	page := tradesAt(10_000, 10_500, 11_200, 11_900)
	write, next, err := TimestampPaging{}.Next(page, 4, at)
	require.NoError(t, err)
	assert.Len(t, write, 2)
	assert.Equal(t, "1970-01-01T00:00:11Z", next.String())

	write, next, err = TimestampPaging{}.Next(page, 5, at)
	require.NoError(t, err)
	assert.Len(t, write, 4)
	assert.Equal(t, "1970-01-01T00:00:11Z", next.String())

	_, _, err = TimestampPaging{}.Next(tradesAt(10_100, 10_200), 2, at)
	assert.ErrorIs(t, err, domain.ErrBoundaryOverflow)
}

func TestOffsetPaging(t *testing.T) {
	k10 := cursor.NewTimestamp(time.Unix(10, 0))
	k12 := cursor.NewTimestamp(time.Unix(12, 0))

	tests := []struct {
		name      string
		page      []domain.Trade
		limit     int
		at        cursor.Cursor
		wantWrite int
		wantNext  cursor.Cursor
	}{
		{"short page moves to last key", tradesAt(10_000, 12_000), 5, cursor.NewPaginated(k10, 4), 2, cursor.NewPaginated(k12, 0)},
		{"short page at current key adds rows", tradesAt(10_000, 10_300), 5, cursor.NewPaginated(k10, 4), 2, cursor.NewPaginated(k10, 6)},
		{"full page strips trailing key", tradesAt(10_000, 12_000, 12_500), 3, cursor.NewPaginated(k10, 0), 1, cursor.NewPaginated(k12, 0)},
		{"full page in one second holds key", tradesAt(12_000, 12_100, 12_200), 3, cursor.NewPaginated(k10, 3), 3, cursor.NewPaginated(k10, 6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write, next, err := OffsetPaging{}.Next(tt.page, tt.limit, tt.at)
			require.NoError(t, err)
			assert.Len(t, write, tt.wantWrite)
			assert.Equal(t, tt.wantNext.String(), next.String())
		})
	}
}

func TestOrdinalPaging(t *testing.T) {
	page := []domain.Trade{{ID: "905"}, {ID: "901"}}

	_, next, err := DescendingIDs.Next(page, 2, cursor.NewOrdinal(906))
	require.NoError(t, err)
	assert.Equal(t, int64(901), next.Ordinal())

	_, next, err = AscendingIDs.Next(page, 2, cursor.NewOrdinal(0))
	require.NoError(t, err)
	assert.Equal(t, int64(902), next.Ordinal())

	_, _, err = AscendingIDs.Next([]domain.Trade{{ID: "x"}}, 2, cursor.NewOrdinal(0))
	assert.ErrorIs(t, err, domain.ErrConversion)
}
