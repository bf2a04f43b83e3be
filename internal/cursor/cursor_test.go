package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringEncodings(t *testing.T) {
	ts := time.Date(2019, 4, 1, 12, 30, 5, 700_000_000, time.UTC)

	tests := []struct {
		name string
		c    Cursor
		want string
	}{
		{"ordinal", NewOrdinal(18), `{"current":18}`},
		{"negative ordinal", NewOrdinal(-3), `{"current":-3}`},
		{"timestamp truncated", NewTimestamp(ts), "2019-04-01T12:30:05Z"},
		{"paginated timestamp", NewPaginated(NewTimestamp(ts), 500), `{"id":"2019-04-01T12:30:05Z","num":500}`},
		{"paginated ordinal", NewPaginated(NewOrdinal(7), 0), `{"id":{"current":7},"num":0}`},
		{"zero", Cursor{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.String())
		})
	}
}

func TestTimestampNormalizesZone(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	c := NewTimestamp(time.Date(2020, 1, 1, 9, 0, 0, 0, loc))
	assert.Equal(t, "2020-01-01T00:00:00Z", c.String())
	assert.Equal(t, time.UTC, c.Time().Location())
}

func TestParseRoundTrip(t *testing.T) {
	ts := NewTimestamp(time.Date(2021, 6, 30, 23, 59, 59, 0, time.UTC))
	cases := []Cursor{
		NewOrdinal(0),
		NewOrdinal(1234567890123),
		ts,
		NewPaginated(ts, 0),
		NewPaginated(ts, 1500),
		NewPaginated(NewOrdinal(42), 9),
	}
	for _, c := range cases {
		t.Run(c.Kind().String()+" "+c.String(), func(t *testing.T) {
			got, err := Parse(c.String(), c)
			require.NoError(t, err)
			assert.True(t, c.Equal(got), "got %s", got)
			assert.Equal(t, c.String(), got.String())
		})
	}
}

func TestParseOrdinalAcceptsBareInteger(t *testing.T) {
	got, err := Parse(" 42\n", NewOrdinal(0))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Ordinal())
}

func TestParseRejectsGarbage(t *testing.T) {
	ts := NewTimestamp(time.Unix(0, 0))
	tests := []struct {
		name string
		s    string
		like Cursor
	}{
		{"ordinal garbage", "not-json", NewOrdinal(0)},
		{"ordinal wrong field", `{"latest":3}`, NewOrdinal(0)},
		{"ordinal trailing data", `{"current":5}garbage`, NewOrdinal(0)},
		{"ordinal null", `{"current":null}`, NewOrdinal(0)},
		{"ordinal fractional", `{"current":5.5}`, NewOrdinal(0)},
		{"timestamp garbage", "yesterday", ts},
		{"paginated garbage", "{", NewPaginated(ts, 0)},
		{"paginated missing id", `{"num":3}`, NewPaginated(ts, 0)},
		{"paginated bad inner", `{"id":"soon","num":3}`, NewPaginated(ts, 0)},
		{"unknown kind", "1", Cursor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.s, tt.like)
			assert.Error(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	t0 := NewTimestamp(time.Unix(100, 0))
	t1 := NewTimestamp(time.Unix(101, 0))

	assert.Equal(t, -1, Compare(NewOrdinal(1), NewOrdinal(2)))
	assert.Equal(t, 1, Compare(NewOrdinal(3), NewOrdinal(2)))
	assert.Equal(t, 0, Compare(t0, NewTimestamp(time.Unix(100, 0))))
	assert.Equal(t, -1, Compare(t0, t1))

	assert.Equal(t, -1, Compare(NewPaginated(t0, 900), NewPaginated(t1, 0)))
	assert.Equal(t, -1, Compare(NewPaginated(t0, 0), NewPaginated(t0, 1)))
	assert.Equal(t, 0, Compare(NewPaginated(t1, 5), NewPaginated(t1, 5)))

	_, err := CompareStrict(NewOrdinal(1), t0)
	assert.Error(t, err)
	assert.False(t, NewOrdinal(1).Equal(t0))
}

func TestTracker(t *testing.T) {
	tr := NewTracker(NewOrdinal(10))
	assert.Equal(t, `{"current":10}`, tr.String())

	require.NoError(t, tr.Update(NewOrdinal(12)))
	assert.Equal(t, int64(12), tr.Current().Ordinal())

	err := tr.Update(NewTimestamp(time.Now()))
	require.Error(t, err)
	assert.Equal(t, int64(12), tr.Current().Ordinal())
}
