package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID        string
	CreatedAt time.Time
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	encoded, err := EncodeCursor(Cursor{CreatedAt: at, ID: "42"})
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "42", decoded.ID)
	require.True(t, at.Equal(decoded.CreatedAt))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-a-cursor!")
	require.Error(t, err)

	empty, _ := EncodeCursor(Cursor{})
	_, err = DecodeCursor(empty)
	require.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	now := time.Now()
	rows := []*row{{ID: "3", CreatedAt: now}, {ID: "2", CreatedAt: now}, {ID: "1", CreatedAt: now}}
	extract := func(r *row) Cursor { return Cursor{ID: r.ID, CreatedAt: r.CreatedAt} }

	page, info, err := BuildCursorPageInfo(rows, 2, extract)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextCursor)
	require.NoError(t, err)
	require.Equal(t, "2", next.ID)

	page, info, err = BuildCursorPageInfo(rows, 5, extract)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, DefaultLimit, Normalize(0))
	require.Equal(t, MaxLimit, Normalize(1000))
	require.Equal(t, 7, Normalize(7))
}
