package domain

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCreateNextCursor_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   string
		at   time.Time
	}{
		{"plain id", "item-42", time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"uuid id", "6f1e9d2a-0b4c-4f7e-9a1d-3c5b7e9f0a2b", time.Date(2024, 12, 31, 23, 59, 59, 999000000, time.UTC)},
		{"id containing delimiter", "item_with_underscores", time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor := CreateNextCursor(tt.id, tt.at)
			require.NotEmpty(t, cursor)

			raw, err := base64.StdEncoding.DecodeString(cursor)
			require.NoError(t, err)
			assert.Equal(t, tt.at.UTC().Format(time.RFC3339Nano)+"_"+tt.id, string(raw))

			filter, err := decodeCursor(cursor)
			require.NoError(t, err)
			assert.True(t, filter.CreatedBefore.Equal(tt.at))
			assert.Equal(t, tt.id, filter.TieBreakID)
		})
	}
}

func TestCreateNextCursor_MissingArguments(t *testing.T) {
	at := time.Now()
	assert.Equal(t, "", CreateNextCursor("", at))
	assert.Equal(t, "", CreateNextCursor("item-1", time.Time{}))
}

func TestCreateCursorFilters_LimitClamping(t *testing.T) {
	fields := PaginationFields{CreatedAtField: "created_at", IDField: "id"}

	tests := []struct {
		name          string
		limit         int
		maxLimit      int
		wantEffective int
	}{
		{"unspecified uses default", 0, MaxPageLimit, DefaultPageLimit},
		{"within max", 50, MaxPageLimit, 50},
		{"clamped to max", 500, MaxPageLimit, MaxPageLimit},
		{"exactly max", 100, MaxPageLimit, 100},
		{"small max", 30, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CreateCursorFilters(PaginationParams{Limit: tt.limit}, fields, tt.maxLimit, discardLogger())
			assert.Equal(t, tt.wantEffective, result.EffectiveLimit)
			assert.Equal(t, tt.wantEffective+1, result.QueryLimit)
		})
	}
}

func TestCreateCursorFilters_NewSyncTokenAlwaysProduced(t *testing.T) {
	fields := PaginationFields{CreatedAtField: "created_at", IDField: "id"}
	before := time.Now()
	result := CreateCursorFilters(PaginationParams{}, fields, MaxPageLimit, discardLogger())
	require.NotEmpty(t, result.NewSyncToken)

	raw, err := base64.StdEncoding.DecodeString(result.NewSyncToken)
	require.NoError(t, err)
	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	require.NoError(t, err)
	assert.False(t, ts.Before(before.Add(-time.Second)))
	assert.False(t, ts.After(time.Now().Add(time.Second)))
}

func TestCreateCursorFilters_CursorDecoding(t *testing.T) {
	fields := PaginationFields{CreatedAtField: "created_at", IDField: "id"}
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	cursor := CreateNextCursor("member-7", at)

	result := CreateCursorFilters(PaginationParams{Cursor: cursor}, fields, MaxPageLimit, discardLogger())
	require.NotNil(t, result.CursorFilter)
	assert.True(t, result.CursorFilter.CreatedBefore.Equal(at))
	assert.Equal(t, "member-7", result.CursorFilter.TieBreakID)
}

func TestCreateCursorFilters_MalformedCursorIgnored(t *testing.T) {
	fields := PaginationFields{CreatedAtField: "created_at", IDField: "id"}

	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "not-valid-base64!!"},
		{"no delimiter", base64.StdEncoding.EncodeToString([]byte("2025-03-01T10:30:00Z"))},
		{"bad timestamp", base64.StdEncoding.EncodeToString([]byte("yesterday_item-1"))},
		{"empty id part", base64.StdEncoding.EncodeToString([]byte("2025-03-01T10:30:00Z_"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CreateCursorFilters(PaginationParams{Cursor: tt.cursor}, fields, MaxPageLimit, discardLogger())
			assert.Nil(t, result.CursorFilter)
			assert.Equal(t, DefaultPageLimit, result.EffectiveLimit)
		})
	}
}

func TestCreateCursorFilters_SyncToken(t *testing.T) {
	at := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	token := EncodeSyncToken(at)

	t.Run("applied when updated_at configured", func(t *testing.T) {
		fields := PaginationFields{CreatedAtField: "created_at", IDField: "id", UpdatedAtField: "updated_at"}
		result := CreateCursorFilters(PaginationParams{SyncToken: token}, fields, MaxPageLimit, discardLogger())
		require.NotNil(t, result.SyncTokenFilter)
		assert.True(t, result.SyncTokenFilter.Since.Equal(at))
	})

	t.Run("ignored without updated_at field", func(t *testing.T) {
		fields := PaginationFields{CreatedAtField: "created_at", IDField: "id"}
		result := CreateCursorFilters(PaginationParams{SyncToken: token}, fields, MaxPageLimit, discardLogger())
		assert.Nil(t, result.SyncTokenFilter)
	})

	t.Run("malformed token ignored", func(t *testing.T) {
		fields := PaginationFields{CreatedAtField: "created_at", IDField: "id", UpdatedAtField: "updated_at"}
		result := CreateCursorFilters(PaginationParams{SyncToken: "%%%"}, fields, MaxPageLimit, discardLogger())
		assert.Nil(t, result.SyncTokenFilter)
	})
}

func TestHasMoreItems(t *testing.T) {
	assert.False(t, HasMoreItems(0, 20))
	assert.False(t, HasMoreItems(20, 20))
	assert.True(t, HasMoreItems(21, 20))
	assert.True(t, HasMoreItems(1, 0))
}

func TestGetPaginatedItems_TruncationIdempotence(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	once := GetPaginatedItems(items, 3)
	twice := GetPaginatedItems(once, 3)
	assert.Equal(t, []string{"a", "b", "c"}, once)
	assert.Equal(t, once, twice)

	// No copy when not truncating.
	same := GetPaginatedItems(items, 10)
	assert.Equal(t, items, same)
}

type pageItem struct {
	ID        string
	CreatedAt time.Time
}

func TestProcessPaginationResult_Empty(t *testing.T) {
	for _, limit := range []int{0, 1, 20, 100} {
		result := ProcessPaginationResult([]pageItem{}, limit,
			func(i pageItem) string { return i.ID },
			func(i pageItem) time.Time { return i.CreatedAt })
		assert.Empty(t, result.Items)
		assert.False(t, result.HasMore)
		assert.Equal(t, "", result.NextCursor)
	}
}

func TestProcessPaginationResult_DefaultLimitScenario(t *testing.T) {
	// 21 rows fetched with the default limit of 20: the page truncates to 20
	// and the cursor derives from item 20, not the over-fetched 21st row.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]pageItem, 21)
	for i := range items {
		items[i] = pageItem{
			ID:        fmt.Sprintf("item-%02d", i+1),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}

	result := ProcessPaginationResult(items, DefaultPageLimit,
		func(i pageItem) string { return i.ID },
		func(i pageItem) time.Time { return i.CreatedAt })

	require.Len(t, result.Items, 20)
	assert.True(t, result.HasMore)
	assert.Equal(t, CreateNextCursor(items[19].ID, items[19].CreatedAt), result.NextCursor)
}

func TestProcessPaginationResult_ExactPage(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []pageItem{
		{ID: "item-1", CreatedAt: base},
		{ID: "item-2", CreatedAt: base.Add(-time.Minute)},
	}

	result := ProcessPaginationResult(items, 2,
		func(i pageItem) string { return i.ID },
		func(i pageItem) time.Time { return i.CreatedAt })

	require.Len(t, result.Items, 2)
	assert.False(t, result.HasMore)
	assert.Equal(t, CreateNextCursor("item-2", base.Add(-time.Minute)), result.NextCursor)
}
