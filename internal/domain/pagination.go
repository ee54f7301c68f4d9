package domain

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Cursor pagination defaults and limits.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	cursorDelimiter = "_"
)

// PaginationParams holds client-supplied cursor pagination parameters.
// Limit is 0 when unspecified; Cursor and SyncToken are opaque strings.
type PaginationParams struct {
	Limit     int
	Cursor    string
	SyncToken string
}

// PaginationFields names the entity columns the cursor engine orders and
// filters by. UpdatedAtField may be empty, which disables sync-token
// filtering for that listing.
type PaginationFields struct {
	CreatedAtField string
	IDField        string
	UpdatedAtField string
}

// CursorFilter is the keyset predicate decoded from a cursor:
// (created_at < CreatedBefore) OR (created_at = CreatedBefore AND id > TieBreakID).
// Ordering is descending by created_at with ascending id as tie-break, so the
// (created_at, id) pair forms a total order even when timestamps collide.
type CursorFilter struct {
	CreatedBefore time.Time
	TieBreakID    string
}

// SyncTokenFilter selects records created or updated strictly after Since.
type SyncTokenFilter struct {
	Since time.Time
}

// CursorResult is the outcome of translating pagination parameters.
// QueryLimit over-fetches by one row so HasMoreItems can answer "is there a
// next page" without a count query. NewSyncToken is always produced and hands
// the caller a fresh watermark for the next incremental fetch.
type CursorResult struct {
	CursorFilter    *CursorFilter
	SyncTokenFilter *SyncTokenFilter
	EffectiveLimit  int
	QueryLimit      int
	NewSyncToken    string
}

// PaginatedResult is the response envelope for a processed page.
type PaginatedResult[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor string
}

// CreateCursorFilters clamps the requested limit, decodes the cursor and sync
// token if present, and returns the filters a repository should apply.
// Malformed cursors and sync tokens are logged and ignored: a broken cursor
// degrades to the first page rather than failing the request.
func CreateCursorFilters(params PaginationParams, fields PaginationFields, maxLimit int, logger *slog.Logger) CursorResult {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	result := CursorResult{
		EffectiveLimit: limit,
		QueryLimit:     limit + 1,
		NewSyncToken:   EncodeSyncToken(time.Now()),
	}

	if params.Cursor != "" {
		filter, err := decodeCursor(params.Cursor)
		if err != nil {
			logger.Error("invalid pagination cursor, ignoring", "error", err)
		} else {
			result.CursorFilter = &filter
		}
	}

	if params.SyncToken != "" && fields.UpdatedAtField != "" {
		since, err := decodeSyncToken(params.SyncToken)
		if err != nil {
			logger.Error("invalid sync token, ignoring", "error", err)
		} else {
			result.SyncTokenFilter = &SyncTokenFilter{Since: since}
		}
	}

	return result
}

// CreateNextCursor encodes the (createdAt, id) pair of the last item on a page
// as an opaque cursor. Either argument missing yields the empty cursor.
func CreateNextCursor(lastItemID string, lastItemCreatedAt time.Time) string {
	if lastItemID == "" || lastItemCreatedAt.IsZero() {
		return ""
	}
	raw := lastItemCreatedAt.UTC().Format(time.RFC3339Nano) + cursorDelimiter + lastItemID
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// EncodeSyncToken encodes a watermark instant as an opaque sync token.
func EncodeSyncToken(t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

func decodeCursor(cursor string) (CursorFilter, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return CursorFilter{}, fmt.Errorf("decode cursor: %w", err)
	}
	// IDs are UUIDs and never contain the delimiter; SplitN keeps any stray
	// delimiter inside the id part instead of truncating it.
	parts := strings.SplitN(string(raw), cursorDelimiter, 2)
	if len(parts) != 2 || parts[1] == "" {
		return CursorFilter{}, fmt.Errorf("cursor %q does not split into timestamp and id", string(raw))
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return CursorFilter{}, fmt.Errorf("parse cursor timestamp: %w", err)
	}
	return CursorFilter{CreatedBefore: ts, TieBreakID: parts[1]}, nil
}

func decodeSyncToken(token string) (time.Time, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode sync token: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sync token timestamp: %w", err)
	}
	return ts, nil
}

// HasMoreItems reports whether the over-fetched row count indicates a next page.
func HasMoreItems(itemsCount, effectiveLimit int) bool {
	return itemsCount > effectiveLimit
}

// GetPaginatedItems truncates the over-fetched page back to the effective
// limit. The input is returned unchanged when no truncation is needed.
func GetPaginatedItems[T any](items []T, effectiveLimit int) []T {
	if HasMoreItems(len(items), effectiveLimit) {
		return items[:effectiveLimit]
	}
	return items
}

// ProcessPaginationResult truncates a fetched page, computes HasMore, and
// derives the next cursor from the last item of the truncated page (not the
// over-fetched extra row). An empty input yields an empty envelope.
func ProcessPaginationResult[T any](items []T, effectiveLimit int, id func(T) string, createdAt func(T) time.Time) PaginatedResult[T] {
	if len(items) == 0 {
		return PaginatedResult[T]{Items: []T{}, HasMore: false, NextCursor: ""}
	}
	hasMore := HasMoreItems(len(items), effectiveLimit)
	page := GetPaginatedItems(items, effectiveLimit)
	last := page[len(page)-1]
	return PaginatedResult[T]{
		Items:      page,
		HasMore:    hasMore,
		NextCursor: CreateNextCursor(id(last), createdAt(last)),
	}
}
