package helpers

import (
	"net/http"
	"strconv"

	"launchline/internal/domain"
)

// ParsePagination reads limit, cursor, and sync_token from the request query
// string and returns domain.PaginationParams. Invalid or missing limits fall
// back to the default; malformed cursors and sync tokens are passed through
// and tolerated downstream.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 1 {
			limit = v
		}
	}
	return domain.PaginationParams{
		Limit:     limit,
		Cursor:    q.Get("cursor"),
		SyncToken: q.Get("sync_token"),
	}
}

// ListResponse is the payload for paginated list endpoints. NextCursor is
// empty on the last page; SyncToken lets the client resume with only records
// changed since this response.
// swagger:model ListResponse
type ListResponse struct {
	Items      any    `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	SyncToken  string `json:"sync_token"`
}

// NewListResponse builds a ListResponse from a paginated result and sync token.
func NewListResponse[T any](page domain.PaginatedResult[T], syncToken string) ListResponse {
	return ListResponse{
		Items:      page.Items,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		SyncToken:  syncToken,
	}
}
