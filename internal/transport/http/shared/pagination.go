package shared

import (
	"net/http"
	"strconv"
)

// Pagination is a limit/offset window over a listing. Limit 0 means no limit.
type Pagination struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := Pagination{Limit: defaultLimit}
	query := r.URL.Query()
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		page.Limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v >= 0 {
		page.Offset = v
	}
	if maxLimit > 0 && (page.Limit == 0 || page.Limit > maxLimit) {
		page.Limit = maxLimit
	}
	return page
}

// Window cuts the page out of a list held in memory, such as the users tab.
func Window[T any](items []T, page Pagination) []T {
	if page.Offset >= len(items) {
		return items[:0]
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}
