package api

import (
	"net/http"
	"strconv"
)

type paginationMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	// Count is the number of items in this page.
	Count int `json:"count"`
}

// parsePaginationParams reads ?offset=20&limit=10, falling back to
// defaultLimit for a missing or out of range limit.
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func calculatePaginationMeta(limit, offset, count int) paginationMeta {
	return paginationMeta{
		Limit:  limit,
		Offset: offset,
		Count:  count,
	}
}
