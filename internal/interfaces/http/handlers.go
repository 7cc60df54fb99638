package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"backoffice-backend/internal/service"
)

// scoped wraps a handler body with the company-scope extraction and the
// shared error writer, so each endpoint reads as one straight-line flow.
func scoped(logger *zap.Logger, fn func(w http.ResponseWriter, r *http.Request, scope string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		if err := fn(w, r, scope); err != nil {
			writeError(w, r, logger, err)
		}
	}
}

// parseListQuery decodes the shared list-endpoint query parameters.
// Everything that is not page/limit/sort goes into the filter bag; the
// service layer's allow-list decides what survives.
func parseListQuery(r *http.Request) service.ListQuery {
	q := r.URL.Query()
	query := service.ListQuery{
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
		Filters: map[string]string{},
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		query.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		query.Limit = limit
	}
	for key, values := range q {
		switch key {
		case "page", "limit", "sort_by", "sort_dir":
			continue
		}
		if len(values) > 0 {
			query.Filters[key] = values[0]
		}
	}
	return query
}

// idsBody is the request body shared by the bulk endpoints.
type idsBody struct {
	IDs []string `json:"ids"`
}

// bulkResult reports how many records a bulk operation touched.
type bulkResult struct {
	Affected int `json:"affected"`
}

type countResult struct {
	Purged int `json:"purged"`
}
