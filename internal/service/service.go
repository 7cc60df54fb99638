// Package service implements the business layer between the HTTP handlers
// and the cache-bounded repositories: input validation, filter allow-lists,
// resource-specific rules and best-effort audit dispatch.
package service

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/errors"
)

// Meta is the request context threaded explicitly through every layer:
// the correlation id assigned by the HTTP middleware and the acting user.
type Meta struct {
	CorrelationID string
	Actor         string
}

// ListQuery carries the list-endpoint parameters after HTTP decoding.
type ListQuery struct {
	Page    int
	Limit   int
	SortBy  string
	SortDir string
	Filters map[string]string
}

// Pagination converts the 1-based page number into the repository's
// limit/offset form, applying defaults and clamping.
func (q ListQuery) Pagination() repository.Pagination {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 || limit > repository.MaxPageSize {
		limit = repository.DefaultPageSize
	}
	return repository.Pagination{Limit: limit, Offset: (page - 1) * limit}
}

// Sort resolves the requested sort against the resource's sortable columns,
// falling back to the given default. Unknown columns are dropped rather
// than rejected, like unknown filter keys.
func (q ListQuery) Sort(sortable map[string]bool, fallback string) *repository.Sort {
	column := q.SortBy
	if column == "" || !sortable[column] {
		column = fallback
	}
	if column == "" {
		return nil
	}
	return &repository.Sort{
		Column:     column,
		Descending: strings.EqualFold(q.SortDir, "desc"),
	}
}

var validate = validator.New()

// validateInput runs struct-tag validation and converts failures into the
// application's validation error.
func validateInput(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if ok := errorsAs(err, &verrs); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed '"+fe.Tag()+"'")
			}
			return errors.NewValidation("invalid input: " + strings.Join(fields, "; "))
		}
		return errors.NewValidation("invalid input: " + err.Error())
	}
	return nil
}

// errorsAs is a tiny indirection so validateInput reads without an import
// alias clash between stdlib errors and pkg/errors.
func errorsAs(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
