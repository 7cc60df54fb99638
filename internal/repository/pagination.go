package repository

import "backoffice-backend/pkg/errors"

// Constants for pagination
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Pagination represents offset-based pagination parameters.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Validate checks if pagination parameters are valid
func (p Pagination) Validate() error {
	if p.Limit <= 0 {
		return errors.NewValidation("limit must be greater than zero")
	}
	if p.Limit > MaxPageSize {
		return errors.NewValidation("limit cannot exceed 1000")
	}
	if p.Offset < 0 {
		return errors.NewValidation("offset cannot be negative")
	}
	return nil
}

// NewPagination clamps limit into range and applies the default page size.
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// Sort names the column and direction of a list query.
type Sort struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// Page represents a paginated response with its total count. The total is
// computed against the same filter predicate as the rows, never a different
// one.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// HasMore reports whether rows exist beyond this page.
func (p *Page[T]) HasMore() bool {
	return int64(p.Offset+len(p.Items)) < p.Total
}
