package repository

import (
	"context"
	"encoding/json"
)

// DataClient is the managed data-access collaborator the repositories sit in
// front of. Every method is parameterized by scope, the company id that
// forms the tenant boundary, and implementations must guarantee no query
// ever crosses it.
//
// Implementations return the sentinel errors of this package (ErrNoRows,
// ErrUniqueViolation) for the conditions the repositories translate; any
// other failure is wrapped by the repository into a repository-level error.
type DataClient interface {
	// Select returns one page of rows matching filter.
	Select(ctx context.Context, scope, table string, filter Filter, sort *Sort, page Pagination) ([]json.RawMessage, error)

	// Count returns the number of rows matching filter.
	Count(ctx context.Context, scope, table string, filter Filter) (int64, error)

	// Distinct returns the distinct non-empty values of column among rows
	// matching filter, for aggregate filter-option lists.
	Distinct(ctx context.Context, scope, table, column string, filter Filter) ([]string, error)

	// Insert stores record and returns the stored row.
	Insert(ctx context.Context, scope, table string, record interface{}) (json.RawMessage, error)

	// Update patches the row with the given id, additionally constrained by
	// guard. Returns ErrNoRows when nothing matched.
	Update(ctx context.Context, scope, table, id string, patch map[string]interface{}, guard Filter) (json.RawMessage, error)

	// Delete removes the row with the given id, additionally constrained by
	// guard. Returns ErrNoRows when nothing matched.
	Delete(ctx context.Context, scope, table, id string, guard Filter) error

	// BulkUpdate patches every row whose id is in ids, constrained by guard,
	// and returns the number of rows written.
	BulkUpdate(ctx context.Context, scope, table string, ids []string, patch map[string]interface{}, guard Filter) (int, error)

	// BulkDelete removes every row whose id is in ids, constrained by guard,
	// and returns the number of rows removed.
	BulkDelete(ctx context.Context, scope, table string, ids []string, guard Filter) (int, error)
}
