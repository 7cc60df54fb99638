package repository

// Filter operators understood by every DataClient implementation.
const (
	OpEq      = "eq"
	OpNeq     = "neq"
	OpIn      = "in"
	OpILike   = "ilike"
	OpGte     = "gte"
	OpLte     = "lte"
	OpIsNull  = "is_null"
	OpNotNull = "not_null"
)

// Condition is one column predicate.
type Condition struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  interface{} `json:"value,omitempty"`
}

// Filter is a conjunction of conditions. Repositories build the predicate
// once and hand the same value to the rows and the count sub-queries, so a
// page can never disagree with its total.
type Filter []Condition

// Eq appends an equality condition.
func (f Filter) Eq(column string, value interface{}) Filter {
	return append(f, Condition{Column: column, Op: OpEq, Value: value})
}

// In appends a set-membership condition.
func (f Filter) In(column string, values []string) Filter {
	return append(f, Condition{Column: column, Op: OpIn, Value: values})
}

// ILike appends a case-insensitive substring condition.
func (f Filter) ILike(column, pattern string) Filter {
	return append(f, Condition{Column: column, Op: OpILike, Value: pattern})
}

// Gte appends a greater-or-equal condition.
func (f Filter) Gte(column string, value interface{}) Filter {
	return append(f, Condition{Column: column, Op: OpGte, Value: value})
}

// Lte appends a less-or-equal condition.
func (f Filter) Lte(column string, value interface{}) Filter {
	return append(f, Condition{Column: column, Op: OpLte, Value: value})
}

// IsNull appends a null check.
func (f Filter) IsNull(column string) Filter {
	return append(f, Condition{Column: column, Op: OpIsNull})
}

// NotNull appends a not-null check.
func (f Filter) NotNull(column string) Filter {
	return append(f, Condition{Column: column, Op: OpNotNull})
}
