package service

import (
	"sort"
	"strconv"

	"backoffice-backend/internal/repository"
)

// FilterRule builds the condition for one allow-listed filter key. Build
// returns false to drop the value; malformed input is dropped, not
// rejected, so filtering stays permissive for forward-compatible clients.
type FilterRule struct {
	Build func(raw string) (repository.Condition, bool)
}

// FilterSchema is the explicit allow-list mapping raw query keys to rules.
// Anything not in the map never reaches the data layer.
type FilterSchema map[string]FilterRule

// SanitizeFilter converts a raw key/value filter bag into a predicate using
// the schema. Keys are processed in sorted order so the resulting predicate
// and the cache key derived from it are deterministic.
func SanitizeFilter(raw map[string]string, schema FilterSchema) repository.Filter {
	if len(raw) == 0 {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var filter repository.Filter
	for _, key := range keys {
		rule, ok := schema[key]
		if !ok {
			continue
		}
		value := raw[key]
		if value == "" {
			continue
		}
		if cond, ok := rule.Build(value); ok {
			filter = append(filter, cond)
		}
	}
	return filter
}

// EqRule matches the column exactly.
func EqRule(column string) FilterRule {
	return FilterRule{Build: func(raw string) (repository.Condition, bool) {
		return repository.Condition{Column: column, Op: repository.OpEq, Value: raw}, true
	}}
}

// BoolRule matches a boolean column; non-boolean input is dropped.
func BoolRule(column string) FilterRule {
	return FilterRule{Build: func(raw string) (repository.Condition, bool) {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return repository.Condition{}, false
		}
		return repository.Condition{Column: column, Op: repository.OpEq, Value: b}, true
	}}
}

// EnumRule matches the column against an enumerated set; values outside the
// set are dropped.
func EnumRule(column string, allowed ...string) FilterRule {
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	return FilterRule{Build: func(raw string) (repository.Condition, bool) {
		if !set[raw] {
			return repository.Condition{}, false
		}
		return repository.Condition{Column: column, Op: repository.OpEq, Value: raw}, true
	}}
}

// SearchRule matches the column case-insensitively on a substring.
func SearchRule(column string) FilterRule {
	return FilterRule{Build: func(raw string) (repository.Condition, bool) {
		return repository.Condition{Column: column, Op: repository.OpILike, Value: "%" + raw + "%"}, true
	}}
}
