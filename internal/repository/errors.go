package repository

import "errors"

// Sentinel errors returned by DataClient implementations. The repository
// layer translates them into the application taxonomy; raw data-client error
// shapes never reach callers.
var (
	// ErrNoRows means the write or lookup matched nothing in the caller's
	// scope (missing id, or excluded by a guard predicate).
	ErrNoRows = errors.New("no rows matched")

	// ErrUniqueViolation means an insert or update broke a unique
	// constraint, e.g. a duplicate business code within a company.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// IsNoRows checks if an error is a no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

// IsUniqueViolation checks if an error is a unique-violation sentinel.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}
