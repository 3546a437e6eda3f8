package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
var (
	// ErrAlreadyExists indicates a record with the same ID already exists,
	// e.g. a second project whose name slugs to an existing key.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates concurrent writes to the same records.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// NotFoundError names the missing record. errors.Is(err, ErrNotFound)
// holds for it.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Table, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(table, id string) error {
	return &NotFoundError{Table: table, ID: id}
}

// queryErrors maps SurrealDB query error messages to sentinels.
var queryErrors = []struct {
	fragment string
	sentinel error
}{
	{"already exists", ErrAlreadyExists},
	{"Transaction conflict", ErrTransactionConflict},
}

// wrapQueryError wraps a SurrealDB query error with the matching sentinel.
// Other errors are returned unchanged.
func wrapQueryError(err error) error {
	var queryErr *surrealdb.QueryError
	if !errors.As(err, &queryErr) {
		return err
	}
	for _, qe := range queryErrors {
		if strings.Contains(queryErr.Message, qe.fragment) {
			return fmt.Errorf("%w: %s", qe.sentinel, queryErr.Message)
		}
	}
	return err
}
