package pg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultNamespace identifies the schema used when none is configured.
const DefaultNamespace = "named"

// URLTest is the connection string template used by integration tests, it
// expects the current username.
const URLTest = "postgres://%s@127.0.0.1:5432/named_test?sslmode=disable&connect_timeout=5"

const (
	codeRelationNotFound = "42P01"
	codeUniqueViolation  = "23505"

	fmtClause = "\nAND "
	fmtSET    = "SET\n%s"
	fmtWHERE  = "WHERE\n%s"
)

// Equivalents of the Postgres errors the services react to.
var (
	ErrRelationNotFound = errors.New("relation not found")
	ErrUniqueViolation  = errors.New("unique violation")
)

// To ensure idempotence we want to create the index only if it doesn't exist.
// We fallback to a conditional create taken from:
// http://dba.stackexchange.com/a/35626.
const guardIndex = `DO $$
		BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_indexes WHERE schemaname = '%s' AND indexname = '%s'
		) THEN
		%s;
		END IF;
		END$$;`

// ClausesToWhere transforms a list of SQL clauses into a WHERE statement.
func ClausesToWhere(clauses ...string) string {
	return fmt.Sprintf(fmtWHERE, strings.Join(clauses, fmtClause))
}

// AssignmentsToSet transforms a list of column assignments into a SET
// statement.
func AssignmentsToSet(assignments ...string) string {
	return fmt.Sprintf(fmtSET, strings.Join(assignments, ",\n"))
}

// GuardIndex wraps an index creation query with a condition to prevent conflicts.
func GuardIndex(namespace, index, query string) string {
	return fmt.Sprintf(
		guardIndex,
		namespace,
		index,
		fmt.Sprintf(query, index, namespace),
	)
}

// IsRelationNotFound indicates if err is ErrRelationNotFound.
func IsRelationNotFound(err error) bool {
	return err == ErrRelationNotFound
}

// IsUniqueViolation indicates if err is ErrUniqueViolation.
func IsUniqueViolation(err error) bool {
	return err == ErrUniqueViolation
}

// WrapError maps the Postgres errors services react to onto their
// equivalents, otherwise returns the original error.
func WrapError(err error) error {
	if err, ok := err.(*pq.Error); ok {
		switch err.Code {
		case codeRelationNotFound:
			return ErrRelationNotFound
		case codeUniqueViolation:
			return ErrUniqueViolation
		}
	}

	return err
}
