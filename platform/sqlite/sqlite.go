package sqlite

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DSNMemory opens a private in-memory database.
const DSNMemory = ":memory:"

// ErrUniqueViolation is the equivalent of a failed UNIQUE constraint.
var ErrUniqueViolation = errors.New("unique violation")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

// Open returns a handle for the database at dsn. SQLite serialises writers, so
// the handle is limited to a single connection which also keeps in-memory
// databases alive for its lifetime.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// IsUniqueViolation indicates if err is ErrUniqueViolation.
func IsUniqueViolation(err error) bool {
	return err == ErrUniqueViolation
}

// WrapError maps SQLite errors services react to onto their equivalents,
// otherwise returns the original error.
func WrapError(err error) error {
	var e *sqlite.Error

	if errors.As(err, &e) {
		switch e.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrUniqueViolation
		}
	}

	return err
}
