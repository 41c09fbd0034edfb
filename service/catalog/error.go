package catalog

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for catalog service implementations and validations.
var (
	ErrInvalidEntry = errors.New("invalid entry")
	ErrNotFound     = errors.New("entry not found")
	ErrNotUnique    = errors.New("entry not unique")
)

// Error wraps common catalog errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsInvalidEntry indicates if err is ErrInvalidEntry.
func IsInvalidEntry(err error) bool {
	return unwrapError(err) == ErrInvalidEntry
}

// IsNotFound indicates if err is ErrNotFound.
func IsNotFound(err error) bool {
	return unwrapError(err) == ErrNotFound
}

// IsNotUnique indicates if err is ErrNotUnique.
func IsNotUnique(err error) bool {
	return unwrapError(err) == ErrNotUnique
}

func unwrapError(err error) error {
	switch e := err.(type) {
	case *Error:
		return e.err
	}

	return err
}

func wrapError(err error, format string, args ...interface{}) error {
	return &Error{
		err: err,
		msg: fmt.Sprintf(
			errFmt,
			err,
			fmt.Sprintf(format, args...),
		),
	}
}
