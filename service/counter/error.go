package counter

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for counter service implementations.
var (
	ErrExists   = errors.New("counter exists")
	ErrNotFound = errors.New("counter not found")
)

// Error wraps common counter errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsExists indicates if err is ErrExists.
func IsExists(err error) bool {
	return unwrapError(err) == ErrExists
}

// IsNotFound indicates if err is ErrNotFound.
func IsNotFound(err error) bool {
	return unwrapError(err) == ErrNotFound
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
