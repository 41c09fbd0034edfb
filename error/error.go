package error

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// General-purpose errors.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrNotFound      = errors.New("not found")
	ErrUnavailable   = errors.New("store unavailable")
)

// Error wrapper.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// Unwrap exposes the wrapped sentinel to errors.Is.
func (e Error) Unwrap() error {
	return e.err
}

// IsInvalidInput indicates if err is ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return unwrapError(err) == ErrInvalidInput
}

// IsLimitExceeded indicates if err is ErrLimitExceeded.
func IsLimitExceeded(err error) bool {
	return unwrapError(err) == ErrLimitExceeded
}

// IsNotFound indicates if err is ErrNotFound.
func IsNotFound(err error) bool {
	return unwrapError(err) == ErrNotFound
}

// IsUnavailable indicates if err is ErrUnavailable.
func IsUnavailable(err error) bool {
	return unwrapError(err) == ErrUnavailable
}

// Wrap constructs an Error with proper messaging.
func Wrap(err error, format string, args ...interface{}) error {
	return &Error{
		err: err,
		msg: fmt.Sprintf(
			errFmt,
			err, fmt.Sprintf(format, args...),
		),
	}
}

func unwrapError(err error) error {
	switch e := err.(type) {
	case *Error:
		return e.err
	}

	return err
}
