package cache

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for cache implementations.
var (
	ErrInvalidCodec = errors.New("invalid codec")
	ErrKeyNotFound  = errors.New("key not found")
	ErrOverflow     = errors.New("value out of range")
	ErrValueCodec   = errors.New("value codec")
)

// Error wraps common cache errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsInvalidCodec checks if err is ErrInvalidCodec.
func IsInvalidCodec(err error) bool {
	return unwrapError(err) == ErrInvalidCodec
}

// IsKeyNotFound checks if err is ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	return unwrapError(err) == ErrKeyNotFound
}

// IsOverflow checks if err is ErrOverflow.
func IsOverflow(err error) bool {
	return unwrapError(err) == ErrOverflow
}

// IsValueCodec checks if err is ErrValueCodec.
func IsValueCodec(err error) bool {
	return unwrapError(err) == ErrValueCodec
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
