package change

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for change sources and codecs.
var (
	ErrEmptySource    = errors.New("empty source")
	ErrInvalidCodec   = errors.New("invalid codec")
	ErrMalformedEvent = errors.New("malformed event")
)

// Error wraps common change errors.
type Error struct {
	err error
	msg string
}

func (e Error) Error() string {
	return e.msg
}

// IsEmptySource indicates if err is ErrEmptySource.
func IsEmptySource(err error) bool {
	return unwrapError(err) == ErrEmptySource
}

// IsInvalidCodec indicates if err is ErrInvalidCodec.
func IsInvalidCodec(err error) bool {
	return unwrapError(err) == ErrInvalidCodec
}

// IsMalformedEvent indicates if err is ErrMalformedEvent.
func IsMalformedEvent(err error) bool {
	return unwrapError(err) == ErrMalformedEvent
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
