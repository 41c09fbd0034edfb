package limiter

import (
	"context"
	"time"
)

// Limitee is the limit that we want to apply.
type Limitee struct {
	Hash       string
	Limit      int64
	WindowSize time.Duration
}

// Limiter is the one providing the actual limitation implementation.
type Limiter interface {
	// Request checks if limitee is still within its limit and takes one hit
	// off the remaining quota. A negative quota means the limit is exceeded.
	// The returned time is the end of the current window.
	Request(ctx context.Context, limitee *Limitee) (int64, time.Time, error)
}
