package http

import (
	"context"
	"net/http"

	"github.com/i-egik/NameCount/core"
	serr "github.com/i-egik/NameCount/error"
)

// NotFound responds to requests for routes which don't exist.
func NotFound() Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		respondError(w, serr.Wrap(serr.ErrNotFound, "route %s %s", r.Method, r.URL.Path))
	}
}

func respondError(w http.ResponseWriter, err error) {
	var (
		statusCode = http.StatusInternalServerError
		status     = statusFailure
	)

	switch {
	case core.IsNotFound(err), serr.IsNotFound(err):
		statusCode = http.StatusNotFound
		status = statusNotFound
	case core.IsInvalidEntity(err), serr.IsInvalidInput(err):
		statusCode = http.StatusBadRequest
	case serr.IsLimitExceeded(err):
		statusCode = http.StatusTooManyRequests
	}

	respondJSON(w, statusCode, &payloadEnvelope{
		Status: status,
		Error:  &apiError{Message: err.Error()},
	})
}
