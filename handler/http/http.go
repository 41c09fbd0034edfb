package http

import (
	"context"
	"encoding/json"
	"net/http"
)

// Statuses reported in every response envelope.
const (
	statusFailure  = "failure"
	statusNotFound = "not_found"
	statusSuccess  = "success"
)

// Handler is the gateway specific http.HandlerFunc expecting a context.Context.
type Handler func(context.Context, http.ResponseWriter, *http.Request)

// Middleware can be used to chain Handlers with different responsibilities.
type Middleware func(Handler) Handler

// Chain takes a varidatic number of Middlewares and returns a combined
// Middleware.
func Chain(ms ...Middleware) Middleware {
	return func(handler Handler) Handler {
		for i := len(ms) - 1; i >= 0; i-- {
			handler = ms[i](handler)
		}

		return handler
	}
}

// Wrap takes a Middleware and Handler and returns an http.HandlerFunc.
func Wrap(
	middleware Middleware,
	handler Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(handler)(r.Context(), w, r)
	}
}

// HealthCheck reports the liveliness of a backing service.
type HealthCheck func(ctx context.Context) error

// Health checks for liveliness of backing services and responds with status.
func Health(checks map[string]HealthCheck) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		res := struct {
			Healthy  bool            `json:"healthy"`
			Services map[string]bool `json:"services"`
		}{
			Healthy:  true,
			Services: map[string]bool{},
		}

		for name, check := range checks {
			res.Services[name] = true

			if err := check(ctx); err != nil {
				res.Healthy = false
				res.Services[name] = false
			}
		}

		if !res.Healthy {
			respondJSON(w, http.StatusInternalServerError, &res)
			return
		}

		respondJSON(w, http.StatusOK, &res)
	}
}

type apiError struct {
	Message string `json:"message"`
}

type payloadEnvelope struct {
	Status string    `json:"status"`
	Error  *apiError `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
