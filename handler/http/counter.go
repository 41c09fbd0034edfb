package http

import (
	"context"
	"net/http"

	"github.com/i-egik/NameCount/core"
)

// CounterGet returns the current value of a named counter for a user.
func CounterGet(fn core.CounterGetFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		name, userID, err := extractCounter(r)
		if err != nil {
			respondError(w, err)
			return
		}

		v, err := fn(ctx, name, userID)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCounter(name, userID, v))
	}
}

// CounterIncrement adds the requested delta to a named counter of a user.
func CounterIncrement(fn core.CounterIncrementFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		p := payloadIncrement{Delta: 1}

		name, userID, err := extractCounter(r)
		if err != nil {
			respondError(w, err)
			return
		}

		if err := decodePayload(r, &p); err != nil {
			respondError(w, err)
			return
		}

		v, err := fn(ctx, name, userID, p.Delta)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCounter(name, userID, v))
	}
}

// CounterReset sets a named counter of a user back to zero.
func CounterReset(fn core.CounterResetFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		name, userID, err := extractCounter(r)
		if err != nil {
			respondError(w, err)
			return
		}

		v, err := fn(ctx, name, userID)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCounter(name, userID, v))
	}
}

func extractCounter(r *http.Request) (string, int64, error) {
	name, err := extractCounterName(r)
	if err != nil {
		return "", 0, err
	}

	userID, err := extractUserID(r)
	if err != nil {
		return "", 0, err
	}

	return name, userID, nil
}

type payloadCounter struct {
	payloadEnvelope

	Name   string `json:"name"`
	UserID int64  `json:"user_id"`
	Value  int64  `json:"value"`
}

func newPayloadCounter(name string, userID, value int64) *payloadCounter {
	return &payloadCounter{
		payloadEnvelope: payloadEnvelope{Status: statusSuccess},
		Name:            name,
		UserID:          userID,
		Value:           value,
	}
}

type payloadIncrement struct {
	Delta int64 `json:"delta"`
}
