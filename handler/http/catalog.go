package http

import (
	"context"
	"net/http"

	"github.com/i-egik/NameCount/core"
	"github.com/i-egik/NameCount/service/catalog"
)

// CatalogList returns all registered counters.
func CatalogList(fn core.CatalogListFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		es, err := fn(ctx)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, &payloadCatalogEntries{
			payloadEnvelope: payloadEnvelope{Status: statusSuccess},
			Entries:         es,
		})
	}
}

// CatalogGet returns the catalog entry of a counter name.
func CatalogGet(fn core.CatalogGetFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		name, err := extractCounterName(r)
		if err != nil {
			respondError(w, err)
			return
		}

		e, err := fn(ctx, name)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCatalogEntry(e))
	}
}

// CatalogPut registers a counter name, an existing registration is returned
// unchanged.
func CatalogPut(fn core.CatalogRegisterFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		p := payloadCatalogPut{}

		name, err := extractCounterName(r)
		if err != nil {
			respondError(w, err)
			return
		}

		if err := decodePayload(r, &p); err != nil {
			respondError(w, err)
			return
		}

		e, err := fn(ctx, name, p.Description, p.DefaultValue)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCatalogEntry(e))
	}
}

// CatalogUpdate applies a partial update to the catalog entry with the given
// id.
func CatalogUpdate(fn core.CatalogUpdateFunc) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		p := catalog.Patch{}

		id, err := extractCatalogID(r)
		if err != nil {
			respondError(w, err)
			return
		}

		if err := decodePayload(r, &p); err != nil {
			respondError(w, err)
			return
		}

		e, err := fn(ctx, id, p)
		if err != nil {
			respondError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, newPayloadCatalogEntry(e))
	}
}

type payloadCatalogEntries struct {
	payloadEnvelope

	Entries catalog.List `json:"entries"`
}

type payloadCatalogEntry struct {
	payloadEnvelope

	Entry *catalog.Entry `json:"entry"`
}

func newPayloadCatalogEntry(e *catalog.Entry) *payloadCatalogEntry {
	return &payloadCatalogEntry{
		payloadEnvelope: payloadEnvelope{Status: statusSuccess},
		Entry:           e,
	}
}

type payloadCatalogPut struct {
	DefaultValue int64  `json:"default_value"`
	Description  string `json:"description"`
}
