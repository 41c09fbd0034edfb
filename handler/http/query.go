package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	serr "github.com/i-egik/NameCount/error"
)

const (
	keyCatalogID   = "catalogID"
	keyCounterName = "name"
	keyUserID      = "userID"
)

func decodePayload(r *http.Request, p interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		return serr.Wrap(serr.ErrInvalidInput, "payload: %s", err)
	}

	return nil
}

func extractCatalogID(r *http.Request) (int64, error) {
	return extractID(r, keyCatalogID)
}

func extractCounterName(r *http.Request) (string, error) {
	name := mux.Vars(r)[keyCounterName]

	if name == "" {
		return "", serr.Wrap(serr.ErrInvalidInput, "counter name missing")
	}

	return name, nil
}

func extractUserID(r *http.Request) (int64, error) {
	return extractID(r, keyUserID)
}

func extractID(r *http.Request, key string) (int64, error) {
	raw := mux.Vars(r)[key]

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, serr.Wrap(serr.ErrInvalidInput, "%s '%s' is not a number", key, raw)
	}

	return id, nil
}
