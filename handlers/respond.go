package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kevinaaaquil/readersync/progress"
	"github.com/kevinaaaquil/readersync/reconcile"
	"github.com/kevinaaaquil/readersync/verification"
)

const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid json")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

// respondError maps domain errors to a status. Anything unrecognised is
// logged and reported with the generic fallback message only.
func respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, errInvalidJSON),
		verification.IsValidation(err),
		errors.Is(err, verification.ErrNotFoundOrExpired),
		errors.Is(err, progress.ErrInvalidDocument),
		errors.Is(err, progress.ErrInvalidPreferences),
		errors.Is(err, progress.ErrInvalidBookmarks),
		errors.Is(err, reconcile.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reconcile.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error(fallback, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
