package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"yawmiya/internal/core"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with a generic body; the real error goes
// to the log, not the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}

	var status int
	switch {
	case core.IsValidation(err):
		status = http.StatusBadRequest
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			body.Field = ve.Field
		}
	case core.IsPermission(err):
		status = http.StatusForbidden
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsConflict(err):
		status = http.StatusConflict
	case core.IsStoreUnavailable(err):
		status = http.StatusServiceUnavailable
		body.Error = "record store unavailable, try again"
	default:
		status = http.StatusInternalServerError
		body.Error = "internal error"
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, &core.ValidationError{Field: "body", Message: "invalid JSON body"})
		return false
	}
	return true
}
