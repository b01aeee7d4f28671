package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so all responses
// share one content type and every error has the same shape:
//
//	{"error": "validation_error", "message": "Failed to create new user."}
//
// The frontend can rely on those two fields for any 4xx or 5xx.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/courier/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error response. The session middleware
// in package auth writes the same type.
type ErrorResponse = apperror.Response

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader, so callers add cookies and extra headers first.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status line is already out; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation → 400
//	apperror.ErrForbidden  → 403
//	apperror.ErrNotFound   → 404
//	apperror.ErrConflict   → 409
//	anything else          → 500 with a generic message
//
// apperror.NewResponse classifies the error and picks its user-facing
// message. Raw error text from lower layers is never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	body := apperror.NewResponse(err)

	status := http.StatusInternalServerError
	switch body.Error {
	case apperror.KindValidation:
		status = http.StatusBadRequest
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindForbidden:
		status = http.StatusForbidden
	case apperror.KindConflict:
		status = http.StatusConflict
	}

	writeJSON(w, status, body)
}

// decodeJSON reads one JSON value from the request body into dst. Unknown
// fields are ignored; trailing data and oversized bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
