package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"polisdesk.org/internal/audit"
	"polisdesk.org/internal/docs"
	"polisdesk.org/internal/obs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, msgInvalidInput)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

// handleDomainError converts docs errors into the response taxonomy. Every
// handler funnels through here so nothing reaches the transport unclassified.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *docs.ConflictError
	switch {
	case errors.Is(err, docs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, msgNotFound)
	case errors.Is(err, docs.ErrSelfDelete):
		writeError(w, r, http.StatusBadRequest, msgSelfDelete)
	case errors.Is(err, docs.ErrForbidden):
		obs.IncAuthFailure("forbidden")
		writeError(w, r, http.StatusForbidden, msgForbidden)
	case errors.Is(err, docs.ErrUnsupportedFile):
		writeError(w, r, http.StatusBadRequest, msgUnsupportedFile)
	case errors.As(err, &conflict):
		writeError(w, r, http.StatusBadRequest, conflictMessage(conflict.Field))
	case errors.Is(err, docs.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, msgInvalidInput)
	case errors.Is(err, docs.ErrInvalidCredentials):
		obs.IncAuthFailure("credentials")
		writeError(w, r, http.StatusUnauthorized, msgInvalidCredentials)
	default:
		_ = audit.LogEvent(r.Context(), "http.internal_error", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

func conflictMessage(field string) string {
	switch field {
	case "email":
		return msgDuplicateEmail
	case "phone":
		return msgDuplicatePhone
	case "id_number":
		return msgDuplicateIDNumber
	default:
		return msgDuplicateGeneric
	}
}
