package httpapi

import (
	"errors"
	"net/http"

	"polisdesk.org/internal/docs"
)

type resetSystemRequest struct {
	Confirm string `json:"confirm"`
}

func (a *API) handleResetSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req resetSystemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgMissingData)
		return
	}
	if err := a.svc.ResetSystem(r.Context(), actor, req.Confirm, a.seedAdmin); err != nil {
		if errors.Is(err, docs.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, msgBadConfirm)
			return
		}
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgSystemReset,
	})
}
