package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"polisdesk.org/internal/docs"
)

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		notifications, err := a.svc.ListNotifications(r.Context(), actor)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
	case http.MethodPost:
		var req docs.CreateNotificationInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, msgMissingData)
			return
		}
		n, err := a.svc.CreateNotification(r.Context(), actor, req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/notifications/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	parts := strings.Split(path, "/")
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "read":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.svc.MarkNotificationRead(r.Context(), actor, parts[0]); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if err := a.svc.DeleteNotification(r.Context(), actor, parts[0]); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		writeError(w, r, http.StatusNotFound, msgNotFound)
	}
}

func (a *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	activities, err := a.svc.ListActivities(r.Context(), actor, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
