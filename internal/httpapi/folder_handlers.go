package httpapi

import (
	"net/http"
	"strings"

	"polisdesk.org/internal/docs"
)

func (a *API) handleFolders(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		// an explicit owner id narrows the listing; out-of-scope owners are
		// rejected, not silently emptied
		folders, err := a.svc.ListFolders(r.Context(), actor, r.URL.Query().Get("userId"))
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
	case http.MethodPost:
		var req docs.CreateFolderInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, msgMissingData)
			return
		}
		folder, err := a.svc.CreateFolder(r.Context(), actor, req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, folder)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleFolderResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/folders/"), "/")
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
	case len(parts) == 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			folder, err := a.svc.GetFolder(r.Context(), actor, id)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, folder)
		case http.MethodDelete:
			if err := a.svc.DeleteFolder(r.Context(), actor, id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "files":
		folderID := parts[0]
		switch r.Method {
		case http.MethodGet:
			files, err := a.svc.ListFiles(r.Context(), actor, folderID)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"files": files})
		case http.MethodPost:
			var req docs.AddFileInput
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, msgMissingData)
				return
			}
			file, err := a.svc.AddFile(r.Context(), actor, folderID, req)
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, file)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	default:
		writeError(w, r, http.StatusNotFound, msgNotFound)
	}
}

func (a *API) handleFileResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/files/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, msgNotFound)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		file, err := a.svc.GetFile(r.Context(), actor, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, file)
	case http.MethodDelete:
		if err := a.svc.DeleteFile(r.Context(), actor, id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
