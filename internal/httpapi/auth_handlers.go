package httpapi

import (
	"errors"
	"net/http"
	"time"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/audit"
	"polisdesk.org/internal/reset"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      any       `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgMissingData)
		return
	}
	user, err := a.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	actor := access.Actor{ID: user.ID, Role: user.Role, AgentID: user.AgentID}
	token, exp, err := a.signer.Sign(actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(access.ContextWithActor(r.Context(), actor), "auth.login", nil)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: user})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	user, err := a.svc.GetUser(r.Context(), actor, actor.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgMissingData)
		return
	}
	if err := a.reset.Request(r.Context(), req.Email); err != nil {
		handleResetError(w, r, err)
		return
	}
	// identical payload whether or not the email exists
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgResetRequested,
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgMissingData)
		return
	}
	if err := a.reset.Consume(r.Context(), req.Token, req.Password); err != nil {
		handleResetError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgPasswordChanged,
	})
}

// handleResetError maps the reset sentinels: validation-class 400s with
// distinguishing text, 404 for a vanished account, 500 for the rest.
func handleResetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reset.ErrMissingData):
		writeError(w, r, http.StatusBadRequest, msgMissingData)
	case errors.Is(err, reset.ErrPasswordTooShort):
		writeError(w, r, http.StatusBadRequest, msgPasswordTooShort)
	case errors.Is(err, reset.ErrInvalidToken):
		writeError(w, r, http.StatusBadRequest, msgInvalidLink)
	case errors.Is(err, reset.ErrTokenExpired):
		writeError(w, r, http.StatusBadRequest, msgLinkExpired)
	case errors.Is(err, reset.ErrTokenUsed):
		writeError(w, r, http.StatusBadRequest, msgLinkUsed)
	case errors.Is(err, reset.ErrUserGone):
		writeError(w, r, http.StatusNotFound, msgUserNotFound)
	default:
		_ = audit.LogEvent(r.Context(), "http.internal_error", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}
