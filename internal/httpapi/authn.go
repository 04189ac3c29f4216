package httpapi

import (
	"net/http"
	"strings"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = map[string]bool{
	"/api/health":               true,
	"/metrics":                  true,
	"/api/auth/login":           true,
	"/api/auth/forgot-password": true,
	"/api/auth/reset-password":  true,
	"/":                         true,
}

// withAuth resolves the bearer token into an actor on the context. Paths
// outside the public set without a valid token get a generic 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			obs.IncAuthFailure("unauthenticated")
			writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		actor, err := a.signer.Parse(token)
		if err != nil {
			obs.IncAuthFailure("unauthenticated")
			writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.ContextWithActor(r.Context(), actor)))
	})
}

// actor pulls the authenticated actor set by withAuth. A missing actor on a
// protected path means a routing bug, answered as 401 rather than a panic.
func (a *API) actor(w http.ResponseWriter, r *http.Request) (access.Actor, bool) {
	actor, ok := access.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, msgUnauthenticated)
		return access.Actor{}, false
	}
	return actor, true
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}
