// Package httpapi is the HTTP surface of the service: routing, middleware,
// authentication and the translation of domain errors into the response
// taxonomy.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"polisdesk.org/internal/auth"
	"polisdesk.org/internal/docs"
	"polisdesk.org/internal/obs"
	"polisdesk.org/internal/ratelimit"
	"polisdesk.org/internal/reset"
)

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API's collaborators.
type Config struct {
	Service *docs.Service
	Reset   *reset.Service
	Signer  *auth.TokenSigner
	// SeedAdmin is re-upserted by the reset-system operation.
	SeedAdmin  *docs.User
	ReadyProbe ReadyProbe
	Version    string

	// Limiters default to the standard tiers when nil.
	APILimiter  *ratelimit.Limiter
	AuthLimiter *ratelimit.Limiter
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	svc         *docs.Service
	reset       *reset.Service
	signer      *auth.TokenSigner
	seedAdmin   *docs.User
	readyProbe  ReadyProbe
	version     string
	apiLimiter  *ratelimit.Limiter
	authLimiter *ratelimit.Limiter
}

func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		svc:         cfg.Service,
		reset:       cfg.Reset,
		signer:      cfg.Signer,
		seedAdmin:   cfg.SeedAdmin,
		readyProbe:  cfg.ReadyProbe,
		version:     cfg.Version,
		apiLimiter:  cfg.APILimiter,
		authLimiter: cfg.AuthLimiter,
	}
	if a.apiLimiter == nil {
		a.apiLimiter = ratelimit.New(ratelimit.APIPolicy)
	}
	if a.authLimiter == nil {
		a.authLimiter = ratelimit.New(ratelimit.AuthPolicy)
	}

	a.mux.HandleFunc("/api/health", a.handleHealth)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/session", a.handleSession)
	a.mux.HandleFunc("/api/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("/api/auth/reset-password", a.handleResetPassword)

	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.HandleFunc("/api/users/orphaned", a.handleOrphanedUsers)
	a.mux.HandleFunc("/api/users/reassign", a.handleReassignClients)
	a.mux.HandleFunc("/api/users/", a.handleUserResource)

	a.mux.HandleFunc("/api/folders", a.handleFolders)
	a.mux.HandleFunc("/api/folders/", a.handleFolderResource)
	a.mux.HandleFunc("/api/files/", a.handleFileResource)

	a.mux.HandleFunc("/api/notifications", a.handleNotifications)
	a.mux.HandleFunc("/api/notifications/", a.handleNotificationResource)
	a.mux.HandleFunc("/api/activities", a.handleActivities)

	a.mux.HandleFunc("/api/admin/reset-system", a.handleResetSystem)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. The rate limiter
// sits in front of authentication: a limited caller never reaches the
// credential path.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = a.rateLimit(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "polisdesk-api",
		"version": a.version,
	})
}
