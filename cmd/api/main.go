package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/auth"
	"polisdesk.org/internal/config"
	"polisdesk.org/internal/docs"
	"polisdesk.org/internal/events"
	"polisdesk.org/internal/httpapi"
	"polisdesk.org/internal/ids"
	"polisdesk.org/internal/mail"
	"polisdesk.org/internal/obs"
	"polisdesk.org/internal/ratelimit"
	"polisdesk.org/internal/reset"
	"polisdesk.org/internal/store/pg"
)

var (
	version = "0.4.0"
	commit  = "dev" // overridden via -ldflags at release builds
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	// Store selection: Postgres when a DSN is set, otherwise the in-memory
	// store for local and demo runs.
	var (
		docStore docs.Store
		resStore reset.Store
		probe    httpapi.ReadyProbe
		pgStore  *pg.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		docStore = pgStore
		resStore = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		mem := docs.NewInMemory()
		docStore = mem
		resStore = reset.NewInMemory(directory{store: mem})
		log.Printf("no POLISDESK_PG_DSN set, running with the in-memory store")
	}

	admin, err := seedAdmin(ctx, docStore, cfg)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	svc, err := docs.NewService(docStore, docs.WithProducer(producer))
	if err != nil {
		log.Fatalf("docs service: %v", err)
	}
	mailer := &mail.LogMailer{BaseURL: cfg.BaseURL}
	resetSvc, err := reset.NewService(resStore, mailer)
	if err != nil {
		log.Fatalf("reset service: %v", err)
	}
	signer, err := auth.NewTokenSigner(cfg.AuthSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	apiLimiter := ratelimit.New(ratelimit.APIPolicy)
	authLimiter := ratelimit.New(ratelimit.AuthPolicy)
	apiLimiter.StartSweeper(time.Minute)
	authLimiter.StartSweeper(time.Minute)

	api := httpapi.New(httpapi.Config{
		Service:     svc,
		Reset:       resetSvc,
		Signer:      signer,
		SeedAdmin:   admin,
		ReadyProbe:  probe,
		Version:     version,
		APILimiter:  apiLimiter,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting polisdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	apiLimiter.Stop()
	authLimiter.Stop()
	if producer != nil {
		_ = producer.Close()
	}
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// seedAdmin upserts the administrator account from the environment. The hash
// is recomputed on every boot so rotating the password in config takes effect
// without manual surgery.
func seedAdmin(ctx context.Context, store docs.Store, cfg config.Config) (*docs.User, error) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	existing, err := store.UserByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		existing.Name = cfg.AdminName
		existing.PasswordHash = hash
		existing.Role = access.RoleAdmin
		existing.UpdatedAt = now
		return existing, store.UpdateUser(ctx, existing)
	}
	if !errors.Is(err, docs.ErrNotFound) {
		return nil, err
	}

	u := &docs.User{
		ID:           ids.New(),
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Name:         cfg.AdminName,
		Role:         access.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return u, store.CreateUser(ctx, u)
}

// directory adapts the in-memory document store to the reset flow's account
// operations.
type directory struct {
	store docs.Store
}

func (d directory) AccountByEmail(ctx context.Context, email string) (*reset.Account, error) {
	u, err := d.store.UserByEmail(ctx, email)
	if errors.Is(err, docs.ErrNotFound) {
		return nil, reset.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reset.Account{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (d directory) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	u, err := d.store.User(ctx, userID)
	if errors.Is(err, docs.ErrNotFound) {
		return reset.ErrNotFound
	}
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return d.store.UpdateUser(ctx, u)
}
