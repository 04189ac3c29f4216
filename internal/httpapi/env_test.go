package httpapi

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/auth"
	"polisdesk.org/internal/docs"
	"polisdesk.org/internal/ratelimit"
	"polisdesk.org/internal/reset"
)

const fixturePassword = "shared-fixture-pass"

var (
	fixtureHashOnce sync.Once
	fixtureHash     string
)

// hashing is slow on purpose, so every fixture user shares one hash
func sharedHash(t *testing.T) string {
	t.Helper()
	fixtureHashOnce.Do(func() {
		h, err := auth.HashPassword(fixturePassword)
		if err != nil {
			panic(err)
		}
		fixtureHash = h
	})
	return fixtureHash
}

// memResetStore adapts the in-memory document store to the reset flow so the
// handler tests exercise forgot/reset/login end to end.
type memResetStore struct {
	docs *docs.InMemory

	mu     sync.Mutex
	tokens map[string]*reset.Token
}

func newMemResetStore(store *docs.InMemory) *memResetStore {
	return &memResetStore{docs: store, tokens: make(map[string]*reset.Token)}
}

func (s *memResetStore) AccountByEmail(ctx context.Context, email string) (*reset.Account, error) {
	u, err := s.docs.UserByEmail(ctx, email)
	if err != nil {
		return nil, reset.ErrNotFound
	}
	return &reset.Account{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (s *memResetStore) DeleteTokensForEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tok := range s.tokens {
		if tok.Email == email {
			delete(s.tokens, k)
		}
	}
	return nil
}

func (s *memResetStore) CreateToken(_ context.Context, tok *reset.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tokens[tok.Token] = &cp
	return nil
}

func (s *memResetStore) FindToken(_ context.Context, token string) (*reset.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return nil, reset.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *memResetStore) ConsumeToken(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return false, reset.ErrNotFound
	}
	if tok.Used {
		return false, nil
	}
	tok.Used = true
	return true, nil
}

func (s *memResetStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	u, err := s.docs.User(ctx, userID)
	if err != nil {
		return reset.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return s.docs.UpdateUser(ctx, u)
}

// tokenFor exposes the latest token issued to an email; the handler tests
// read it in place of a delivered mail.
func (s *memResetStore) tokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.Email == email {
			return tok.Token
		}
	}
	return ""
}

type noopMailer struct{}

func (noopMailer) SendPasswordReset(context.Context, string, string, string) error { return nil }
func (noopMailer) SendPasswordChanged(context.Context, string, string) error       { return nil }

type testEnv struct {
	handler    http.Handler
	store      *docs.InMemory
	resetStore *memResetStore
	signer     *auth.TokenSigner
	admin      *docs.User
}

type envOption func(*envConfig)

type envConfig struct {
	apiPolicy  ratelimit.Policy
	authPolicy ratelimit.Policy
}

func withAPIPolicy(p ratelimit.Policy) envOption {
	return func(c *envConfig) { c.apiPolicy = p }
}

func withAuthPolicy(p ratelimit.Policy) envOption {
	return func(c *envConfig) { c.authPolicy = p }
}

// newTestEnv builds a full API over the in-memory store with a seeded cast:
// one admin, two agents, and clients split between them.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{
		// generous defaults so functional tests never trip the limiter
		apiPolicy:  ratelimit.Policy{Window: time.Minute, MaxRequests: 10000},
		authPolicy: ratelimit.Policy{Window: time.Minute, MaxRequests: 10000},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := docs.NewInMemory()
	hash := sharedHash(t)
	now := time.Now().UTC()
	seed := []docs.User{
		{ID: "admin-1", Email: "admin@polisdesk.test", Name: "Dana Mizrahi", Role: access.RoleAdmin},
		{ID: "agent-1", Email: "avi@polisdesk.test", Name: "Avi Levi", Role: access.RoleAgent},
		{ID: "agent-2", Email: "noa@polisdesk.test", Name: "Noa Peretz", Role: access.RoleAgent},
		{ID: "client-1", Email: "client1@polisdesk.test", Name: "Rina Cohen", Role: access.RoleClient, AgentID: "agent-1"},
		{ID: "client-3", Email: "client3@polisdesk.test", Name: "Yossi Mor", Role: access.RoleClient, AgentID: "agent-2"},
	}
	for i := range seed {
		seed[i].PasswordHash = hash
		seed[i].CreatedAt = now
		seed[i].UpdatedAt = now
		if err := store.CreateUser(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed user %s: %v", seed[i].ID, err)
		}
	}
	admin := seed[0]

	svc, err := docs.NewService(store)
	if err != nil {
		t.Fatalf("docs service: %v", err)
	}
	resetStore := newMemResetStore(store)
	rst, err := reset.NewService(resetStore, noopMailer{})
	if err != nil {
		t.Fatalf("reset service: %v", err)
	}
	signer, err := auth.NewTokenSigner("handler-test-secret")
	if err != nil {
		t.Fatalf("token signer: %v", err)
	}

	api := New(Config{
		Service:     svc,
		Reset:       rst,
		Signer:      signer,
		SeedAdmin:   &admin,
		Version:     "test",
		APILimiter:  ratelimit.New(cfg.apiPolicy),
		AuthLimiter: ratelimit.New(cfg.authPolicy),
	})
	return &testEnv{
		handler:    api.Handler(),
		store:      store,
		resetStore: resetStore,
		signer:     signer,
		admin:      &admin,
	}
}

// tokenAs mints a bearer token for a seeded user without going through login.
func (e *testEnv) tokenAs(t *testing.T, id string) string {
	t.Helper()
	u, err := e.store.User(context.Background(), id)
	if err != nil {
		t.Fatalf("fixture user %s: %v", id, err)
	}
	tok, _, err := e.signer.Sign(access.Actor{ID: u.ID, Role: u.Role, AgentID: u.AgentID})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
