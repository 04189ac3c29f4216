package reset

import (
	"context"
	"sync"
)

// Directory is the account side of the reset flow: lookups and the final
// password write. The database-free deployment backs it with the in-memory
// document store.
type Directory interface {
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// InMemory keeps reset tokens in process memory and delegates account
// operations to a Directory. It serves the standalone mode that runs without
// Postgres.
type InMemory struct {
	dir Directory

	mu     sync.Mutex
	tokens map[string]*Token
}

var _ Store = (*InMemory)(nil)

func NewInMemory(dir Directory) *InMemory {
	return &InMemory{dir: dir, tokens: make(map[string]*Token)}
}

func (s *InMemory) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.dir.AccountByEmail(ctx, email)
}

func (s *InMemory) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.dir.UpdatePassword(ctx, userID, passwordHash)
}

func (s *InMemory) DeleteTokensForEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tok := range s.tokens {
		if tok.Email == email {
			delete(s.tokens, k)
		}
	}
	return nil
}

func (s *InMemory) CreateToken(_ context.Context, tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tokens[tok.Token] = &cp
	return nil
}

func (s *InMemory) FindToken(_ context.Context, token string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *InMemory) ConsumeToken(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return false, ErrNotFound
	}
	if tok.Used {
		return false, nil
	}
	tok.Used = true
	return true, nil
}
