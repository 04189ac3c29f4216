package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"polisdesk.org/internal/audit"
	"polisdesk.org/internal/auth"
	"polisdesk.org/internal/mail"
)

const (
	defaultTokenTTL = time.Hour
	tokenBytes      = 32
)

// Service issues and consumes single-use password-reset tokens. Requesting a
// reset never reveals whether the email is registered: the caller gets the
// same answer either way.
type Service struct {
	store  Store
	mailer mail.Mailer
	now    func() time.Time
	ttl    time.Duration
	policy auth.PasswordPolicy
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPolicy overrides the password policy applied on consumption.
func WithPolicy(p auth.PasswordPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// NewService constructs the reset manager.
func NewService(store Store, mailer mail.Mailer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("reset store is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	s := &Service{
		store:  store,
		mailer: mailer,
		now:    time.Now,
		ttl:    defaultTokenTTL,
		policy: auth.ResetPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Request issues a fresh token for the email and invalidates every earlier
// one. An unregistered email is not an error: nothing is stored or sent, and
// the caller cannot tell the difference.
func (s *Service) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrMissingData
	}
	acct, err := s.store.AccountByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.DeleteTokensForEmail(ctx, email); err != nil {
		return err
	}
	if err := s.store.CreateToken(ctx, &Token{
		Token:     token,
		Email:     email,
		ExpiresAt: s.now().Add(s.ttl),
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, acct.Email, acct.Name, token); err != nil {
		// mail delivery is best effort; the generic response stands either way
		_ = audit.LogEvent(ctx, "reset.mail.failed", map[string]any{"error": err.Error()})
	}
	_ = audit.LogEvent(ctx, "reset.token.issued", map[string]any{"user_id": acct.ID})
	return nil
}

// Consume validates the token, atomically marks it used, and only then
// persists the new password hash. The losing side of a concurrent consume
// sees the already-used rejection and leaves the password untouched.
func (s *Service) Consume(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return ErrMissingData
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return ErrPasswordTooShort
	}

	tok, err := s.store.FindToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if s.now().After(tok.ExpiresAt) {
		return ErrTokenExpired
	}
	if tok.Used {
		return ErrTokenUsed
	}

	acct, err := s.store.AccountByEmail(ctx, tok.Email)
	if errors.Is(err, ErrNotFound) {
		return ErrUserGone
	}
	if err != nil {
		return err
	}

	won, err := s.store.ConsumeToken(ctx, token)
	if err != nil {
		return err
	}
	if !won {
		return ErrTokenUsed
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordChanged(ctx, acct.Email, acct.Name); err != nil {
		_ = audit.LogEvent(ctx, "reset.mail.failed", map[string]any{"error": err.Error()})
	}
	_ = audit.LogEvent(ctx, "reset.password.changed", map[string]any{"user_id": acct.ID})
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
