package reset

import (
	"context"
	"time"
)

// Token is a single password-reset request. Once used or past its expiry it
// is permanently inert; issuing a new token for the same email deletes the
// older rows outright.
type Token struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	Used      bool
}

// Account is the slice of a user record the reset flow needs.
type Account struct {
	ID    string
	Email string
	Name  string
}

// Store describes the persistence operations of the reset flow. Missing rows
// are reported as ErrNotFound.
type Store interface {
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	DeleteTokensForEmail(ctx context.Context, email string) error
	CreateToken(ctx context.Context, tok *Token) error
	FindToken(ctx context.Context, token string) (*Token, error)
	// ConsumeToken flips used from false to true as one conditional write and
	// reports whether this caller won. Two concurrent consumers of the same
	// token must not both observe true.
	ConsumeToken(ctx context.Context, token string) (bool, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
