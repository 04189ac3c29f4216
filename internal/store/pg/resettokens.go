package pg

import (
	"context"
	"database/sql"
	"errors"

	"polisdesk.org/internal/reset"
)

// reset.Store implementation. The reset flow only ever sees the narrow
// Account projection of a user row.

func (s *Store) AccountByEmail(ctx context.Context, email string) (*reset.Account, error) {
	var a reset.Account
	err := s.db.QueryRowContext(ctx, `
		select id, email, name from users where email=$1
	`, email).Scan(&a.ID, &a.Email, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reset.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) DeleteTokensForEmail(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `delete from password_reset_tokens where email=$1`, email)
	return err
}

func (s *Store) CreateToken(ctx context.Context, tok *reset.Token) error {
	_, err := s.db.ExecContext(ctx, `
		insert into password_reset_tokens (token, email, expires_at, used)
		values ($1,$2,$3,false)
	`, tok.Token, tok.Email, tok.ExpiresAt)
	return err
}

func (s *Store) FindToken(ctx context.Context, token string) (*reset.Token, error) {
	var t reset.Token
	err := s.db.QueryRowContext(ctx, `
		select token, email, expires_at, used from password_reset_tokens where token=$1
	`, token).Scan(&t.Token, &t.Email, &t.ExpiresAt, &t.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reset.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ConsumeToken flips used from false to true as a single conditional update.
// A concurrent consumer of the same token matches zero rows and loses.
func (s *Store) ConsumeToken(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update password_reset_tokens set used=true where token=$1 and used=false
	`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash=$2, updated_at=now() where id=$1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}
