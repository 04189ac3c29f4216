// Package pg is the Postgres persistence layer. It implements docs.Store and
// reset.Store over database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/docs"
	"polisdesk.org/internal/reset"
)

type Store struct {
	db *sql.DB
}

var (
	_ docs.Store  = (*Store)(nil)
	_ reset.Store = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection (tests use a sqlmock handle).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const pgUniqueViolation = "23505"

// mapConflict converts a unique-constraint violation into a *ConflictError
// naming the offending field, derived from the constraint name.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	for _, field := range []string{"email", "phone", "id_number"} {
		if strings.Contains(pgErr.ConstraintName, field) {
			return &docs.ConflictError{Field: field}
		}
	}
	return &docs.ConflictError{Field: "unknown"}
}

const userColumns = `id, email, password_hash, name,
	coalesce(phone,''), coalesce(id_number,''), role,
	coalesce(agent_id,''), coalesce(former_agent_name,''),
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*docs.User, error) {
	var u docs.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.Phone, &u.IDNumber, &role,
		&u.AgentID, &u.FormerAgentName,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = access.Role(role)
	return &u, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Store) ListUsers(ctx context.Context, scope access.UserScope) ([]docs.User, error) {
	q := `select ` + userColumns + ` from users`
	var args []any
	switch scope.Kind {
	case access.UserScopeAll:
	case access.UserScopeAgent:
		q += ` where id=$1 or agent_id=$1`
		args = append(args, scope.ActorID)
	case access.UserScopeClient:
		q += ` where id=$1 or id=$2`
		args = append(args, scope.ActorID, scope.AgentID)
	}
	q += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) User(ctx context.Context, id string) (*docs.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*docs.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email))
}

func (s *Store) CreateUser(ctx context.Context, u *docs.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, name, phone, id_number, role, agent_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, u.ID, u.Email, u.PasswordHash, u.Name, nullable(u.Phone), nullable(u.IDNumber),
		string(u.Role), nullable(u.AgentID), u.CreatedAt, u.UpdatedAt)
	return mapConflict(err)
}

func (s *Store) UpdateUser(ctx context.Context, u *docs.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users set email=$2, password_hash=$3, name=$4, phone=$5, id_number=$6,
			agent_id=$7, former_agent_name=$8, updated_at=$9
		where id=$1
	`, u.ID, u.Email, u.PasswordHash, u.Name, nullable(u.Phone), nullable(u.IDNumber),
		nullable(u.AgentID), nullable(u.FormerAgentName), u.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}
	return requireRow(res)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteAgentOrphaning(ctx context.Context, agentID, agentName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		update users set agent_id=null, former_agent_name=$2, updated_at=now()
		where agent_id=$1
	`, agentID, agentName); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id=$1`, agentID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteClientCascade(ctx context.Context, clientID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// no database-enforced cascade: files first, then folders, then the user
	if _, err := tx.ExecContext(ctx, `
		delete from files where folder_id in (select id from folders where user_id=$1)
	`, clientID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from folders where user_id=$1`, clientID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id=$1`, clientID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) OrphanedClients(ctx context.Context) ([]docs.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users
		where role='CLIENT' and agent_id is null
		order by former_agent_name, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) ReassignClients(ctx context.Context, clientIDs []string, agentID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		update users set agent_id=$1, former_agent_name=null, updated_at=now()
		where id = any($2) and role='CLIENT'
	`, agentID, clientIDs)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) ListFolders(ctx context.Context, scope access.FolderScope) ([]docs.Folder, error) {
	q := `select f.id, f.user_id, f.name, f.created_at from folders f`
	var args []any
	switch scope.Kind {
	case access.FolderScopeAll:
	case access.FolderScopeAgentClients:
		q += ` join users u on u.id = f.user_id where u.agent_id=$1`
		args = append(args, scope.ActorID)
	case access.FolderScopeOwner:
		q += ` where f.user_id=$1`
		args = append(args, scope.ActorID)
	}
	q += ` order by f.created_at desc`
	return s.queryFolders(ctx, q, args...)
}

func (s *Store) FoldersForUser(ctx context.Context, userID string) ([]docs.Folder, error) {
	return s.queryFolders(ctx, `
		select f.id, f.user_id, f.name, f.created_at from folders f
		where f.user_id=$1 order by f.created_at desc
	`, userID)
}

func (s *Store) queryFolders(ctx context.Context, q string, args ...any) ([]docs.Folder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.Folder
	for rows.Next() {
		var f docs.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) Folder(ctx context.Context, id string) (*docs.Folder, error) {
	var f docs.Folder
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, name, created_at from folders where id=$1
	`, id).Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) CreateFolder(ctx context.Context, f *docs.Folder) error {
	_, err := s.db.ExecContext(ctx, `
		insert into folders (id, user_id, name, created_at) values ($1,$2,$3,$4)
	`, f.ID, f.UserID, f.Name, f.CreatedAt)
	return err
}

func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from files where folder_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from folders where id=$1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FilesForFolder(ctx context.Context, folderID string) ([]docs.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, folder_id, name, mime_type, size_bytes, storage_key, created_at
		from files where folder_id=$1 order by created_at desc
	`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.File
	for rows.Next() {
		var f docs.File
		if err := rows.Scan(&f.ID, &f.FolderID, &f.Name, &f.MimeType, &f.SizeBytes, &f.StorageKey, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) File(ctx context.Context, id string) (*docs.File, error) {
	var f docs.File
	err := s.db.QueryRowContext(ctx, `
		select id, folder_id, name, mime_type, size_bytes, storage_key, created_at
		from files where id=$1
	`, id).Scan(&f.ID, &f.FolderID, &f.Name, &f.MimeType, &f.SizeBytes, &f.StorageKey, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) CreateFile(ctx context.Context, f *docs.File) error {
	_, err := s.db.ExecContext(ctx, `
		insert into files (id, folder_id, name, mime_type, size_bytes, storage_key, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, f.ID, f.FolderID, f.Name, f.MimeType, f.SizeBytes, f.StorageKey, f.CreatedAt)
	return err
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from files where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListNotifications(ctx context.Context, scope access.NotificationScope) ([]docs.Notification, error) {
	q := `select id, user_id, for_role, title, coalesce(body,''), read, created_at from notifications`
	var args []any
	switch scope.Kind {
	case access.NotificationScopeAll:
	case access.NotificationScopeAgent:
		q += ` where user_id=$1 and for_role in ('AGENT','CLIENT')`
		args = append(args, scope.ActorID)
	case access.NotificationScopeClient:
		q += ` where user_id=$1 and for_role='CLIENT'`
		args = append(args, scope.ActorID)
	}
	q += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.Notification
	for rows.Next() {
		var n docs.Notification
		var forRole string
		if err := rows.Scan(&n.ID, &n.UserID, &forRole, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ForRole = access.Role(forRole)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) Notification(ctx context.Context, id string) (*docs.Notification, error) {
	var n docs.Notification
	var forRole string
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, for_role, title, coalesce(body,''), read, created_at
		from notifications where id=$1
	`, id).Scan(&n.ID, &n.UserID, &forRole, &n.Title, &n.Body, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.ForRole = access.Role(forRole)
	return &n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *docs.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notifications (id, user_id, for_role, title, body, read, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.UserID, string(n.ForRole), n.Title, nullable(n.Body), n.Read, n.CreatedAt)
	return err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update notifications set read=true where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from notifications where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListActivities(ctx context.Context, scope access.ActivityScope, limit int) ([]docs.Activity, error) {
	q := `select id, user_id, coalesce(subject_user_id,''), action, metadata, created_at from activities`
	var args []any
	switch scope.Kind {
	case access.ActivityScopeAll:
		q += ` order by created_at desc limit $1`
	case access.ActivityScopeAgent:
		// the actor, their clients, or anything about either of them
		q += ` where user_id=$1 or subject_user_id=$1
			or user_id in (select id from users where agent_id=$1)
			or subject_user_id in (select id from users where agent_id=$1)
			order by created_at desc limit $2`
		args = append(args, scope.ActorID)
	case access.ActivityScopeOwner:
		q += ` where user_id=$1 order by created_at desc limit $2`
		args = append(args, scope.ActorID)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.Activity
	for rows.Next() {
		var a docs.Activity
		var meta []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.SubjectUserID, &a.Action, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateActivity(ctx context.Context, a *docs.Activity) error {
	var meta any
	if len(a.Metadata) > 0 {
		data, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		meta = data
	}
	_, err := s.db.ExecContext(ctx, `
		insert into activities (id, user_id, subject_user_id, action, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.UserID, nullable(a.SubjectUserID), a.Action, meta, a.CreatedAt)
	return err
}

func (s *Store) WipeAndSeed(ctx context.Context, admin *docs.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`delete from files`,
		`delete from folders`,
		`delete from notifications`,
		`delete from activities`,
		`delete from password_reset_tokens`,
		`delete from users where role <> 'ADMIN'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into users (id, email, password_hash, name, role, created_at, updated_at)
		values ($1,$2,$3,$4,'ADMIN',now(),now())
		on conflict (email) do update
		set password_hash = excluded.password_hash, name = excluded.name, updated_at = now()
	`, admin.ID, admin.Email, admin.PasswordHash, admin.Name); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docs.ErrNotFound
	}
	return nil
}
