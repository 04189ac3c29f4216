package docs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/auth"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

type world struct {
	svc   *Service
	store *InMemory

	admin   access.Actor
	agentA1 access.Actor
	agentA2 access.Actor
	client1 access.Actor
	client3 access.Actor
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := NewInMemory()
	svc, err := NewService(store)
	require.NoError(t, err)

	w := &world{svc: svc, store: store}
	ctx := context.Background()

	seed := func(id, email, name string, role access.Role, agentID string) access.Actor {
		require.NoError(t, store.CreateUser(ctx, &User{
			ID: id, Email: email, Name: name, Role: role, AgentID: agentID,
			PasswordHash: "$2a$10$fixture",
		}))
		return access.Actor{ID: id, Role: role, AgentID: agentID}
	}

	w.admin = seed("admin-1", "admin@polisdesk.test", "Root Admin", access.RoleAdmin, "")
	w.agentA1 = seed("agent-1", "a1@polisdesk.test", "Avi Levi", access.RoleAgent, "")
	w.agentA2 = seed("agent-2", "a2@polisdesk.test", "Noa Mizrahi", access.RoleAgent, "")
	w.client1 = seed("client-1", "c1@polisdesk.test", "Client One", access.RoleClient, "agent-1")
	seed("client-2", "c2@polisdesk.test", "Client Two", access.RoleClient, "agent-1")
	w.client3 = seed("client-3", "c3@polisdesk.test", "Client Three", access.RoleClient, "agent-2")
	return w
}

func (w *world) folder(t *testing.T, a access.Actor, userID, name string) *Folder {
	t.Helper()
	f, err := w.svc.CreateFolder(context.Background(), a, CreateFolderInput{UserID: userID, Name: name})
	require.NoError(t, err)
	return f
}

func TestCreateUserForcesAgentOwnership(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	// the request claims a different agent; the server must not trust it
	u, err := w.svc.CreateUser(ctx, w.agentA1, CreateUserInput{
		Email: "new@polisdesk.test", Password: "secret1", Name: "New Client",
		Role: "CLIENT", AgentID: "agent-2",
	})
	require.NoError(t, err)
	require.Equal(t, "agent-1", u.AgentID)

	// agents may not mint fellow agents
	_, err = w.svc.CreateUser(ctx, w.agentA1, CreateUserInput{
		Email: "rogue@polisdesk.test", Password: "secret1", Name: "Rogue", Role: "AGENT",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateUserValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.svc.CreateUser(ctx, w.admin, CreateUserInput{
		Email: "x@y.test", Password: "short", Name: "X", Role: "CLIENT",
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = w.svc.CreateUser(ctx, w.admin, CreateUserInput{
		Email: "c1@polisdesk.test", Password: "secret1", Name: "Dup", Role: "CLIENT",
	})
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "email", conflict.Field)
}

func TestSelfDeleteGuard(t *testing.T) {
	w := newWorld(t)
	err := w.svc.DeleteUser(context.Background(), w.admin, w.admin.ID)
	require.ErrorIs(t, err, ErrSelfDelete)

	// the account is still there
	_, err = w.store.User(context.Background(), w.admin.ID)
	require.NoError(t, err)
}

func TestAgentDeleteOrphansClients(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	f := w.folder(t, w.agentA1, "client-1", "Policies 2026")
	file, err := w.svc.AddFile(ctx, w.agentA1, f.ID, AddFileInput{
		Name: "policy.pdf", MimeType: "application/pdf", SizeBytes: 1024, StorageKey: "k1",
	})
	require.NoError(t, err)

	require.NoError(t, w.svc.DeleteUser(ctx, w.admin, "agent-1"))

	for _, id := range []string{"client-1", "client-2"} {
		u, err := w.store.User(ctx, id)
		require.NoError(t, err)
		require.Empty(t, u.AgentID)
		require.Equal(t, "Avi Levi", u.FormerAgentName)
	}

	// documents survive the orphaning untouched
	kept, err := w.store.Folder(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, "client-1", kept.UserID)
	_, err = w.store.File(ctx, file.ID)
	require.NoError(t, err)
}

func TestClientDeleteCascades(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	f := w.folder(t, w.agentA1, "client-1", "Claims")
	file, err := w.svc.AddFile(ctx, w.agentA1, f.ID, AddFileInput{
		Name: "claim.png", MimeType: "image/png", SizeBytes: 10, StorageKey: "k2",
	})
	require.NoError(t, err)

	require.NoError(t, w.svc.DeleteUser(ctx, w.agentA1, "client-1"))

	_, err = w.store.Folder(ctx, f.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = w.store.File(ctx, file.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReassignClients(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.svc.DeleteUser(ctx, w.admin, "agent-1"))

	groups, err := w.svc.OrphanedUsers(ctx, w.admin)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "Avi Levi", groups[0].FormerAgentName)
	require.Len(t, groups[0].Clients, 2)

	// target must be a live agent
	_, err = w.svc.ReassignClients(ctx, w.admin, []string{"client-1"}, "client-3")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = w.svc.ReassignClients(ctx, w.admin, []string{"client-1"}, "agent-1")
	require.ErrorIs(t, err, ErrInvalidInput)

	n, err := w.svc.ReassignClients(ctx, w.admin, []string{"client-1", "client-2"}, "agent-2")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	u, err := w.store.User(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "agent-2", u.AgentID)
	require.Empty(t, u.FormerAgentName)

	// only admins reassign
	_, err = w.svc.ReassignClients(ctx, w.agentA2, []string{"client-1"}, "agent-2")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFolderListingScope(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	f1 := w.folder(t, w.agentA1, "client-1", "A1 C1")
	w.folder(t, w.agentA1, "client-2", "A1 C2")
	w.folder(t, w.agentA2, "client-3", "A2 C3")

	folders, err := w.svc.ListFolders(ctx, w.agentA1, "")
	require.NoError(t, err)
	require.Len(t, folders, 2)
	for _, f := range folders {
		require.NotEqual(t, "client-3", f.UserID)
	}

	// asking for another agent's client is a hard 403, not an empty list
	_, err = w.svc.ListFolders(ctx, w.agentA1, "client-3")
	require.ErrorIs(t, err, ErrForbidden)

	// unknown owner is missing, not forbidden
	_, err = w.svc.ListFolders(ctx, w.agentA1, "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	// a client sees only their own folders and cannot write
	own, err := w.svc.ListFolders(ctx, w.client1, "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, f1.ID, own[0].ID)
	_, err = w.svc.CreateFolder(ctx, w.client1, CreateFolderInput{UserID: "client-1", Name: "Mine"})
	require.ErrorIs(t, err, ErrForbidden)
	require.ErrorIs(t, w.svc.DeleteFolder(ctx, w.client1, f1.ID), ErrForbidden)
}

func TestFileMimeAllowList(t *testing.T) {
	w := newWorld(t)
	f := w.folder(t, w.agentA1, "client-1", "Docs")

	_, err := w.svc.AddFile(context.Background(), w.agentA1, f.ID, AddFileInput{
		Name: "malware.exe", MimeType: "application/octet-stream", SizeBytes: 5, StorageKey: "k",
	})
	require.ErrorIs(t, err, ErrUnsupportedFile)

	for _, mime := range []string{"application/pdf", "image/png", "image/jpeg", "image/webp"} {
		_, err := w.svc.AddFile(context.Background(), w.agentA1, f.ID, AddFileInput{
			Name: "doc", MimeType: mime, SizeBytes: 5, StorageKey: "k",
		})
		require.NoError(t, err, mime)
	}
}

func TestNotificationOwnership(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	n, err := w.svc.CreateNotification(ctx, w.agentA1, CreateNotificationInput{
		UserID: "client-1", ForRole: "CLIENT", Title: "New document",
	})
	require.NoError(t, err)

	// the owner may mark it read; a stranger may not
	require.NoError(t, w.svc.MarkNotificationRead(ctx, w.client1, n.ID))
	require.ErrorIs(t, w.svc.MarkNotificationRead(ctx, w.client3, n.ID), ErrForbidden)

	// clients cannot create notifications
	_, err = w.svc.CreateNotification(ctx, w.client1, CreateNotificationInput{
		UserID: "client-1", ForRole: "CLIENT", Title: "x",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestActivityScoping(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	w.folder(t, w.agentA1, "client-1", "A1 C1")
	w.folder(t, w.agentA2, "client-3", "A2 C3")

	a1, err := w.svc.ListActivities(ctx, w.agentA1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, a1)
	for _, act := range a1 {
		require.NotEqual(t, "agent-2", act.UserID)
		require.NotEqual(t, "client-3", act.SubjectUserID)
	}

	all, err := w.svc.ListActivities(ctx, w.admin, 0)
	require.NoError(t, err)
	require.Greater(t, len(all), len(a1))
}

func TestResetSystem(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	w.folder(t, w.agentA1, "client-1", "Docs")

	seed := &User{ID: "admin-1", Email: "admin@polisdesk.test", Name: "Root Admin", Role: access.RoleAdmin, PasswordHash: "$2a$10$seed"}

	require.ErrorIs(t, w.svc.ResetSystem(ctx, w.agentA1, ResetSystemConfirm, seed), ErrForbidden)
	require.ErrorIs(t, w.svc.ResetSystem(ctx, w.admin, "reset please", seed), ErrInvalidInput)

	require.NoError(t, w.svc.ResetSystem(ctx, w.admin, ResetSystemConfirm, seed))

	users, err := w.store.ListUsers(ctx, access.UserScope{Kind: access.UserScopeAll})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, access.RoleAdmin, users[0].Role)
	folders, err := w.store.ListFolders(ctx, access.FolderScope{Kind: access.FolderScopeAll})
	require.NoError(t, err)
	require.Empty(t, folders)
}

func TestAuthenticate(t *testing.T) {
	store := NewInMemory()
	svc, err := NewService(store)
	require.NoError(t, err)
	ctx := context.Background()

	hash := mustHash(t, "correct-horse")
	require.NoError(t, store.CreateUser(ctx, &User{
		ID: "u1", Email: "dana@polisdesk.test", Name: "Dana", Role: access.RoleAgent, PasswordHash: hash,
	}))

	u, err := svc.Authenticate(ctx, "Dana@Polisdesk.Test", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	_, err = svc.Authenticate(ctx, "dana@polisdesk.test", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ghost@polisdesk.test", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
