package docs

import (
	"context"

	"polisdesk.org/internal/access"
)

// Store is the persistence surface of the domain. Implementations report
// missing rows as ErrNotFound and uniqueness violations as *ConflictError.
// Scope filters arrive as tagged values from internal/access; the store owns
// their translation into query predicates.
type Store interface {
	// Users.
	ListUsers(ctx context.Context, scope access.UserScope) ([]User, error)
	User(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	// DeleteUser removes one row without touching anything it owns. Callers
	// use it for agents without clients and for admin-role housekeeping.
	DeleteUser(ctx context.Context, id string) error
	// DeleteAgentOrphaning deletes the agent and, in the same transaction,
	// clears agent_id and stamps former_agent_name on every client it owned.
	// Folders and files of those clients are left untouched.
	DeleteAgentOrphaning(ctx context.Context, agentID, agentName string) error
	// DeleteClientCascade deletes the client's files, then folders, then the
	// user row, in one transaction. There is no database-enforced cascade.
	DeleteClientCascade(ctx context.Context, clientID string) error
	OrphanedClients(ctx context.Context) ([]User, error)
	// ReassignClients points the given orphaned clients at the new agent and
	// clears former_agent_name. Returns how many rows changed.
	ReassignClients(ctx context.Context, clientIDs []string, agentID string) (int, error)

	// Folders and files.
	ListFolders(ctx context.Context, scope access.FolderScope) ([]Folder, error)
	FoldersForUser(ctx context.Context, userID string) ([]Folder, error)
	Folder(ctx context.Context, id string) (*Folder, error)
	CreateFolder(ctx context.Context, f *Folder) error
	// DeleteFolder removes the folder and its files in one transaction.
	DeleteFolder(ctx context.Context, id string) error
	FilesForFolder(ctx context.Context, folderID string) ([]File, error)
	File(ctx context.Context, id string) (*File, error)
	CreateFile(ctx context.Context, f *File) error
	DeleteFile(ctx context.Context, id string) error

	// Notifications.
	ListNotifications(ctx context.Context, scope access.NotificationScope) ([]Notification, error)
	Notification(ctx context.Context, id string) (*Notification, error)
	CreateNotification(ctx context.Context, n *Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error

	// Activities.
	ListActivities(ctx context.Context, scope access.ActivityScope, limit int) ([]Activity, error)
	CreateActivity(ctx context.Context, a *Activity) error

	// WipeAndSeed deletes files, folders, notifications, activities and every
	// non-admin user, then upserts the seed admin, all in one transaction.
	WipeAndSeed(ctx context.Context, admin *User) error
}
