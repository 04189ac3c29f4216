// Package docs is the document-management domain: users in a three-role
// hierarchy, client folders with file records, notifications, and the
// activity trail. Every operation takes the authenticated actor and applies
// the access rules before touching the store.
package docs

import (
	"time"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/ids"
)

// User is an account. A CLIENT either points at a live agent via AgentID or
// is orphaned (AgentID empty, FormerAgentName set). Agents and admins never
// carry AgentID.
type User struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	PasswordHash    string      `json:"-"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone,omitempty"`
	IDNumber        string      `json:"id_number,omitempty"`
	Role            access.Role `json:"role"`
	AgentID         string      `json:"agent_id,omitempty"`
	FormerAgentName string      `json:"former_agent_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Ref projects the fields the access rules inspect.
func (u *User) Ref() access.UserRef {
	return access.UserRef{ID: u.ID, Role: u.Role, AgentID: u.AgentID}
}

// Orphaned reports whether a client lost its agent and awaits reassignment.
func (u *User) Orphaned() bool {
	return u.Role == access.RoleClient && u.AgentID == ""
}

// Folder groups a client's files. Owned by the subject user, typically a CLIENT.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// File is the metadata record of an uploaded document. The bytes live with an
// external storage collaborator; only the key is persisted here.
type File struct {
	ID         string    `json:"id"`
	FolderID   string    `json:"folder_id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// AllowedMimeTypes is the upload allow-list.
var AllowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

// Notification targets one user and one role audience.
type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ForRole   access.Role `json:"for_role"`
	Title     string      `json:"title"`
	Body      string      `json:"body,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"`
}

// Ref projects the fields the access rules inspect.
func (n *Notification) Ref() access.NotificationRef {
	return access.NotificationRef{UserID: n.UserID, ForRole: n.ForRole}
}

// Activity is one entry of the audit trail. SubjectUserID references the user
// the action was about (the created client, the folder owner) so agent-scoped
// listings can join on it instead of scanning serialized metadata.
type Activity struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	SubjectUserID string         `json:"subject_user_id,omitempty"`
	Action        string         `json:"action"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OrphanGroup is one former agent's stranded clients.
type OrphanGroup struct {
	FormerAgentName string `json:"former_agent_name"`
	Clients         []User `json:"clients"`
}

func newID() string {
	return ids.New()
}
