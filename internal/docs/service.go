package docs

import (
	"context"
	"errors"
	"strings"
	"time"

	"polisdesk.org/internal/access"
	"polisdesk.org/internal/audit"
	"polisdesk.org/internal/auth"
	"polisdesk.org/internal/events"
)

const defaultActivityLimit = 100

// Service applies the access rules on top of a Store and records the
// activity trail. The Kafka producer is optional; nil drops events.
type Service struct {
	store    Store
	producer *events.Producer
	policy   auth.PasswordPolicy
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithProducer attaches a Kafka producer for domain events.
func WithProducer(p *events.Producer) Option {
	return func(s *Service) { s.producer = p }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the domain service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("docs store is required")
	}
	s := &Service{
		store:  store,
		policy: auth.ResetPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate checks the credential pair and returns the user on success.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateUserInput is the create-user request payload.
type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	IDNumber string `json:"id_number"`
	Role     string `json:"role"`
	AgentID  string `json:"agent_id"`
}

// ListUsers returns the users visible to the actor.
func (s *Service) ListUsers(ctx context.Context, a access.Actor) ([]User, error) {
	return s.store.ListUsers(ctx, access.UsersScope(a))
}

// CreateUser creates a user subject to the actor's role. Agents create
// clients only, and the stored agent_id is always the agent's own id no
// matter what the request carried.
func (s *Service) CreateUser(ctx context.Context, a access.Actor, in CreateUserInput) (*User, error) {
	role, err := access.ParseRole(in.Role)
	if err != nil {
		return nil, invalidf("unknown role %q", in.Role)
	}
	if d := access.CanCreateUser(a, role); !d.Allow {
		return nil, ErrForbidden
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidf("email is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidf("name is required")
	}
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, invalidf("password too short")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	agentID := ""
	if role == access.RoleClient {
		agentID = access.ForcedAgentID(a, in.AgentID)
	}
	now := s.now().UTC()
	u := &User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		IDNumber:     strings.TrimSpace(in.IDNumber),
		Role:         role,
		AgentID:      agentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, a, u.ID, "user.created", map[string]any{"role": string(role)})
	s.publish(ctx, events.UserCreated, u.ID, map[string]any{"role": string(role)})
	return u, nil
}

// GetUser returns one user row if the actor may read it.
func (s *Service) GetUser(ctx context.Context, a access.Actor, id string) (*User, error) {
	u, err := s.store.User(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.CanReadUser(a, u.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	return u, nil
}

// UpdateUserInput carries the PATCH fields; nil means leave unchanged.
type UpdateUserInput struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	IDNumber *string `json:"id_number"`
}

// UpdateUser applies a partial update if the actor may write the row.
func (s *Service) UpdateUser(ctx context.Context, a access.Actor, id string, in UpdateUserInput) (*User, error) {
	u, err := s.store.User(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.CanUpdateUser(a, u.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	if in.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*in.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, invalidf("email is required")
		}
		u.Email = email
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, invalidf("name is required")
		}
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.IDNumber != nil {
		u.IDNumber = strings.TrimSpace(*in.IDNumber)
	}
	if in.Password != nil {
		if err := s.policy.Validate(*in.Password); err != nil {
			return nil, invalidf("password too short")
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, a, u.ID, "user.updated", nil)
	return u, nil
}

// DeleteUser removes a user. Deleting an agent orphans its clients instead of
// cascading; deleting a client cascades through its folders and files.
func (s *Service) DeleteUser(ctx context.Context, a access.Actor, id string) error {
	u, err := s.store.User(ctx, id)
	if err != nil {
		return err
	}
	d := access.CanDeleteUser(a, u.Ref())
	if !d.Allow {
		if d.Reason == access.ReasonSelfDelete {
			return ErrSelfDelete
		}
		return ErrForbidden
	}
	switch u.Role {
	case access.RoleAgent:
		err = s.store.DeleteAgentOrphaning(ctx, u.ID, u.Name)
	case access.RoleClient:
		err = s.store.DeleteClientCascade(ctx, u.ID)
	default:
		err = s.store.DeleteUser(ctx, u.ID)
	}
	if err != nil {
		return err
	}
	s.record(ctx, a, u.ID, "user.deleted", map[string]any{"role": string(u.Role)})
	s.publish(ctx, events.UserDeleted, u.ID, map[string]any{"role": string(u.Role)})
	return nil
}

// OrphanedUsers lists clients without an agent, grouped by the name of the
// agent they lost.
func (s *Service) OrphanedUsers(ctx context.Context, a access.Actor) ([]OrphanGroup, error) {
	if d := access.CanReassignClients(a); !d.Allow {
		return nil, ErrForbidden
	}
	clients, err := s.store.OrphanedClients(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int)
	groups := []OrphanGroup{}
	for _, c := range clients {
		idx, ok := byName[c.FormerAgentName]
		if !ok {
			idx = len(groups)
			byName[c.FormerAgentName] = idx
			groups = append(groups, OrphanGroup{FormerAgentName: c.FormerAgentName})
		}
		groups[idx].Clients = append(groups[idx].Clients, c)
	}
	return groups, nil
}

// ReassignClients points orphaned clients at a new agent. The target must be
// an existing user with the AGENT role.
func (s *Service) ReassignClients(ctx context.Context, a access.Actor, clientIDs []string, agentID string) (int, error) {
	if d := access.CanReassignClients(a); !d.Allow {
		return 0, ErrForbidden
	}
	if len(clientIDs) == 0 {
		return 0, invalidf("client ids are required")
	}
	target, err := s.store.User(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		return 0, invalidf("target agent does not exist")
	}
	if err != nil {
		return 0, err
	}
	if target.Role != access.RoleAgent {
		return 0, invalidf("target user is not an agent")
	}
	n, err := s.store.ReassignClients(ctx, clientIDs, target.ID)
	if err != nil {
		return 0, err
	}
	s.record(ctx, a, target.ID, "clients.reassigned", map[string]any{"count": n})
	return n, nil
}

// CreateFolderInput is the create-folder request payload.
type CreateFolderInput struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ListFolders returns folders in the actor's scope. An explicit owner id
// narrows the listing; asking for an owner outside the actor's scope is
// forbidden, never silently empty.
func (s *Service) ListFolders(ctx context.Context, a access.Actor, userID string) ([]Folder, error) {
	if userID == "" {
		return s.store.ListFolders(ctx, access.FoldersScope(a))
	}
	owner, err := s.store.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d := access.CanReadFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	return s.store.FoldersForUser(ctx, owner.ID)
}

// CreateFolder creates a folder for the subject user.
func (s *Service) CreateFolder(ctx context.Context, a access.Actor, in CreateFolderInput) (*Folder, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidf("folder name is required")
	}
	owner, err := s.store.User(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if d := access.CanWriteFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	f := &Folder{
		ID:        newID(),
		UserID:    owner.ID,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateFolder(ctx, f); err != nil {
		return nil, err
	}
	s.record(ctx, a, owner.ID, "folder.created", map[string]any{"folder_id": f.ID})
	s.publish(ctx, events.FolderCreated, f.ID, map[string]any{"user_id": owner.ID})
	return f, nil
}

// GetFolder returns one folder if the actor may read it.
func (s *Service) GetFolder(ctx context.Context, a access.Actor, id string) (*Folder, error) {
	f, owner, err := s.folderWithOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.CanReadFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	return f, nil
}

// DeleteFolder removes a folder and its files.
func (s *Service) DeleteFolder(ctx context.Context, a access.Actor, id string) error {
	f, owner, err := s.folderWithOwner(ctx, id)
	if err != nil {
		return err
	}
	if d := access.CanWriteFolder(a, owner.Ref()); !d.Allow {
		return ErrForbidden
	}
	if err := s.store.DeleteFolder(ctx, f.ID); err != nil {
		return err
	}
	s.record(ctx, a, owner.ID, "folder.deleted", map[string]any{"folder_id": f.ID})
	return nil
}

// ListFiles returns the files of a folder the actor may read.
func (s *Service) ListFiles(ctx context.Context, a access.Actor, folderID string) ([]File, error) {
	f, owner, err := s.folderWithOwner(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if d := access.CanReadFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	return s.store.FilesForFolder(ctx, f.ID)
}

// AddFileInput is the add-file request payload. The bytes were already
// handed to the storage collaborator; StorageKey points at them.
type AddFileInput struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`
}

// AddFile records an uploaded document in a folder.
func (s *Service) AddFile(ctx context.Context, a access.Actor, folderID string, in AddFileInput) (*File, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidf("file name is required")
	}
	if !AllowedMimeTypes[in.MimeType] {
		return nil, ErrUnsupportedFile
	}
	f, owner, err := s.folderWithOwner(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if d := access.CanWriteFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	file := &File{
		ID:         newID(),
		FolderID:   f.ID,
		Name:       strings.TrimSpace(in.Name),
		MimeType:   in.MimeType,
		SizeBytes:  in.SizeBytes,
		StorageKey: in.StorageKey,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateFile(ctx, file); err != nil {
		return nil, err
	}
	s.record(ctx, a, owner.ID, "file.uploaded", map[string]any{"file_id": file.ID, "mime_type": file.MimeType})
	s.publish(ctx, events.FileUploaded, file.ID, map[string]any{"folder_id": f.ID})
	return file, nil
}

// GetFile returns one file record if the actor may read its folder.
func (s *Service) GetFile(ctx context.Context, a access.Actor, id string) (*File, error) {
	file, err := s.store.File(ctx, id)
	if err != nil {
		return nil, err
	}
	_, owner, err := s.folderWithOwner(ctx, file.FolderID)
	if err != nil {
		return nil, err
	}
	if d := access.CanReadFolder(a, owner.Ref()); !d.Allow {
		return nil, ErrForbidden
	}
	return file, nil
}

// DeleteFile removes one file record.
func (s *Service) DeleteFile(ctx context.Context, a access.Actor, id string) error {
	file, err := s.store.File(ctx, id)
	if err != nil {
		return err
	}
	_, owner, err := s.folderWithOwner(ctx, file.FolderID)
	if err != nil {
		return err
	}
	if d := access.CanWriteFolder(a, owner.Ref()); !d.Allow {
		return ErrForbidden
	}
	if err := s.store.DeleteFile(ctx, file.ID); err != nil {
		return err
	}
	s.record(ctx, a, owner.ID, "file.deleted", map[string]any{"file_id": file.ID})
	return nil
}

func (s *Service) folderWithOwner(ctx context.Context, folderID string) (*Folder, *User, error) {
	f, err := s.store.Folder(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.store.User(ctx, f.UserID)
	if err != nil {
		return nil, nil, err
	}
	return f, owner, nil
}

// CreateNotificationInput is the create-notification request payload.
type CreateNotificationInput struct {
	UserID  string `json:"user_id"`
	ForRole string `json:"for_role"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// ListNotifications returns notifications in the actor's scope.
func (s *Service) ListNotifications(ctx context.Context, a access.Actor) ([]Notification, error) {
	return s.store.ListNotifications(ctx, access.NotificationsScope(a))
}

// CreateNotification creates a role-targeted notification for one user.
func (s *Service) CreateNotification(ctx context.Context, a access.Actor, in CreateNotificationInput) (*Notification, error) {
	if d := access.CanCreateNotification(a); !d.Allow {
		return nil, ErrForbidden
	}
	forRole, err := access.ParseRole(in.ForRole)
	if err != nil {
		return nil, invalidf("unknown role %q", in.ForRole)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalidf("title is required")
	}
	if _, err := s.store.User(ctx, in.UserID); err != nil {
		return nil, err
	}
	n := &Notification{
		ID:        newID(),
		UserID:    in.UserID,
		ForRole:   forRole,
		Title:     strings.TrimSpace(in.Title),
		Body:      strings.TrimSpace(in.Body),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkNotificationRead flags a notification as read for its owner.
func (s *Service) MarkNotificationRead(ctx context.Context, a access.Actor, id string) error {
	n, err := s.store.Notification(ctx, id)
	if err != nil {
		return err
	}
	if d := access.CanTouchNotification(a, n.Ref()); !d.Allow {
		return ErrForbidden
	}
	return s.store.MarkNotificationRead(ctx, n.ID)
}

// DeleteNotification removes a notification its owner no longer wants.
func (s *Service) DeleteNotification(ctx context.Context, a access.Actor, id string) error {
	n, err := s.store.Notification(ctx, id)
	if err != nil {
		return err
	}
	if d := access.CanTouchNotification(a, n.Ref()); !d.Allow {
		return ErrForbidden
	}
	return s.store.DeleteNotification(ctx, n.ID)
}

// ListActivities returns the activity trail visible to the actor.
func (s *Service) ListActivities(ctx context.Context, a access.Actor, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultActivityLimit
	}
	return s.store.ListActivities(ctx, access.ActivitiesScope(a), limit)
}

// ResetSystemConfirm is the exact confirmation string the wipe requires.
const ResetSystemConfirm = "RESET_PRODUCTION_DATA"

// ResetSystem wipes all domain data and re-seeds the given admin account.
// All-or-nothing: the store performs the wipe and the upsert in one
// transaction.
func (s *Service) ResetSystem(ctx context.Context, a access.Actor, confirm string, admin *User) error {
	if d := access.CanResetSystem(a); !d.Allow {
		return ErrForbidden
	}
	if confirm != ResetSystemConfirm {
		return invalidf("confirmation string mismatch")
	}
	if admin == nil {
		return invalidf("seed admin is required")
	}
	if err := s.store.WipeAndSeed(ctx, admin); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "system.reset", map[string]any{"admin_id": admin.ID})
	s.publish(ctx, events.SystemReset, admin.ID, nil)
	return nil
}

// record appends to the activity trail. Best effort: a failed insert is
// logged, never bubbled into the caller's response.
func (s *Service) record(ctx context.Context, a access.Actor, subjectID, action string, metadata map[string]any) {
	err := s.store.CreateActivity(ctx, &Activity{
		ID:            newID(),
		UserID:        a.ID,
		SubjectUserID: subjectID,
		Action:        action,
		Metadata:      metadata,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		_ = audit.LogEvent(ctx, "activity.record.failed", map[string]any{"action": action, "error": err.Error()})
	}
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload map[string]any) {
	if err := s.producer.Publish(ctx, eventType, key, payload); err != nil {
		_ = audit.LogEvent(ctx, "events.publish.failed", map[string]any{"event": eventType, "error": err.Error()})
	}
}
