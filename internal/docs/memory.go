package docs

import (
	"context"
	"sort"
	"sync"
	"time"

	"polisdesk.org/internal/access"
)

// InMemory implements Store with in-process concurrency safety. It backs the
// handler test suites and works as a standalone mode when no database is
// configured.
type InMemory struct {
	mu            sync.RWMutex
	users         map[string]*User
	folders       map[string]*Folder
	files         map[string]*File
	notifications map[string]*Notification
	activities    []Activity
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:         make(map[string]*User),
		folders:       make(map[string]*Folder),
		files:         make(map[string]*File),
		notifications: make(map[string]*Notification),
	}
}

func (s *InMemory) ListUsers(_ context.Context, scope access.UserScope) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for _, u := range s.users {
		switch scope.Kind {
		case access.UserScopeAll:
			out = append(out, *u)
		case access.UserScopeAgent:
			if u.ID == scope.ActorID || u.AgentID == scope.ActorID {
				out = append(out, *u)
			}
		case access.UserScopeClient:
			if u.ID == scope.ActorID || (scope.AgentID != "" && u.ID == scope.AgentID) {
				out = append(out, *u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) User(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) UserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if field := duplicateField(existing, u); field != "" {
			return &ConflictError{Field: field}
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemory) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if field := duplicateField(existing, u); field != "" {
			return &ConflictError{Field: field}
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func duplicateField(existing, candidate *User) string {
	switch {
	case candidate.Email != "" && existing.Email == candidate.Email:
		return "email"
	case candidate.Phone != "" && existing.Phone == candidate.Phone:
		return "phone"
	case candidate.IDNumber != "" && existing.IDNumber == candidate.IDNumber:
		return "id_number"
	}
	return ""
}

func (s *InMemory) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *InMemory) DeleteAgentOrphaning(_ context.Context, agentID, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[agentID]; !ok {
		return ErrNotFound
	}
	for _, u := range s.users {
		if u.AgentID == agentID {
			u.AgentID = ""
			u.FormerAgentName = agentName
			u.UpdatedAt = time.Now().UTC()
		}
	}
	delete(s.users, agentID)
	return nil
}

func (s *InMemory) DeleteClientCascade(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[clientID]; !ok {
		return ErrNotFound
	}
	for folderID, f := range s.folders {
		if f.UserID != clientID {
			continue
		}
		for fileID, file := range s.files {
			if file.FolderID == folderID {
				delete(s.files, fileID)
			}
		}
		delete(s.folders, folderID)
	}
	delete(s.users, clientID)
	return nil
}

func (s *InMemory) OrphanedClients(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []User
	for _, u := range s.users {
		if u.Orphaned() {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ReassignClients(_ context.Context, clientIDs []string, agentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, id := range clientIDs {
		u, ok := s.users[id]
		if !ok || u.Role != access.RoleClient {
			continue
		}
		u.AgentID = agentID
		u.FormerAgentName = ""
		u.UpdatedAt = time.Now().UTC()
		changed++
	}
	return changed, nil
}

func (s *InMemory) ListFolders(_ context.Context, scope access.FolderScope) ([]Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Folder
	for _, f := range s.folders {
		switch scope.Kind {
		case access.FolderScopeAll:
			out = append(out, *f)
		case access.FolderScopeAgentClients:
			owner, ok := s.users[f.UserID]
			if ok && owner.AgentID == scope.ActorID {
				out = append(out, *f)
			}
		case access.FolderScopeOwner:
			if f.UserID == scope.ActorID {
				out = append(out, *f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) FoldersForUser(_ context.Context, userID string) ([]Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Folder
	for _, f := range s.folders {
		if f.UserID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) Folder(_ context.Context, id string) (*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *InMemory) CreateFolder(_ context.Context, f *Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.folders[f.ID] = &cp
	return nil
}

func (s *InMemory) DeleteFolder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return ErrNotFound
	}
	for fileID, file := range s.files {
		if file.FolderID == id {
			delete(s.files, fileID)
		}
	}
	delete(s.folders, id)
	return nil
}

func (s *InMemory) FilesForFolder(_ context.Context, folderID string) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []File
	for _, f := range s.files {
		if f.FolderID == folderID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) File(_ context.Context, id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *InMemory) CreateFile(_ context.Context, f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *InMemory) DeleteFile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *InMemory) ListNotifications(_ context.Context, scope access.NotificationScope) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.notifications {
		switch scope.Kind {
		case access.NotificationScopeAll:
			out = append(out, *n)
		case access.NotificationScopeAgent:
			if n.UserID == scope.ActorID && (n.ForRole == access.RoleAgent || n.ForRole == access.RoleClient) {
				out = append(out, *n)
			}
		case access.NotificationScopeClient:
			if n.UserID == scope.ActorID && n.ForRole == access.RoleClient {
				out = append(out, *n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) Notification(_ context.Context, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *InMemory) CreateNotification(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *InMemory) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *InMemory) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *InMemory) ListActivities(_ context.Context, scope access.ActivityScope, limit int) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clientIDs := make(map[string]bool)
	if scope.Kind == access.ActivityScopeAgent {
		for _, u := range s.users {
			if u.AgentID == scope.ActorID {
				clientIDs[u.ID] = true
			}
		}
	}
	var out []Activity
	for i := len(s.activities) - 1; i >= 0; i-- {
		a := s.activities[i]
		switch scope.Kind {
		case access.ActivityScopeAll:
			out = append(out, a)
		case access.ActivityScopeAgent:
			if a.UserID == scope.ActorID || a.SubjectUserID == scope.ActorID ||
				clientIDs[a.UserID] || clientIDs[a.SubjectUserID] {
				out = append(out, a)
			}
		case access.ActivityScopeOwner:
			if a.UserID == scope.ActorID {
				out = append(out, a)
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) CreateActivity(_ context.Context, a *Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, *a)
	return nil
}

func (s *InMemory) WipeAndSeed(_ context.Context, admin *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = make(map[string]*Folder)
	s.files = make(map[string]*File)
	s.notifications = make(map[string]*Notification)
	s.activities = nil
	for id, u := range s.users {
		if u.Role != access.RoleAdmin {
			delete(s.users, id)
		}
	}
	cp := *admin
	s.users[admin.ID] = &cp
	return nil
}
