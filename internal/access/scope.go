package access

// Scope filters express which rows of an entity a list query may return.
// They are tagged values the storage layer translates into SQL predicates;
// the resolver never builds query text itself.

// UserScopeKind selects the user listing predicate.
type UserScopeKind int

const (
	// UserScopeAll returns every user row.
	UserScopeAll UserScopeKind = iota
	// UserScopeAgent returns the actor's own row plus rows whose agent_id
	// equals ActorID.
	UserScopeAgent
	// UserScopeClient returns the actor's own row plus the row of their
	// owning agent (AgentID), when set.
	UserScopeClient
)

// UserScope restricts user listings.
type UserScope struct {
	Kind    UserScopeKind
	ActorID string
	AgentID string
}

// FolderScopeKind selects the folder/file listing predicate.
type FolderScopeKind int

const (
	// FolderScopeAll returns every folder.
	FolderScopeAll FolderScopeKind = iota
	// FolderScopeAgentClients returns folders whose owning user has
	// agent_id = ActorID.
	FolderScopeAgentClients
	// FolderScopeOwner returns folders with user_id = ActorID.
	FolderScopeOwner
)

// FolderScope restricts folder and file listings.
type FolderScope struct {
	Kind    FolderScopeKind
	ActorID string
}

// NotificationScopeKind selects the notification listing predicate.
type NotificationScopeKind int

const (
	// NotificationScopeAll returns every notification.
	NotificationScopeAll NotificationScopeKind = iota
	// NotificationScopeAgent returns rows owned by ActorID targeted at the
	// AGENT or CLIENT audience.
	NotificationScopeAgent
	// NotificationScopeClient returns rows owned by ActorID targeted at the
	// CLIENT audience.
	NotificationScopeClient
)

// NotificationScope restricts notification listings.
type NotificationScope struct {
	Kind    NotificationScopeKind
	ActorID string
}

// ActivityScopeKind selects the activity listing predicate.
type ActivityScopeKind int

const (
	// ActivityScopeAll returns every activity row.
	ActivityScopeAll ActivityScopeKind = iota
	// ActivityScopeAgent returns rows acted or subjected by the actor or by
	// any of the actor's clients.
	ActivityScopeAgent
	// ActivityScopeOwner returns rows with user_id = ActorID.
	ActivityScopeOwner
)

// ActivityScope restricts activity listings.
type ActivityScope struct {
	Kind    ActivityScopeKind
	ActorID string
}

// UsersScope returns the user listing filter for the actor.
func UsersScope(a Actor) UserScope {
	switch a.Role {
	case RoleAdmin:
		return UserScope{Kind: UserScopeAll}
	case RoleAgent:
		return UserScope{Kind: UserScopeAgent, ActorID: a.ID}
	case RoleClient:
		return UserScope{Kind: UserScopeClient, ActorID: a.ID, AgentID: a.AgentID}
	default:
		return UserScope{Kind: UserScopeClient, ActorID: a.ID}
	}
}

// FoldersScope returns the folder/file listing filter for the actor.
func FoldersScope(a Actor) FolderScope {
	switch a.Role {
	case RoleAdmin:
		return FolderScope{Kind: FolderScopeAll}
	case RoleAgent:
		return FolderScope{Kind: FolderScopeAgentClients, ActorID: a.ID}
	case RoleClient:
		return FolderScope{Kind: FolderScopeOwner, ActorID: a.ID}
	default:
		return FolderScope{Kind: FolderScopeOwner, ActorID: a.ID}
	}
}

// NotificationsScope returns the notification listing filter for the actor.
func NotificationsScope(a Actor) NotificationScope {
	switch a.Role {
	case RoleAdmin:
		return NotificationScope{Kind: NotificationScopeAll}
	case RoleAgent:
		return NotificationScope{Kind: NotificationScopeAgent, ActorID: a.ID}
	case RoleClient:
		return NotificationScope{Kind: NotificationScopeClient, ActorID: a.ID}
	default:
		return NotificationScope{Kind: NotificationScopeClient, ActorID: a.ID}
	}
}

// ActivitiesScope returns the activity listing filter for the actor.
func ActivitiesScope(a Actor) ActivityScope {
	switch a.Role {
	case RoleAdmin:
		return ActivityScope{Kind: ActivityScopeAll}
	case RoleAgent:
		return ActivityScope{Kind: ActivityScopeAgent, ActorID: a.ID}
	case RoleClient:
		return ActivityScope{Kind: ActivityScopeOwner, ActorID: a.ID}
	default:
		return ActivityScope{Kind: ActivityScopeOwner, ActorID: a.ID}
	}
}
