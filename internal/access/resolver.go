package access

// Decision is the outcome of an instance-level permission check. Reason codes
// are logged server-side only; clients always see a generic forbidden message.
type Decision struct {
	Allow  bool
	Reason string
}

const (
	ReasonSelfDelete   = "self_delete"
	ReasonNotOwner     = "not_owner"
	ReasonRoleDenied   = "role_denied"
	ReasonWrongAgent   = "wrong_agent"
	ReasonWrongContext = "wrong_audience"
)

func allow() Decision             { return Decision{Allow: true} }
func deny(reason string) Decision { return Decision{Allow: false, Reason: reason} }

// CanReadUser decides whether the actor may read the target user row.
func CanReadUser(a Actor, t UserRef) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if t.ID == a.ID || (t.AgentID != "" && t.AgentID == a.ID) {
			return allow()
		}
		return deny(ReasonNotOwner)
	case RoleClient:
		if t.ID == a.ID || (a.AgentID != "" && t.ID == a.AgentID) {
			return allow()
		}
		return deny(ReasonNotOwner)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanUpdateUser decides whether the actor may update the target user row.
func CanUpdateUser(a Actor, t UserRef) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if t.ID == a.ID || (t.AgentID != "" && t.AgentID == a.ID) {
			return allow()
		}
		return deny(ReasonNotOwner)
	case RoleClient:
		if t.ID == a.ID {
			return allow()
		}
		return deny(ReasonNotOwner)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanDeleteUser decides whether the actor may delete the target user row.
// Self-deletion is denied for every role, admins included.
func CanDeleteUser(a Actor, t UserRef) Decision {
	if t.ID == a.ID {
		return deny(ReasonSelfDelete)
	}
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if t.Role == RoleClient && t.AgentID == a.ID {
			return allow()
		}
		return deny(ReasonNotOwner)
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanCreateUser decides whether the actor may create a user with the given
// role. Client self-registration is an anonymous flow, not this check.
func CanCreateUser(a Actor, newRole Role) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if newRole == RoleClient {
			return allow()
		}
		return deny(ReasonRoleDenied)
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}

// ForcedAgentID returns the agent_id a newly created client must carry. An
// agent's own id always wins over whatever the request supplied; the input
// value is never trusted.
func ForcedAgentID(a Actor, requested string) string {
	switch a.Role {
	case RoleAgent:
		return a.ID
	case RoleAdmin:
		return requested
	case RoleClient:
		return ""
	default:
		return ""
	}
}

// CanReadFolder decides whether the actor may read a folder (and its files)
// given the folder's owning user.
func CanReadFolder(a Actor, owner UserRef) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if owner.AgentID != "" && owner.AgentID == a.ID {
			return allow()
		}
		return deny(ReasonWrongAgent)
	case RoleClient:
		if owner.ID == a.ID {
			return allow()
		}
		return deny(ReasonNotOwner)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanWriteFolder decides whether the actor may create or delete folders and
// files for the owning user. Clients are read-only on both entities.
func CanWriteFolder(a Actor, owner UserRef) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if owner.AgentID != "" && owner.AgentID == a.ID {
			return allow()
		}
		return deny(ReasonWrongAgent)
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanCreateNotification decides whether the actor may create notifications.
func CanCreateNotification(a Actor) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		return allow()
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanTouchNotification decides whether the actor may read, mark read or
// delete the target notification. Ownership by user id is required below
// admin, with the audience restricted per role.
func CanTouchNotification(a Actor, n NotificationRef) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		if n.UserID != a.ID {
			return deny(ReasonNotOwner)
		}
		if n.ForRole == RoleAgent || n.ForRole == RoleClient {
			return allow()
		}
		return deny(ReasonWrongContext)
	case RoleClient:
		if n.UserID != a.ID {
			return deny(ReasonNotOwner)
		}
		if n.ForRole == RoleClient {
			return allow()
		}
		return deny(ReasonWrongContext)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanReassignClients decides whether the actor may bulk-assign orphaned
// clients to a new agent.
func CanReassignClients(a Actor) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		return deny(ReasonRoleDenied)
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}

// CanResetSystem decides whether the actor may wipe and re-seed the system.
func CanResetSystem(a Actor) Decision {
	switch a.Role {
	case RoleAdmin:
		return allow()
	case RoleAgent:
		return deny(ReasonRoleDenied)
	case RoleClient:
		return deny(ReasonRoleDenied)
	default:
		return deny(ReasonRoleDenied)
	}
}
