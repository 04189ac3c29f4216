package access

import "context"

// Actor is the authenticated identity a request acts as.
type Actor struct {
	ID   string
	Role Role
	// AgentID is the owning agent of a CLIENT actor; empty for agents and admins.
	AgentID string
}

// UserRef carries the fields of a target user that scoping rules inspect.
type UserRef struct {
	ID      string
	Role    Role
	AgentID string
}

// NotificationRef carries the fields of a target notification that scoping
// rules inspect.
type NotificationRef struct {
	UserID  string
	ForRole Role
}

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil {
		return Actor{}, false
	}
	return *v, true
}
