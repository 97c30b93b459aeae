// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// ActorContext identifies the authenticated caller performing an operation.
// Every issued identifier is attributed to the actor in the issuance ledger.
type ActorContext struct {
	UserID     string
	Username   string
	Privileges []string
	IsAdmin    bool
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorName returns the acting username from context, or "system" when
// the operation runs outside a request (scheduled refill, migrations).
func GetActorName(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.Username != "" {
		return a.Username
	}
	return "system"
}

// HasPrivilege checks if the actor holds a specific privilege.
// Admins implicitly hold all privileges.
func HasPrivilege(ctx context.Context, privilege string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	if a.IsAdmin {
		return true
	}
	for _, p := range a.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}
