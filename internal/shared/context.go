package shared

import "context"

type sessionContextKey struct{}

type actorContextKey struct{}

// Actor identifies who performs a request and which organization scopes it.
// It is built once per request and passed explicitly into services.
type Actor struct {
	UserID         int64
	OrganizationID int64
}

// Valid reports whether both identifiers are set.
func (a Actor) Valid() bool {
	return a.UserID > 0 && a.OrganizationID > 0
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor stores the request actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor resolved by the session middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || !actor.Valid() {
		return Actor{}, false
	}
	return actor, true
}
