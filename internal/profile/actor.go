package profile

import "context"

// actorSetting is the Postgres run-time parameter read by the row-level policies.
const actorSetting = "app.current_identity"

// ServiceActor is used by background jobs; the policies let it update any row.
const ServiceActor = "__service__"

type actorKey struct{}

// WithActor returns a context whose profile queries run as the given identity.
func WithActor(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, actorKey{}, identityID)
}

// ActorFromContext returns the acting identity id, or "" for an anonymous caller.
func ActorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
