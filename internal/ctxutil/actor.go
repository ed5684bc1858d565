// Package ctxutil provides context utilities that can be safely imported anywhere.
// It depends only on the identity core to avoid import cycles.
package ctxutil

import (
	"context"

	"github.com/example/garde/internal/core/identity"
)

// ActorKey is the context key for the authenticated actor.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// WithActorID returns a context carrying an actor known only by ID.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return WithActor(ctx, identity.Actor{ID: actorID})
}

// Actor returns the actor from context and whether one was set.
func Actor(ctx context.Context) (identity.Actor, bool) {
	a, ok := ctx.Value(ActorKey{}).(identity.Actor)
	return a, ok
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	a, _ := Actor(ctx)
	return a.ID
}
