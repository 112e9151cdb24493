package service

import (
	"context"

	"docsign/internal/domain"
)

type actorKey struct{}

// WithActor returns a copy of ctx carrying the authenticated actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored in ctx by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// publicActor is the authenticated actor when there is one, else an anonymous verifier.
func publicActor(ctx context.Context) Actor {
	if a, ok := ActorFromContext(ctx); ok {
		return a
	}
	return Actor{ID: "anonymous", Type: domain.ActorPublic}
}
