package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "actor"

// ContextWithActor attaches the authenticated actor to ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFromContext returns the actor attached to ctx, or the zero Actor.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKeyActor).(Actor); ok {
		return a
	}
	return Actor{}
}
