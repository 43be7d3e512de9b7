package authz

import (
	"context"

	"github.com/platinummonkey/fieldops/pkg/contextkeys"
)

// ContextWithActor stores the actor on the context
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return contextkeys.WithActor(ctx, actor)
}

// ActorFromContext returns the actor set by the authentication middleware
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(contextkeys.ActorKey).(*Actor)
	return actor, ok && actor != nil
}
