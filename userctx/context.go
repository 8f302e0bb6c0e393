package userctx

import (
	"context"

	"github.com/blogem/memorial-registry/models"
)

// Context key type
type contextKey string

const actorKey contextKey = "actor"

// SetActor adds the authenticated actor to request context
func SetActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the authenticated actor from request context
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

// GetActorName returns the actor's display name, or "anonymous" when the
// request is unauthenticated.
func GetActorName(ctx context.Context) string {
	actor, ok := GetActor(ctx)
	if !ok {
		return "anonymous"
	}
	return actor.DisplayName()
}
