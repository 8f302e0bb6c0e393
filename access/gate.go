// Package access decides whether the caller of an operation may perform it.
package access

import (
	"context"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/userctx"
)

// Gate yields the authenticated actor for the current operation, if any.
type Gate interface {
	CurrentActor(ctx context.Context) (models.Actor, bool)
}

// ContextGate reads the actor that middleware.LoadActor stored in the request context.
type ContextGate struct{}

// CurrentActor implements Gate
func (ContextGate) CurrentActor(ctx context.Context) (models.Actor, bool) {
	return userctx.GetActor(ctx)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context) (models.Actor, bool)

// CurrentActor implements Gate
func (f GateFunc) CurrentActor(ctx context.Context) (models.Actor, bool) {
	return f(ctx)
}

// RequireAdmin returns the current actor if it holds the admin role.
func RequireAdmin(ctx context.Context, gate Gate) (models.Actor, error) {
	actor, ok := gate.CurrentActor(ctx)
	if !ok {
		return models.Actor{}, apperr.Unauthorized("authentication required")
	}
	if !actor.IsAdmin() {
		return models.Actor{}, apperr.Forbidden("admin role required")
	}
	return actor, nil
}
