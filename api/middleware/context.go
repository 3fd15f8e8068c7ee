package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type contextKey string

const (
	ctxActor     contextKey = "actor"
	ctxSessionID contextKey = "session_id"
)

// WithActor stores the acting principal for downstream handlers.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	return context.WithValue(ctx, ctxActor, actor)
}

func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// SessionIDFromContext returns the guest session header value, if any.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// CustomerIDFromContext is set only for authenticated customers.
func CustomerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return actor.CustomerID()
}
