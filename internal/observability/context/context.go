package context

import "context"

type (
	requestIDKey struct{}
	teamIDKey    struct{}
	actorKey     struct{}
)

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithTeamID tags the context with the team a request operates on.
func WithTeamID(ctx context.Context, teamID string) context.Context {
	if teamID == "" {
		return ctx
	}
	return context.WithValue(ctx, teamIDKey{}, teamID)
}

func TeamIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(teamIDKey{}).(string)
	return v
}

// WithActor records who initiated the request, e.g. ("admin", "ops@example.com").
func WithActor(ctx context.Context, kind, id string) context.Context {
	if kind == "" && id == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{kind: kind, id: id})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	v, _ := ctx.Value(actorKey{}).(actor)
	return v.kind, v.id
}
