package sentinel

import (
	"context"

	"github.com/xraph/sentinel/id"
)

type contextKey int

const (
	ctxKeyActor contextKey = iota
	ctxKeyRequestInfo
)

type requestInfo struct {
	ip        string
	userAgent string
}

// WithActor returns a context carrying the acting user's ID. Workflow
// operations and the audit trail read the actor from here.
func WithActor(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actorID)
}

// ActorFromContext returns the acting user's ID, if set.
func ActorFromContext(ctx context.Context) (id.UserID, bool) {
	v, ok := ctx.Value(ctxKeyActor).(id.UserID)
	return v, ok
}

// WithRequestInfo returns a context carrying the client IP and user agent
// for audit entries.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestInfo, requestInfo{ip: ip, userAgent: userAgent})
}

// RequestInfoFromContext returns the client IP and user agent, if set.
func RequestInfoFromContext(ctx context.Context) (ip, userAgent string) {
	v, ok := ctx.Value(ctxKeyRequestInfo).(requestInfo)
	if !ok {
		return "", ""
	}
	return v.ip, v.userAgent
}
