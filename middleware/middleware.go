// Package middleware provides HTTP authorization middleware for Sentinel.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// Require enforces a permission check. It resolves the acting user from the
// request context and checks whether that user can perform the action on
// the resource.
func Require(eng *sentinel.Engine, resource policy.Resource, action policy.Action) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID, ok := resolveUser(ctx)
			if !ok {
				return denyResponse(ctx)
			}

			err := eng.Enforce(ctx.Context(), &sentinel.AccessRequest{
				UserID:   userID,
				Resource: resource,
				Action:   action,
			})
			if err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireRoles allows the request only if the acting user holds at least
// one of the given roles.
func RequireRoles(eng *sentinel.Engine, roles ...policy.Role) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID, ok := resolveUser(ctx)
			if !ok {
				return denyResponse(ctx)
			}

			u, err := eng.Store().GetUser(ctx.Context(), userID)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, r := range roles {
				if u.HasRole(r) {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if ALL checks pass for the acting user.
func RequireAll(eng *sentinel.Engine, checks ...sentinel.AccessRequest) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID, ok := resolveUser(ctx)
			if !ok {
				return denyResponse(ctx)
			}
			for i := range checks {
				c := checks[i]
				c.UserID = userID
				if err := eng.Enforce(ctx.Context(), &c); err != nil {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

// resolveUser extracts the acting user from context.
func resolveUser(ctx forge.Context) (id.UserID, bool) {
	if raw := forge.UserIDFromContext(ctx.Context()); raw != "" {
		if userID, err := id.ParseUserID(raw); err == nil {
			return userID, true
		}
	}
	return id.Nil, false
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
