package api

import (
	"context"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if sentinel.IsNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if sentinel.IsValidation(err) || sentinel.IsStateConflict(err) || sentinel.IsPolicyViolation(err) {
		return forge.BadRequest(err.Error())
	}
	if sentinel.IsAccessDenied(err) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// actorContext attaches the authenticated user to the context so the
// workflow and audit layers can attribute the action.
func actorContext(ctx forge.Context) context.Context {
	out := ctx.Context()
	if userID := forge.UserIDFromContext(out); userID != "" {
		if actor, err := id.ParseUserID(userID); err == nil {
			out = sentinel.WithActor(out, actor)
		}
	}
	return out
}

func parseRole(s string) (policy.Role, error) {
	r := policy.Role(s)
	if !policy.ValidRole(r) {
		return "", forge.BadRequest("unknown role: " + s)
	}
	return r, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
