// Package sentinel provides role-based authorization and a role-application
// workflow for multi-role platforms.
//
// Roles, resources, and actions form a closed policy model (see the policy
// package). The engine resolves a user's effective permissions through a
// TTL-bounded cache and answers allow/deny on the hot path of every
// protected operation.
//
//	eng, err := sentinel.NewEngine(
//	    sentinel.WithStore(memStore),
//	)
//	result, err := eng.Authorize(ctx, &sentinel.AccessRequest{
//	    UserID:   userID,
//	    Resource: policy.ResourceCourse,
//	    Action:   policy.ActionRead,
//	})
package sentinel

import (
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// AccessRequest is the input to an authorization check.
type AccessRequest struct {
	UserID   id.UserID         `json:"user_id"`
	Resource policy.Resource   `json:"resource"`
	Action   policy.Action     `json:"action"`
	Context  map[string]string `json:"context,omitempty"`
}

// AccessResult is the outcome of an authorization check.
type AccessResult struct {
	Allowed    bool               `json:"allowed"`
	Decision   Decision           `json:"decision"`
	Reason     string             `json:"reason,omitempty"`
	MatchedBy  *policy.Permission `json:"matched_by,omitempty"`
	EvalTimeNs int64              `json:"eval_time_ns"`
}

// Decision is the authorization outcome.
type Decision string

const (
	// DecisionAllow means the request is permitted.
	DecisionAllow Decision = "allow"

	// DecisionDenyNoRoles means the user has no roles assigned.
	DecisionDenyNoRoles Decision = "deny_no_roles"

	// DecisionDenyNoPerms means no role grants the required permission.
	DecisionDenyNoPerms Decision = "deny_no_perms"

	// DecisionDenyCondition means a matching permission exists but its
	// conditions were not satisfied by the request context.
	DecisionDenyCondition Decision = "deny_condition"

	// DecisionDenyUnknownRole means the user holds a role outside the
	// recognized set. This is treated as a security anomaly and denied
	// rather than silently ignored.
	DecisionDenyUnknownRole Decision = "deny_unknown_role"

	// DecisionDenyInactive means the user account is not active.
	DecisionDenyInactive Decision = "deny_inactive"
)
