// Package user defines the identity aspect of a platform user: assigned
// roles, custom permission grants, lifecycle status, and per-role
// verification data. It deliberately carries nothing presentational.
package user

import (
	"time"

	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// MaxCustomPermissions caps per-user ad-hoc grants so the resolved
// permission set stays bounded.
const MaxCustomPermissions = 50

// Status is the lifecycle status of a user account.
type Status string

// All user lifecycle states.
const (
	StatusActive              Status = "active"
	StatusInactive            Status = "inactive"
	StatusSuspended           Status = "suspended"
	StatusPending             Status = "pending"
	StatusPendingVerification Status = "pending_verification"
)

// RoleData is per-role verification state recorded when a role is granted
// through the application workflow.
type RoleData struct {
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// User is the identity aspect consumed by the authorization engine and the
// role-application workflow.
type User struct {
	ID                id.UserID                    `json:"id"`
	Email             string                       `json:"email"`
	Roles             []policy.Role                `json:"roles"`
	Status            Status                       `json:"status"`
	CustomPermissions []policy.Permission          `json:"custom_permissions,omitempty"`
	RoleData          map[policy.Role]RoleData     `json:"role_data,omitempty"`
	Metadata          map[string]any               `json:"metadata,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

// HasRole reports whether the user holds r.
func (u *User) HasRole(r policy.Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// SpecializedRole returns the specialized role the user holds, if any.
func (u *User) SpecializedRole() (policy.Role, bool) {
	for _, r := range u.Roles {
		if policy.IsSpecialized(r) {
			return r, true
		}
	}
	return "", false
}

// ListFilter contains filters for listing users.
type ListFilter struct {
	Role   policy.Role `json:"role,omitempty"`
	Status Status      `json:"status,omitempty"`
	Search string      `json:"search,omitempty"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}
