// Package policy defines the static authorization policy model: roles,
// permissions, role inheritance, mutual-exclusion constraints, and the
// role transition table. Everything in this package is pure data and pure
// functions: no I/O, no mutable state beyond configuration load.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidRole is returned when a role is not a recognized enum member.
	ErrInvalidRole = errors.New("sentinel: invalid role")

	// ErrInvalidPermission is returned when a permission references an
	// unknown resource or action.
	ErrInvalidPermission = errors.New("sentinel: invalid permission")

	// ErrCircularInheritance is returned when the role inheritance graph
	// contains a cycle.
	ErrCircularInheritance = errors.New("sentinel: circular role inheritance detected")
)

// Role is a named capability bundle assignable to a user.
type Role string

// All roles known to the policy model.
const (
	RoleAdmin   Role = "admin"
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
	RoleWriter  Role = "writer"
	RoleSeller  Role = "seller"
	RoleUser    Role = "user"
)

// Roles returns all recognized roles.
func Roles() []Role {
	return []Role{RoleAdmin, RoleMentor, RoleStudent, RoleWriter, RoleSeller, RoleUser}
}

// RoleStrings converts a role slice to plain strings.
func RoleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// ValidRole reports whether r is a recognized role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleStudent, RoleWriter, RoleSeller, RoleUser:
		return true
	}
	return false
}

// SpecializedRoles are the roles acquired through the application workflow.
// A user holds at most one of them at a time.
func SpecializedRoles() []Role {
	return []Role{RoleStudent, RoleMentor, RoleWriter, RoleSeller}
}

// IsSpecialized reports whether r is a specialized (applied-for) role.
func IsSpecialized(r Role) bool {
	switch r {
	case RoleStudent, RoleMentor, RoleWriter, RoleSeller:
		return true
	}
	return false
}

// Resource is an enumerated resource type permissions apply to.
type Resource string

// All resource types known to the policy model.
const (
	ResourceUser     Resource = "user"
	ResourceCourse   Resource = "course"
	ResourceArticle  Resource = "article"
	ResourceProduct  Resource = "product"
	ResourceCategory Resource = "category"
	ResourceRole     Resource = "role"
)

// Resources returns all recognized resource types.
func Resources() []Resource {
	return []Resource{ResourceUser, ResourceCourse, ResourceArticle, ResourceProduct, ResourceCategory, ResourceRole}
}

// ValidResource reports whether r is a recognized resource type.
func ValidResource(r Resource) bool {
	switch r {
	case ResourceUser, ResourceCourse, ResourceArticle, ResourceProduct, ResourceCategory, ResourceRole:
		return true
	}
	return false
}

// Action is an enumerated operation on a resource. ActionManage subsumes
// every other action on its resource.
type Action string

// All actions known to the policy model.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// ValidAction reports whether a is a recognized action.
func ValidAction(a Action) bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Permission is a (resource, action) authorization unit with optional flat
// key/value conditions for attribute-based restriction.
type Permission struct {
	Resource   Resource          `json:"resource"`
	Action     Action            `json:"action"`
	Conditions map[string]string `json:"conditions,omitempty"`
}

// Key returns the identity of a permission for de-duplication:
// resource, action, and conditions in canonical key order.
func (p Permission) Key() string {
	if len(p.Conditions) == 0 {
		return string(p.Resource) + ":" + string(p.Action)
	}

	keys := make([]string, 0, len(p.Conditions))
	for k := range p.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(p.Resource))
	b.WriteByte(':')
	b.WriteString(string(p.Action))
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.Conditions[k])
	}
	return b.String()
}

// ValidatePermission checks that a permission references recognized enum
// members. Conditions are a flat key/value map by construction.
func ValidatePermission(p Permission) error {
	if !ValidResource(p.Resource) {
		return fmt.Errorf("%w: resource %q", ErrInvalidPermission, p.Resource)
	}
	if !ValidAction(p.Action) {
		return fmt.Errorf("%w: action %q", ErrInvalidPermission, p.Action)
	}
	return nil
}

// HasPermission reports whether the permission set grants (resource, action).
// A permission matches when its resource matches and its action matches
// exactly or is ActionManage. Unknown resources or actions are an error,
// never a silent deny-by-accident.
func HasPermission(perms []Permission, resource Resource, action Action) (bool, error) {
	if !ValidResource(resource) {
		return false, fmt.Errorf("%w: resource %q", ErrInvalidPermission, resource)
	}
	if !ValidAction(action) {
		return false, fmt.Errorf("%w: action %q", ErrInvalidPermission, action)
	}

	for _, p := range perms {
		if p.Resource == resource && (p.Action == action || p.Action == ActionManage) {
			return true, nil
		}
	}
	return false, nil
}

// Dedupe removes duplicate permissions by (resource, action, conditions)
// identity, preserving first-seen order.
func Dedupe(perms []Permission) []Permission {
	seen := make(map[string]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
