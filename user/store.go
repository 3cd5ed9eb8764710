package user

import (
	"context"
	"time"

	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// Store defines persistence operations for users.
type Store interface {
	// CreateUser persists a new user.
	CreateUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID id.UserID) (*User, error)

	// UpdateUser persists changes to a user.
	UpdateUser(ctx context.Context, u *User) error

	// UpdateUserRoles replaces the user's role set.
	UpdateUserRoles(ctx context.Context, userID id.UserID, roles []policy.Role) error

	// AddUserRole adds a role to the user's role set if not already present.
	AddUserRole(ctx context.Context, userID id.UserID, role policy.Role) error

	// SetRoleVerified marks a role as verified on the user's role data.
	SetRoleVerified(ctx context.Context, userID id.UserID, role policy.Role, at time.Time) error

	// SetCustomPermissions replaces the user's custom permission grants.
	SetCustomPermissions(ctx context.Context, userID id.UserID, perms []policy.Permission) error

	// ListUsers returns users matching the filter.
	ListUsers(ctx context.Context, filter *ListFilter) ([]*User, error)

	// DeleteUser removes a user by ID.
	DeleteUser(ctx context.Context, userID id.UserID) error
}
