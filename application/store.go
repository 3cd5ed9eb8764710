package application

import (
	"context"
	"time"

	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// ListFilter narrows application listing.
type ListFilter struct {
	UserID   id.UserID
	Role     policy.Role
	Statuses []Status
	// UpdatedBefore matches applications whose last update is strictly
	// older than the given instant.
	UpdatedBefore *time.Time
	Limit         int64
	Offset        int64
}

// StatusCount is one cell of the application statistics matrix.
type StatusCount struct {
	Role   policy.Role `json:"role"`
	Status Status      `json:"status"`
	Count  int64       `json:"count"`
}

// Store defines persistence operations for role applications.
type Store interface {
	// CreateApplication persists a new application.
	CreateApplication(ctx context.Context, a *Application) error

	// GetApplication retrieves an application by ID.
	GetApplication(ctx context.Context, appID id.ApplicationID) (*Application, error)

	// GetOpenApplication retrieves the user's open (pending or in_review)
	// application, if any. At most one exists per user.
	GetOpenApplication(ctx context.Context, userID id.UserID) (*Application, error)

	// UpdateApplication persists changes to an application.
	UpdateApplication(ctx context.Context, a *Application) error

	// DeleteApplication removes an application by ID.
	DeleteApplication(ctx context.Context, appID id.ApplicationID) error

	// ListApplications returns applications matching the filter, newest
	// first.
	ListApplications(ctx context.Context, filter *ListFilter) ([]*Application, error)

	// CountApplications returns the number of applications matching the
	// filter.
	CountApplications(ctx context.Context, filter *ListFilter) (int64, error)

	// CountApplicationsByRoleStatus aggregates application counts per
	// role and status.
	CountApplicationsByRoleStatus(ctx context.Context) ([]StatusCount, error)
}
