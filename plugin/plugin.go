// Package plugin defines the plugin system for Sentinel.
// Plugins are notified of lifecycle events (authorization performed,
// application submitted, role granted, etc.) and can react by logging,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Authorization lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeAuthorize is called before an authorization check is evaluated.
// The req parameter is *sentinel.AccessRequest (passed as any to avoid
// import cycle).
type BeforeAuthorize interface {
	OnBeforeAuthorize(ctx context.Context, req any) error
}

// AfterAuthorize is called after an authorization check completes.
// The req parameter is *sentinel.AccessRequest; result is
// *sentinel.AccessResult.
type AfterAuthorize interface {
	OnAfterAuthorize(ctx context.Context, req, result any) error
}

// ──────────────────────────────────────────────────
// Application lifecycle hooks
// ──────────────────────────────────────────────────

// ApplicationSubmitted is called after a role application is submitted.
type ApplicationSubmitted interface {
	OnApplicationSubmitted(ctx context.Context, a *application.Application) error
}

// ApplicationStepResolved is called after a verification step resolves.
type ApplicationStepResolved interface {
	OnApplicationStepResolved(ctx context.Context, a *application.Application, step string) error
}

// ApplicationApproved is called after an application is approved.
type ApplicationApproved interface {
	OnApplicationApproved(ctx context.Context, a *application.Application) error
}

// ApplicationRejected is called after an application is rejected.
type ApplicationRejected interface {
	OnApplicationRejected(ctx context.Context, a *application.Application) error
}

// ApplicationWithdrawn is called after an application is withdrawn.
type ApplicationWithdrawn interface {
	OnApplicationWithdrawn(ctx context.Context, appID id.ApplicationID, userID id.UserID) error
}

// ──────────────────────────────────────────────────
// Role lifecycle hooks
// ──────────────────────────────────────────────────

// RoleGranted is called after a role is granted to a user.
type RoleGranted interface {
	OnRoleGranted(ctx context.Context, userID id.UserID, role policy.Role) error
}

// RolesChanged is called after a user's role set changes for any reason.
type RolesChanged interface {
	OnRolesChanged(ctx context.Context, userID id.UserID, roles []policy.Role) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
