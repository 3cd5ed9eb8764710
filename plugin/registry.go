package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeAuthorizeEntry struct {
	name string
	hook BeforeAuthorize
}
type afterAuthorizeEntry struct {
	name string
	hook AfterAuthorize
}
type applicationSubmittedEntry struct {
	name string
	hook ApplicationSubmitted
}
type applicationStepResolvedEntry struct {
	name string
	hook ApplicationStepResolved
}
type applicationApprovedEntry struct {
	name string
	hook ApplicationApproved
}
type applicationRejectedEntry struct {
	name string
	hook ApplicationRejected
}
type applicationWithdrawnEntry struct {
	name string
	hook ApplicationWithdrawn
}
type roleGrantedEntry struct {
	name string
	hook RoleGranted
}
type rolesChangedEntry struct {
	name string
	hook RolesChanged
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeAuthorize         []beforeAuthorizeEntry
	afterAuthorize          []afterAuthorizeEntry
	applicationSubmitted    []applicationSubmittedEntry
	applicationStepResolved []applicationStepResolvedEntry
	applicationApproved     []applicationApprovedEntry
	applicationRejected     []applicationRejectedEntry
	applicationWithdrawn    []applicationWithdrawnEntry
	roleGranted             []roleGrantedEntry
	rolesChanged            []rolesChangedEntry
	shutdown                []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeAuthorize); ok {
		r.beforeAuthorize = append(r.beforeAuthorize, beforeAuthorizeEntry{name, h})
	}
	if h, ok := p.(AfterAuthorize); ok {
		r.afterAuthorize = append(r.afterAuthorize, afterAuthorizeEntry{name, h})
	}
	if h, ok := p.(ApplicationSubmitted); ok {
		r.applicationSubmitted = append(r.applicationSubmitted, applicationSubmittedEntry{name, h})
	}
	if h, ok := p.(ApplicationStepResolved); ok {
		r.applicationStepResolved = append(r.applicationStepResolved, applicationStepResolvedEntry{name, h})
	}
	if h, ok := p.(ApplicationApproved); ok {
		r.applicationApproved = append(r.applicationApproved, applicationApprovedEntry{name, h})
	}
	if h, ok := p.(ApplicationRejected); ok {
		r.applicationRejected = append(r.applicationRejected, applicationRejectedEntry{name, h})
	}
	if h, ok := p.(ApplicationWithdrawn); ok {
		r.applicationWithdrawn = append(r.applicationWithdrawn, applicationWithdrawnEntry{name, h})
	}
	if h, ok := p.(RoleGranted); ok {
		r.roleGranted = append(r.roleGranted, roleGrantedEntry{name, h})
	}
	if h, ok := p.(RolesChanged); ok {
		r.rolesChanged = append(r.rolesChanged, rolesChangedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Authorization event emitters
// ──────────────────────────────────────────────────

// EmitBeforeAuthorize notifies all plugins that implement BeforeAuthorize.
func (r *Registry) EmitBeforeAuthorize(ctx context.Context, req any) {
	for _, e := range r.beforeAuthorize {
		if err := e.hook.OnBeforeAuthorize(ctx, req); err != nil {
			r.logHookError("OnBeforeAuthorize", e.name, err)
		}
	}
}

// EmitAfterAuthorize notifies all plugins that implement AfterAuthorize.
func (r *Registry) EmitAfterAuthorize(ctx context.Context, req, result any) {
	for _, e := range r.afterAuthorize {
		if err := e.hook.OnAfterAuthorize(ctx, req, result); err != nil {
			r.logHookError("OnAfterAuthorize", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Application event emitters
// ──────────────────────────────────────────────────

// EmitApplicationSubmitted notifies all ApplicationSubmitted plugins.
func (r *Registry) EmitApplicationSubmitted(ctx context.Context, a *application.Application) {
	for _, e := range r.applicationSubmitted {
		if err := e.hook.OnApplicationSubmitted(ctx, a); err != nil {
			r.logHookError("OnApplicationSubmitted", e.name, err)
		}
	}
}

// EmitApplicationStepResolved notifies all ApplicationStepResolved plugins.
func (r *Registry) EmitApplicationStepResolved(ctx context.Context, a *application.Application, step string) {
	for _, e := range r.applicationStepResolved {
		if err := e.hook.OnApplicationStepResolved(ctx, a, step); err != nil {
			r.logHookError("OnApplicationStepResolved", e.name, err)
		}
	}
}

// EmitApplicationApproved notifies all ApplicationApproved plugins.
func (r *Registry) EmitApplicationApproved(ctx context.Context, a *application.Application) {
	for _, e := range r.applicationApproved {
		if err := e.hook.OnApplicationApproved(ctx, a); err != nil {
			r.logHookError("OnApplicationApproved", e.name, err)
		}
	}
}

// EmitApplicationRejected notifies all ApplicationRejected plugins.
func (r *Registry) EmitApplicationRejected(ctx context.Context, a *application.Application) {
	for _, e := range r.applicationRejected {
		if err := e.hook.OnApplicationRejected(ctx, a); err != nil {
			r.logHookError("OnApplicationRejected", e.name, err)
		}
	}
}

// EmitApplicationWithdrawn notifies all ApplicationWithdrawn plugins.
func (r *Registry) EmitApplicationWithdrawn(ctx context.Context, appID id.ApplicationID, userID id.UserID) {
	for _, e := range r.applicationWithdrawn {
		if err := e.hook.OnApplicationWithdrawn(ctx, appID, userID); err != nil {
			r.logHookError("OnApplicationWithdrawn", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleGranted notifies all RoleGranted plugins.
func (r *Registry) EmitRoleGranted(ctx context.Context, userID id.UserID, role policy.Role) {
	for _, e := range r.roleGranted {
		if err := e.hook.OnRoleGranted(ctx, userID, role); err != nil {
			r.logHookError("OnRoleGranted", e.name, err)
		}
	}
}

// EmitRolesChanged notifies all RolesChanged plugins.
func (r *Registry) EmitRolesChanged(ctx context.Context, userID id.UserID, roles []policy.Role) {
	for _, e := range r.rolesChanged {
		if err := e.hook.OnRolesChanged(ctx, userID, roles); err != nil {
			r.logHookError("OnRolesChanged", e.name, err)
		}
	}
}

// EmitShutdown notifies all Shutdown plugins.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) logHookError(hook, plugin string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warn("plugin hook failed",
		slog.String("hook", hook),
		slog.String("plugin", plugin),
		slog.String("error", err.Error()),
	)
}
