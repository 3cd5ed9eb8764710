package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/plugin"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/user"
)

// Engine is the central authorization engine. It resolves effective
// permissions through the cache, answers allow/deny on the hot path, and
// fires extension hooks.
type Engine struct {
	store    store.Store
	resolver *Resolver
	cache    Cache
	plugins  *plugin.Registry
	logger   *slog.Logger
	config   Config
}

// NewEngine creates a new engine with the given options. The role and
// permission table is validated once here so a misconfigured policy fails
// at startup rather than on the first check.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("sentinel: store is required")
	}
	if err := policy.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("sentinel: policy table: %w", err)
	}
	e.resolver = NewResolver(e.store, e.cache, e.config.CacheTTL, e.logger)
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Resolver returns the permission resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Logger returns the engine's structured logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Authorize performs an authorization check. This is the hot path: the
// only I/O is the user load and, on a cache miss, the in-memory permission
// computation.
func (e *Engine) Authorize(ctx context.Context, req *AccessRequest) (*AccessResult, error) {
	start := time.Now()

	if !policy.ValidResource(req.Resource) {
		return nil, fmt.Errorf("%w: unknown resource %q", policy.ErrInvalidPermission, req.Resource)
	}
	if !policy.ValidAction(req.Action) {
		return nil, fmt.Errorf("%w: unknown action %q", policy.ErrInvalidPermission, req.Action)
	}

	if e.plugins != nil {
		e.plugins.EmitBeforeAuthorize(ctx, req)
	}

	u, err := e.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("sentinel: load user: %w", err)
	}

	result, err := e.decide(ctx, u, req)
	if err != nil {
		return nil, err
	}
	result.EvalTimeNs = time.Since(start).Nanoseconds()

	if e.config.auditChecks() {
		e.recordCheck(ctx, req, u, result)
	}
	if e.plugins != nil {
		e.plugins.EmitAfterAuthorize(ctx, req, result)
	}
	return result, nil
}

func (e *Engine) decide(ctx context.Context, u *user.User, req *AccessRequest) (*AccessResult, error) {
	if e.config.requireActiveUser() && u.Status != user.StatusActive {
		return &AccessResult{
			Decision: DecisionDenyInactive,
			Reason:   fmt.Sprintf("user account is %s", u.Status),
		}, nil
	}
	if len(u.Roles) == 0 {
		return &AccessResult{
			Decision: DecisionDenyNoRoles,
			Reason:   "user has no roles",
		}, nil
	}

	// A role outside the recognized set is a security anomaly. Deny the
	// whole request rather than silently skipping the unknown role.
	for _, r := range u.Roles {
		if !policy.ValidRole(r) {
			e.logger.WarnContext(ctx, "authorization denied: unrecognized role",
				slog.String("user_id", u.ID.String()),
				slog.String("role", string(r)),
			)
			return &AccessResult{
				Decision: DecisionDenyUnknownRole,
				Reason:   fmt.Sprintf("unrecognized role %q", r),
			}, nil
		}
	}

	perms, err := e.resolver.EffectivePermissions(ctx, u)
	if err != nil {
		return nil, err
	}

	conditionBlocked := false
	for i := range perms {
		p := perms[i]
		if p.Resource != req.Resource {
			continue
		}
		if p.Action != req.Action && p.Action != policy.ActionManage {
			continue
		}
		if !matchConditions(p, req.Context) {
			conditionBlocked = true
			continue
		}
		return &AccessResult{
			Allowed:   true,
			Decision:  DecisionAllow,
			MatchedBy: &p,
		}, nil
	}

	if conditionBlocked {
		return &AccessResult{
			Decision: DecisionDenyCondition,
			Reason:   "permission conditions not satisfied",
		}, nil
	}
	return &AccessResult{
		Decision: DecisionDenyNoPerms,
		Reason:   fmt.Sprintf("no role grants %s:%s", req.Resource, req.Action),
	}, nil
}

// Enforce returns ErrAccessDenied if the check is denied. The error is
// deliberately opaque; detail stays in the audit trail.
func (e *Engine) Enforce(ctx context.Context, req *AccessRequest) error {
	result, err := e.Authorize(ctx, req)
	if err != nil {
		return fmt.Errorf("sentinel authorize: %w", err)
	}
	if !result.Allowed {
		return ErrAccessDenied
	}
	return nil
}

// Can is a shorthand for a simple authorization check.
func (e *Engine) Can(ctx context.Context, userID id.UserID, resource policy.Resource, action policy.Action) (bool, error) {
	result, err := e.Authorize(ctx, &AccessRequest{UserID: userID, Resource: resource, Action: action})
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// InvalidateUser drops the user's cached permission set. Callers mutating
// roles or custom permissions outside the workflow service must call this
// after every successful write.
func (e *Engine) InvalidateUser(ctx context.Context, userID id.UserID) {
	e.resolver.Invalidate(ctx, userID)
}

// recordCheck writes the decision to the audit trail. Failures are logged,
// never surfaced: an audit outage must not turn into an authorization
// outage.
func (e *Engine) recordCheck(ctx context.Context, req *AccessRequest, u *user.User, result *AccessResult) {
	ip, ua := RequestInfoFromContext(ctx)
	entry := &audit.Entry{
		ID:           id.NewAuditLogID(),
		Event:        audit.EventAccessCheck,
		SubjectID:    req.UserID,
		TargetID:     string(req.Resource) + ":" + string(req.Action),
		Decision:     string(result.Decision),
		Reason:       result.Reason,
		SubjectRoles: policy.RoleStrings(u.Roles),
		RequestIP:    ip,
		UserAgent:    ua,
		EvalTimeNs:   result.EvalTimeNs,
		CreatedAt:    time.Now().UTC(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		entry.ActorID = actor
	}
	if err := e.store.CreateAuditEntry(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "audit write failed",
			slog.String("event", entry.Event),
			slog.String("error", err.Error()),
		)
	}
}
