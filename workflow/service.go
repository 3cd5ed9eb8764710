// Package workflow implements the role-application state machine: submit,
// verification-step resolution, approval, rejection, and withdrawal. Every
// multi-record mutation (application write + user role write + audit write)
// runs in a single store transaction, and the user's permission cache is
// invalidated unconditionally after every successful mutation.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/blob"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/notify"
	"github.com/xraph/sentinel/plugin"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/user"
)

// DefaultMaxRetries bounds retries of transactions that fail with a
// transient commit conflict.
const DefaultMaxRetries = 3

// Service drives role applications through their lifecycle.
type Service struct {
	store      store.Store
	cache      sentinel.Cache
	notifier   notify.Notifier
	blobs      blob.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	maxRetries int
}

// Option is a functional option for the Service.
type Option func(*Service)

// WithCache sets the permission cache invalidated on role changes.
func WithCache(c sentinel.Cache) Option { return func(s *Service) { s.cache = c } }

// WithNotifier sets the notification backend.
func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithPlugins sets the plugin registry notified of lifecycle events.
func WithPlugins(r *plugin.Registry) Option { return func(s *Service) { s.plugins = r } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMaxRetries sets the retry bound for transient transaction failures.
func WithMaxRetries(n int) Option { return func(s *Service) { s.maxRetries = n } }

// New creates a workflow service backed by the given store.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		notifier:   notify.NopNotifier{},
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput carries everything a user provides when applying for a role.
type SubmitInput struct {
	UserID    id.UserID
	Role      policy.Role
	Fields    json.RawMessage
	Documents []application.Document
}

// Submit validates all preconditions and creates the application. For
// auto-approved roles the role grant happens in the same transaction as
// the application write.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*application.Application, error) {
	req, err := application.RequirementsFor(in.Role)
	if err != nil {
		return nil, err
	}
	fields, err := application.DecodeFields(in.Role, in.Fields)
	if err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if err := req.ValidateDocuments(in.Documents); err != nil {
		return nil, err
	}

	var app *application.Application
	err = s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := s.checkSubmitPreconditions(ctx, tx, u, in.Role); err != nil {
			return err
		}

		now := time.Now().UTC()
		app = &application.Application{
			ID:            id.NewApplicationID(),
			UserID:        u.ID,
			Role:          in.Role,
			Status:        application.StatusPending,
			Fields:        fields,
			Documents:     in.Documents,
			Steps:         req.NewSteps(),
			RolesAtSubmit: append([]policy.Role(nil), u.Roles...),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.AutoApprove {
			app.Status = application.StatusApproved
			app.ReviewedAt = &now
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		if req.AutoApprove {
			if err := s.grantRole(ctx, tx, u.ID, in.Role, now); err != nil {
				return err
			}
		}
		return s.recordEvent(ctx, tx, audit.EventApplicationSubmitted, app, map[string]any{
			"auto_approved": req.AutoApprove,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, in.UserID)
	s.notify(ctx, in.UserID, notify.TemplateApplicationReceived, map[string]any{
		"application_id": app.ID.String(),
		"role":           string(in.Role),
		"status":         string(app.Status),
	})
	if s.plugins != nil {
		s.plugins.EmitApplicationSubmitted(ctx, app)
		if req.AutoApprove {
			s.plugins.EmitRoleGranted(ctx, in.UserID, in.Role)
		}
	}
	return app, nil
}

func (s *Service) checkSubmitPreconditions(ctx context.Context, tx store.Store, u *user.User, role policy.Role) error {
	if !u.HasRole(policy.RoleUser) {
		return fmt.Errorf("%w: applicant must hold the base user role", sentinel.ErrValidation)
	}
	if held, ok := u.SpecializedRole(); ok {
		return fmt.Errorf("%w: user already holds the %s role", sentinel.ErrStateConflict, held)
	}
	if _, err := tx.GetOpenApplication(ctx, u.ID); err == nil {
		return fmt.Errorf("%w: user already has an open application", sentinel.ErrStateConflict)
	} else if !sentinel.IsNotFound(err) {
		return err
	}

	validTarget := false
	for _, held := range u.Roles {
		ok, err := policy.IsValidTransition(held, role)
		if err != nil {
			return err
		}
		if ok {
			validTarget = true
			break
		}
	}
	if !validTarget {
		return fmt.Errorf("%w: role %s is not a valid transition from the user's current roles", sentinel.ErrValidation, role)
	}

	resulting := append(append([]policy.Role(nil), u.Roles...), role)
	if violation, ok := policy.ValidateRoleConstraints(resulting); !ok {
		return fmt.Errorf("%w: %s", sentinel.ErrValidation, violation)
	}
	return nil
}

// ResolveStep resolves one verification step. When the resolution completes
// the application (all steps resolved), the terminal side effects (role
// grant on approval, reviewer bookkeeping on rejection) apply in the same
// transaction.
func (s *Service) ResolveStep(ctx context.Context, appID id.ApplicationID, stepName string, outcome application.StepStatus, notes string) (*application.Application, error) {
	actor, ok := sentinel.ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: acting reviewer is required", sentinel.ErrValidation)
	}

	var app *application.Application
	err := s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := app.ResolveStep(stepName, outcome, actor, now, notes); err != nil {
			return err
		}
		if app.Status == application.StatusApproved {
			if err := s.checkGrantStillValid(ctx, tx, app); err != nil {
				return err
			}
		}
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		if app.Status == application.StatusApproved {
			if err := s.grantRole(ctx, tx, app.UserID, app.Role, now); err != nil {
				return err
			}
		}
		return s.recordEvent(ctx, tx, audit.EventApplicationStep, app, map[string]any{
			"step":    stepName,
			"outcome": string(outcome),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, app.UserID)
	s.notifyOutcome(ctx, app, notify.TemplateStepResolved, map[string]any{
		"step":    stepName,
		"outcome": string(outcome),
	})
	if s.plugins != nil {
		s.plugins.EmitApplicationStepResolved(ctx, app, stepName)
		switch app.Status {
		case application.StatusApproved:
			s.plugins.EmitApplicationApproved(ctx, app)
			s.plugins.EmitRoleGranted(ctx, app.UserID, app.Role)
		case application.StatusRejected:
			s.plugins.EmitApplicationRejected(ctx, app)
		}
	}
	return app, nil
}

// Approve finalizes an application administratively. Role constraints are
// re-checked against the user's current roles: they may have changed since
// submission.
func (s *Service) Approve(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	actor, ok := sentinel.ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: acting reviewer is required", sentinel.ErrValidation)
	}

	var app *application.Application
	err := s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := s.checkGrantStillValid(ctx, tx, app); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := app.Approve(actor, now); err != nil {
			return err
		}
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		if err := s.grantRole(ctx, tx, app.UserID, app.Role, now); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, audit.EventApplicationApproved, app, nil)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, app.UserID)
	s.notifyOutcome(ctx, app, notify.TemplateApplicationApproved, nil)
	if s.plugins != nil {
		s.plugins.EmitApplicationApproved(ctx, app)
		s.plugins.EmitRoleGranted(ctx, app.UserID, app.Role)
	}
	return app, nil
}

// checkGrantStillValid re-validates role constraints for the applicant's
// current role set plus the applied-for role.
func (s *Service) checkGrantStillValid(ctx context.Context, tx store.Store, app *application.Application) error {
	u, err := tx.GetUser(ctx, app.UserID)
	if err != nil {
		return err
	}
	resulting := append(append([]policy.Role(nil), u.Roles...), app.Role)
	if violation, ok := policy.ValidateRoleConstraints(resulting); !ok {
		return fmt.Errorf("%w: %s", sentinel.ErrStateConflict, violation)
	}
	return nil
}

// Reject terminates an application with a reviewer-supplied reason. No
// role change occurs.
func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, reason string) (*application.Application, error) {
	actor, ok := sentinel.ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: acting reviewer is required", sentinel.ErrValidation)
	}

	var app *application.Application
	err := s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.Reject(actor, time.Now().UTC(), reason); err != nil {
			return err
		}
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, audit.EventApplicationRejected, app, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, app.UserID)
	s.notifyOutcome(ctx, app, notify.TemplateApplicationRejected, map[string]any{
		"reason": reason,
	})
	if s.plugins != nil {
		s.plugins.EmitApplicationRejected(ctx, app)
	}
	return app, nil
}

// Withdraw removes an open application at the owner's request. The audit
// entry preserves the status the application had before withdrawal.
func (s *Service) Withdraw(ctx context.Context, appID id.ApplicationID) error {
	actor, ok := sentinel.ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: acting user is required", sentinel.ErrValidation)
	}

	var userID id.UserID
	err := s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
		app, err := tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if app.UserID != actor {
			return fmt.Errorf("%w: only the applicant may withdraw", sentinel.ErrAccessDenied)
		}
		if !app.Withdrawable() {
			return fmt.Errorf("%w: application %s is already %s", sentinel.ErrStateConflict, app.ID, app.Status)
		}
		userID = app.UserID

		priorStatus := app.Status
		if err := tx.DeleteApplication(ctx, app.ID); err != nil {
			return err
		}
		return s.recordEvent(ctx, tx, audit.EventApplicationWithdrawn, app, map[string]any{
			"prior_status": string(priorStatus),
		})
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	s.notify(ctx, userID, notify.TemplateApplicationWithdrawn, map[string]any{
		"application_id": appID.String(),
	})
	if s.plugins != nil {
		s.plugins.EmitApplicationWithdrawn(ctx, appID, userID)
	}
	return nil
}

// ExpireStale terminates open applications whose last update is older
// than maxAge. It returns the number of applications expired. Intended to
// be driven by an operator endpoint or a periodic job.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := s.store.ListApplications(ctx, &application.ListFilter{
		Statuses:      []application.Status{application.StatusPending, application.StatusInReview},
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		err := s.withRetry(ctx, func(ctx context.Context, tx store.Store) error {
			app, err := tx.GetApplication(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Re-check under the transaction: a reviewer may have
			// resolved the application since the listing.
			if err := app.Expire(time.Now().UTC()); err != nil {
				return err
			}
			if err := tx.UpdateApplication(ctx, app); err != nil {
				return err
			}
			return s.recordEvent(ctx, tx, audit.EventApplicationExpired, app, nil)
		})
		switch {
		case err == nil:
			expired++
			s.notify(ctx, candidate.UserID, notify.TemplateApplicationExpired, map[string]any{
				"application_id": candidate.ID.String(),
				"role":           string(candidate.Role),
			})
		case sentinel.IsStateConflict(err) || sentinel.IsNotFound(err):
			// Lost the race to a reviewer or a withdrawal. Skip.
		default:
			return expired, err
		}
	}
	return expired, nil
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	return s.store.GetApplication(ctx, appID)
}

// List returns applications matching the filter.
func (s *Service) List(ctx context.Context, filter *application.ListFilter) ([]*application.Application, error) {
	return s.store.ListApplications(ctx, filter)
}

// ApplicationsForUser returns the user's application history. Withdrawn
// applications never appear: withdrawal deletes the record.
func (s *Service) ApplicationsForUser(ctx context.Context, userID id.UserID) ([]*application.Application, error) {
	return s.store.ListApplications(ctx, &application.ListFilter{UserID: userID})
}

// Stats aggregates application counts per role and status.
func (s *Service) Stats(ctx context.Context) ([]application.StatusCount, error) {
	return s.store.CountApplicationsByRoleStatus(ctx)
}

// grantRole adds the role, marks it verified, and records the grant, all
// through tx so the grant commits with the application write.
func (s *Service) grantRole(ctx context.Context, tx store.Store, userID id.UserID, role policy.Role, at time.Time) error {
	if err := tx.AddUserRole(ctx, userID, role); err != nil {
		return err
	}
	if err := tx.SetRoleVerified(ctx, userID, role, at); err != nil {
		return err
	}
	ip, ua := sentinel.RequestInfoFromContext(ctx)
	entry := &audit.Entry{
		ID:        id.NewAuditLogID(),
		Event:     audit.EventRoleGranted,
		SubjectID: userID,
		TargetID:  string(role),
		RequestIP: ip,
		UserAgent: ua,
		CreatedAt: at,
	}
	if actor, ok := sentinel.ActorFromContext(ctx); ok {
		entry.ActorID = actor
	}
	return tx.CreateAuditEntry(ctx, entry)
}

// recordEvent writes an application lifecycle audit entry through tx so it
// commits atomically with the state change.
func (s *Service) recordEvent(ctx context.Context, tx store.Store, event string, app *application.Application, metadata map[string]any) error {
	ip, ua := sentinel.RequestInfoFromContext(ctx)
	entry := &audit.Entry{
		ID:        id.NewAuditLogID(),
		Event:     event,
		SubjectID: app.UserID,
		TargetID:  app.ID.String(),
		Decision:  string(app.Status),
		RequestIP: ip,
		UserAgent: ua,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	// Snapshot the subject's roles as they stand at this point in the
	// transaction, after any grant performed by the caller.
	if u, err := tx.GetUser(ctx, app.UserID); err == nil {
		entry.SubjectRoles = policy.RoleStrings(u.Roles)
	}
	if actor, ok := sentinel.ActorFromContext(ctx); ok {
		entry.ActorID = actor
	}
	return tx.CreateAuditEntry(ctx, entry)
}

// withRetry runs fn in a transaction, retrying on transient commit
// conflicts up to the configured bound. Validation and state errors never
// retry.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.store.InTransaction(ctx, fn)
		if err == nil || !sentinel.IsTransient(err) {
			return err
		}
		s.logger.WarnContext(ctx, "transaction conflict, retrying",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// invalidate drops the user's cached permission set. Invalidation runs
// unconditionally after every successful mutation; a store write that
// commits without invalidation would leave stale authorization decisions.
func (s *Service) invalidate(ctx context.Context, userID id.UserID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

// notify delivers best-effort; a failure is logged, never surfaced.
func (s *Service) notify(ctx context.Context, userID id.UserID, tmpl notify.Template, data map[string]any) {
	if err := s.notifier.Notify(ctx, notify.Message{UserID: userID, Template: tmpl, Data: data}); err != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("template", string(tmpl)),
			slog.String("error", err.Error()),
		)
	}
}

// notifyOutcome picks the terminal template when a mutation completed the
// application, falling back to the mutation's own template otherwise.
func (s *Service) notifyOutcome(ctx context.Context, app *application.Application, tmpl notify.Template, data map[string]any) {
	switch app.Status {
	case application.StatusApproved:
		tmpl = notify.TemplateApplicationApproved
	case application.StatusRejected:
		tmpl = notify.TemplateApplicationRejected
	}
	if data == nil {
		data = map[string]any{}
	}
	data["application_id"] = app.ID.String()
	data["role"] = string(app.Role)
	data["status"] = string(app.Status)
	s.notify(ctx, app.UserID, tmpl, data)
}
