package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
)

// GrantRole adds a role to a user directly, bypassing the application
// workflow. Intended for administrative tooling; the resulting role set
// must still satisfy the composition constraints.
func (e *Engine) GrantRole(ctx context.Context, userID id.UserID, role policy.Role) error {
	if !policy.ValidRole(role) {
		return fmt.Errorf("%w: %q", policy.ErrInvalidRole, role)
	}

	err := e.store.InTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.HasRole(role) {
			return nil
		}

		resulting := append(append([]policy.Role(nil), u.Roles...), role)
		if violation, ok := policy.ValidateRoleConstraints(resulting); !ok {
			return fmt.Errorf("%w: %s", ErrStateConflict, violation)
		}

		if err := tx.AddUserRole(ctx, userID, role); err != nil {
			return err
		}
		return e.recordRolesChanged(ctx, tx, userID, resulting, "grant "+string(role))
	})
	if err != nil {
		return err
	}

	e.resolver.Invalidate(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitRoleGranted(ctx, userID, role)
	}
	return nil
}

// RevokeRole removes a role from a user. The base user role cannot be
// revoked while the user holds roles that depend on it.
func (e *Engine) RevokeRole(ctx context.Context, userID id.UserID, role policy.Role) error {
	if !policy.ValidRole(role) {
		return fmt.Errorf("%w: %q", policy.ErrInvalidRole, role)
	}

	var remaining []policy.Role
	err := e.store.InTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !u.HasRole(role) {
			return fmt.Errorf("%w: user does not hold role %q", ErrNotFound, role)
		}

		remaining = remaining[:0]
		for _, r := range u.Roles {
			if r != role {
				remaining = append(remaining, r)
			}
		}
		if violation, ok := policy.ValidateRoleConstraints(remaining); !ok {
			return fmt.Errorf("%w: %s", ErrStateConflict, violation)
		}

		if err := tx.UpdateUserRoles(ctx, userID, remaining); err != nil {
			return err
		}
		return e.recordRolesChanged(ctx, tx, userID, remaining, "revoke "+string(role))
	})
	if err != nil {
		return err
	}

	e.resolver.Invalidate(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitRolesChanged(ctx, userID, remaining)
	}
	return nil
}

func (e *Engine) recordRolesChanged(ctx context.Context, tx store.Store, userID id.UserID, roles []policy.Role, reason string) error {
	ip, ua := RequestInfoFromContext(ctx)
	entry := &audit.Entry{
		ID:           id.NewAuditLogID(),
		Event:        audit.EventRolesChanged,
		SubjectID:    userID,
		Reason:       reason,
		SubjectRoles: policy.RoleStrings(roles),
		RequestIP:    ip,
		UserAgent:    ua,
		CreatedAt:    time.Now().UTC(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		entry.ActorID = actor
	}
	if err := tx.CreateAuditEntry(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "audit write failed",
			slog.String("event", entry.Event),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
