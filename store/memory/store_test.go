package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/user"
)

// Compile-time check that *Store implements store.Store.
var _ store.Store = (*Store)(nil)

func newTestUser(email string, roles ...policy.Role) *user.User {
	now := time.Now().UTC()
	return &user.User{
		ID:        id.NewUserID(),
		Email:     email,
		Roles:     roles,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestApplication(userID id.UserID, role policy.Role, status application.Status) *application.Application {
	now := time.Now().UTC()
	return &application.Application{
		ID:            id.NewApplicationID(),
		UserID:        userID,
		Role:          role,
		Status:        status,
		RolesAtSubmit: []policy.Role{policy.RoleUser},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUserCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newTestUser("ada@example.com", policy.RoleUser)

	// Create
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	// Duplicate email rejected
	dup := newTestUser("ada@example.com", policy.RoleUser)
	if err := s.CreateUser(ctx, dup); !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	// Get
	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("expected ada@example.com, got %s", got.Email)
	}

	// Update
	u.Status = user.StatusSuspended
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUser(ctx, u.ID)
	if got.Status != user.StatusSuspended {
		t.Fatal("update failed")
	}

	// List
	list, _ := s.ListUsers(ctx, &user.ListFilter{Role: policy.RoleUser})
	if len(list) != 1 {
		t.Fatalf("expected 1 user, got %d", len(list))
	}

	// Delete
	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUser(ctx, u.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatal("expected not found after delete")
	}
}

func TestUserRoleMutations(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newTestUser("bea@example.com", policy.RoleUser)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	// AddUserRole is idempotent.
	if err := s.AddUserRole(ctx, u.ID, policy.RoleStudent); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUserRole(ctx, u.ID, policy.RoleStudent); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetUser(ctx, u.ID)
	if len(got.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %v", got.Roles)
	}

	// UpdateUserRoles replaces the whole set.
	if err := s.UpdateUserRoles(ctx, u.ID, []policy.Role{policy.RoleUser}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUser(ctx, u.ID)
	if len(got.Roles) != 1 || got.Roles[0] != policy.RoleUser {
		t.Fatalf("expected [user], got %v", got.Roles)
	}

	// SetRoleVerified records per-role data.
	at := time.Now().UTC()
	if err := s.SetRoleVerified(ctx, u.ID, policy.RoleUser, at); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUser(ctx, u.ID)
	if !got.RoleData[policy.RoleUser].Verified {
		t.Fatal("expected role marked verified")
	}

	// SetCustomPermissions replaces the grant list.
	perms := []policy.Permission{{Resource: policy.ResourceArticle, Action: policy.ActionUpdate}}
	if err := s.SetCustomPermissions(ctx, u.ID, perms); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUser(ctx, u.ID)
	if len(got.CustomPermissions) != 1 {
		t.Fatalf("expected 1 custom permission, got %d", len(got.CustomPermissions))
	}

	// The per-user grant list is capped.
	over := make([]policy.Permission, user.MaxCustomPermissions+1)
	for i := range over {
		over[i] = policy.Permission{Resource: policy.ResourceArticle, Action: policy.ActionRead}
	}
	if err := s.SetCustomPermissions(ctx, u.ID, over); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for oversized grant list, got %v", err)
	}
}

func TestApplicationCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newTestUser("cam@example.com", policy.RoleUser)
	_ = s.CreateUser(ctx, u)

	a := newTestApplication(u.ID, policy.RoleMentor, application.StatusPending)
	if err := s.CreateApplication(ctx, a); err != nil {
		t.Fatal(err)
	}

	// Get
	got, err := s.GetApplication(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != policy.RoleMentor {
		t.Fatalf("expected mentor application, got %s", got.Role)
	}

	// One open application per user.
	second := newTestApplication(u.ID, policy.RoleWriter, application.StatusPending)
	if err := s.CreateApplication(ctx, second); !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("expected conflict for second open application, got %v", err)
	}

	// GetOpenApplication finds it.
	open, err := s.GetOpenApplication(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open.ID != a.ID {
		t.Fatal("open application lookup mismatch")
	}

	// Terminal application frees the slot.
	a.Status = application.StatusRejected
	if err := s.UpdateApplication(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetOpenApplication(ctx, u.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatal("expected no open application after rejection")
	}
	if err := s.CreateApplication(ctx, second); err != nil {
		t.Fatal(err)
	}

	// List by status filter
	list, _ := s.ListApplications(ctx, &application.ListFilter{
		UserID:   u.ID,
		Statuses: []application.Status{application.StatusRejected},
	})
	if len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("expected the rejected application, got %d entries", len(list))
	}

	// Delete
	if err := s.DeleteApplication(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetApplication(ctx, second.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatal("expected not found after delete")
	}
}

func TestCountApplicationsByRoleStatus(t *testing.T) {
	ctx := context.Background()
	s := New()

	for range 3 {
		u := newTestUser(id.NewUserID().String()+"@example.com", policy.RoleUser)
		_ = s.CreateUser(ctx, u)
		a := newTestApplication(u.ID, policy.RoleMentor, application.StatusPending)
		if err := s.CreateApplication(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	u := newTestUser("dee@example.com", policy.RoleUser)
	_ = s.CreateUser(ctx, u)
	a := newTestApplication(u.ID, policy.RoleSeller, application.StatusApproved)
	_ = s.CreateApplication(ctx, a)

	stats, err := s.CountApplicationsByRoleStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(stats))
	}
	for _, cell := range stats {
		switch cell.Role {
		case policy.RoleMentor:
			if cell.Status != application.StatusPending || cell.Count != 3 {
				t.Fatalf("unexpected mentor cell: %+v", cell)
			}
		case policy.RoleSeller:
			if cell.Status != application.StatusApproved || cell.Count != 1 {
				t.Fatalf("unexpected seller cell: %+v", cell)
			}
		}
	}
}

func TestAuditEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	userID := id.NewUserID()
	old := &audit.Entry{
		ID:        id.NewAuditLogID(),
		Event:     audit.EventAccessCheck,
		SubjectID: userID,
		Decision:  "allow",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	recent := &audit.Entry{
		ID:        id.NewAuditLogID(),
		Event:     audit.EventApplicationSubmitted,
		SubjectID: userID,
		CreatedAt: time.Now().UTC(),
	}
	_ = s.CreateAuditEntry(ctx, old)
	_ = s.CreateAuditEntry(ctx, recent)

	// Newest first.
	list, err := s.ListAuditEntries(ctx, &audit.QueryFilter{SubjectID: userID})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != recent.ID {
		t.Fatalf("expected newest-first ordering, got %d entries", len(list))
	}

	// Event filter.
	list, _ = s.ListAuditEntries(ctx, &audit.QueryFilter{Event: audit.EventAccessCheck})
	if len(list) != 1 {
		t.Fatalf("expected 1 access check entry, got %d", len(list))
	}

	// Purge.
	n, err := s.PurgeAuditEntries(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
}

func TestInTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newTestUser("eve@example.com", policy.RoleUser)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.InTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.AddUserRole(ctx, u.ID, policy.RoleStudent); err != nil {
			return err
		}
		a := newTestApplication(u.ID, policy.RoleStudent, application.StatusApproved)
		if err := tx.CreateApplication(ctx, a); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	// Every write rolled back.
	got, _ := s.GetUser(ctx, u.ID)
	if len(got.Roles) != 1 {
		t.Fatalf("expected role write rolled back, got %v", got.Roles)
	}
	count, _ := s.CountApplications(ctx, nil)
	if count != 0 {
		t.Fatalf("expected application write rolled back, got %d", count)
	}
}

func TestInTransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newTestUser("fay@example.com", policy.RoleUser)
	_ = s.CreateUser(ctx, u)

	err := s.InTransaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.AddUserRole(ctx, u.ID, policy.RoleStudent); err != nil {
			return err
		}
		return tx.CreateApplication(ctx, newTestApplication(u.ID, policy.RoleStudent, application.StatusApproved))
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetUser(ctx, u.ID)
	if !got.HasRole(policy.RoleStudent) {
		t.Fatal("expected committed role write")
	}
	count, _ := s.CountApplications(ctx, nil)
	if count != 1 {
		t.Fatalf("expected committed application write, got %d", count)
	}
}
