package sentinel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/cache"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store/memory"
	"github.com/xraph/sentinel/user"
)

func newTestEngine(t *testing.T) (*sentinel.Engine, *memory.Store, *cache.Memory) {
	t.Helper()
	st := memory.New()
	c := cache.NewMemory()
	e, err := sentinel.NewEngine(
		sentinel.WithStore(st),
		sentinel.WithCache(c),
	)
	if err != nil {
		t.Fatal(err)
	}
	return e, st, c
}

func seedUser(t *testing.T, st *memory.Store, roles ...policy.Role) *user.User {
	t.Helper()
	now := time.Now().UTC()
	u := &user.User{
		ID:        id.NewUserID(),
		Email:     id.NewUserID().String() + "@example.com",
		Roles:     roles,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestNewEngineRequiresStore(t *testing.T) {
	if _, err := sentinel.NewEngine(); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func TestAuthorize(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	mentor := seedUser(t, st, policy.RoleUser, policy.RoleMentor)
	student := seedUser(t, st, policy.RoleUser, policy.RoleStudent)
	admin := seedUser(t, st, policy.RoleAdmin)

	tests := []struct {
		name     string
		userID   id.UserID
		resource policy.Resource
		action   policy.Action
		allowed  bool
		decision sentinel.Decision
	}{
		{"mentor creates course", mentor.ID, policy.ResourceCourse, policy.ActionCreate, true, sentinel.DecisionAllow},
		{"mentor reads product via base role", mentor.ID, policy.ResourceProduct, policy.ActionRead, true, sentinel.DecisionAllow},
		{"mentor cannot create product", mentor.ID, policy.ResourceProduct, policy.ActionCreate, false, sentinel.DecisionDenyNoPerms},
		{"student reads course", student.ID, policy.ResourceCourse, policy.ActionRead, true, sentinel.DecisionAllow},
		{"student cannot delete course", student.ID, policy.ResourceCourse, policy.ActionDelete, false, sentinel.DecisionDenyNoPerms},
		{"admin manage subsumes delete", admin.ID, policy.ResourceRole, policy.ActionDelete, true, sentinel.DecisionAllow},
		{"admin manage subsumes create", admin.ID, policy.ResourceUser, policy.ActionCreate, true, sentinel.DecisionAllow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := e.Authorize(ctx, &sentinel.AccessRequest{
				UserID:   tc.userID,
				Resource: tc.resource,
				Action:   tc.action,
			})
			if err != nil {
				t.Fatal(err)
			}
			if result.Allowed != tc.allowed || result.Decision != tc.decision {
				t.Fatalf("got allowed=%v decision=%s, want allowed=%v decision=%s",
					result.Allowed, result.Decision, tc.allowed, tc.decision)
			}
			if tc.allowed && result.MatchedBy == nil {
				t.Fatal("expected MatchedBy on an allowed result")
			}
		})
	}
}

func TestAuthorizeRejectsUnknownResourceAndAction(t *testing.T) {
	e, st, _ := newTestEngine(t)
	u := seedUser(t, st, policy.RoleUser)
	ctx := context.Background()

	_, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: "widget", Action: policy.ActionRead})
	if !errors.Is(err, policy.ErrInvalidPermission) {
		t.Fatalf("expected invalid permission error, got %v", err)
	}
	_, err = e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: "frobnicate"})
	if !errors.Is(err, policy.ErrInvalidPermission) {
		t.Fatalf("expected invalid permission error, got %v", err)
	}
}

func TestAuthorizeDenyNoRoles(t *testing.T) {
	e, st, _ := newTestEngine(t)
	u := seedUser(t, st)
	ctx := context.Background()

	result, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != sentinel.DecisionDenyNoRoles {
		t.Fatalf("expected deny_no_roles, got %+v", result)
	}
}

func TestAuthorizeDenyUnknownRole(t *testing.T) {
	e, st, _ := newTestEngine(t)
	// A role written outside the recognized set denies every request.
	u := seedUser(t, st, policy.RoleUser, policy.Role("superuser"))
	ctx := context.Background()

	result, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != sentinel.DecisionDenyUnknownRole {
		t.Fatalf("expected deny_unknown_role, got %+v", result)
	}
}

func TestAuthorizeDenyInactive(t *testing.T) {
	e, st, _ := newTestEngine(t)
	u := seedUser(t, st, policy.RoleAdmin)
	ctx := context.Background()

	u.Status = user.StatusSuspended
	if err := st.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	result, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != sentinel.DecisionDenyInactive {
		t.Fatalf("expected deny_inactive, got %+v", result)
	}
}

func TestAuthorizeConditions(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	u := seedUser(t, st, policy.RoleUser)
	err := st.SetCustomPermissions(ctx, u.ID, []policy.Permission{
		{Resource: policy.ResourceArticle, Action: policy.ActionUpdate, Conditions: map[string]string{"owner": u.ID.String()}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Matching context satisfies the condition.
	result, err := e.Authorize(ctx, &sentinel.AccessRequest{
		UserID:   u.ID,
		Resource: policy.ResourceArticle,
		Action:   policy.ActionUpdate,
		Context:  map[string]string{"owner": u.ID.String()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected allow with matching condition, got %+v", result)
	}

	// Absent or mismatched context denies with the condition decision.
	result, err = e.Authorize(ctx, &sentinel.AccessRequest{
		UserID:   u.ID,
		Resource: policy.ResourceArticle,
		Action:   policy.ActionUpdate,
		Context:  map[string]string{"owner": "someone-else"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != sentinel.DecisionDenyCondition {
		t.Fatalf("expected deny_condition, got %+v", result)
	}
}

func TestAuthorizeCacheRoundTrip(t *testing.T) {
	e, st, c := newTestEngine(t)
	ctx := context.Background()
	u := seedUser(t, st, policy.RoleUser, policy.RoleWriter)

	req := &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceArticle, Action: policy.ActionCreate}

	first, err := e.Authorize(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Allowed {
		t.Fatalf("expected allow, got %+v", first)
	}
	if _, ok := c.Get(ctx, u.ID); !ok {
		t.Fatal("expected permissions cached after first check")
	}

	// Cache hit must produce the same outcome.
	second, err := e.Authorize(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Allowed != first.Allowed || second.Decision != first.Decision {
		t.Fatalf("cache hit diverged: %+v vs %+v", second, first)
	}
}

func TestAuthorizeStaleCacheRecomputes(t *testing.T) {
	e, st, c := newTestEngine(t)
	ctx := context.Background()
	u := seedUser(t, st, policy.RoleUser)

	// Cache warms with the base role only.
	denied, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceArticle, Action: policy.ActionCreate})
	if err != nil {
		t.Fatal(err)
	}
	if denied.Allowed {
		t.Fatal("expected deny before role grant")
	}

	// Roles change underneath the cache entry. The snapshot check must
	// reject the stale entry without an explicit invalidation.
	if err := st.AddUserRole(ctx, u.ID, policy.RoleWriter); err != nil {
		t.Fatal(err)
	}
	result, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceArticle, Action: policy.ActionCreate})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected allow after role grant, got %+v", result)
	}

	// Explicit invalidation drops the entry entirely.
	e.InvalidateUser(ctx, u.ID)
	if _, ok := c.Get(ctx, u.ID); ok {
		t.Fatal("expected cache entry removed")
	}
}

func TestEnforceOpaqueDenial(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	u := seedUser(t, st, policy.RoleUser)

	err := e.Enforce(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceCourse, Action: policy.ActionDelete})
	if !errors.Is(err, sentinel.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if err.Error() != sentinel.ErrAccessDenied.Error() {
		t.Fatalf("denial must not leak detail, got %q", err.Error())
	}

	if err := e.Enforce(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead}); err != nil {
		t.Fatal(err)
	}
}

func TestAuthorizeRecordsAuditTrail(t *testing.T) {
	e, st, _ := newTestEngine(t)
	u := seedUser(t, st, policy.RoleUser)
	ctx := sentinel.WithRequestInfo(context.Background(), "203.0.113.9", "test-agent")

	if _, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead}); err != nil {
		t.Fatal(err)
	}

	entries, err := st.ListAuditEntries(ctx, &audit.QueryFilter{Event: audit.EventAccessCheck})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Decision != string(sentinel.DecisionAllow) || entry.TargetID != "user:read" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.RequestIP != "203.0.113.9" || entry.UserAgent != "test-agent" {
		t.Fatalf("expected request info recorded, got %q %q", entry.RequestIP, entry.UserAgent)
	}
	if entry.EvalTimeNs <= 0 {
		t.Fatal("expected evaluation time recorded")
	}
	if len(entry.SubjectRoles) != 1 || entry.SubjectRoles[0] != string(policy.RoleUser) {
		t.Fatalf("expected the subject's roles on the entry, got %v", entry.SubjectRoles)
	}
}

func TestAuthorizeAuditDisabled(t *testing.T) {
	st := memory.New()
	off := false
	e, err := sentinel.NewEngine(
		sentinel.WithStore(st),
		sentinel.WithConfig(sentinel.Config{AuditChecks: &off}),
	)
	if err != nil {
		t.Fatal(err)
	}
	u := seedUser(t, st, policy.RoleUser)
	ctx := context.Background()

	if _, err := e.Authorize(ctx, &sentinel.AccessRequest{UserID: u.ID, Resource: policy.ResourceUser, Action: policy.ActionRead}); err != nil {
		t.Fatal(err)
	}
	count, err := st.CountAuditEntries(ctx, &audit.QueryFilter{Event: audit.EventAccessCheck})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no audit entries, got %d", count)
	}
}

func TestGrantAndRevokeRole(t *testing.T) {
	e, st, c := newTestEngine(t)
	ctx := context.Background()
	u := seedUser(t, st, policy.RoleUser)

	// Warm the cache, then grant.
	if _, err := e.Can(ctx, u.ID, policy.ResourceUser, policy.ActionRead); err != nil {
		t.Fatal(err)
	}
	if err := e.GrantRole(ctx, u.ID, policy.RoleWriter); err != nil {
		t.Fatal(err)
	}
	got, _ := st.GetUser(ctx, u.ID)
	if !got.HasRole(policy.RoleWriter) {
		t.Fatal("expected writer role granted")
	}
	if _, ok := c.Get(ctx, u.ID); ok {
		t.Fatal("expected cache invalidated after grant")
	}
	entries, _ := st.ListAuditEntries(ctx, &audit.QueryFilter{Event: audit.EventRolesChanged})
	if len(entries) != 1 {
		t.Fatalf("expected 1 roles-changed audit entry, got %d", len(entries))
	}
	if len(entries[0].SubjectRoles) != 2 {
		t.Fatalf("expected the resulting role set on the entry, got %v", entries[0].SubjectRoles)
	}

	// Granting a held role is a no-op.
	if err := e.GrantRole(ctx, u.ID, policy.RoleWriter); err != nil {
		t.Fatal(err)
	}

	if err := e.RevokeRole(ctx, u.ID, policy.RoleWriter); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetUser(ctx, u.ID)
	if got.HasRole(policy.RoleWriter) {
		t.Fatal("expected writer role revoked")
	}

	// Revoking a role the user does not hold is not found.
	if err := e.RevokeRole(ctx, u.ID, policy.RoleWriter); !sentinel.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGrantRoleConstraints(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()

	student := seedUser(t, st, policy.RoleUser, policy.RoleStudent)
	if err := e.GrantRole(ctx, student.ID, policy.RoleMentor); !sentinel.IsStateConflict(err) {
		t.Fatalf("expected conflict granting mentor to a student, got %v", err)
	}

	solo := seedUser(t, st, policy.RoleUser)
	if err := e.RevokeRole(ctx, solo.ID, policy.RoleUser); !sentinel.IsStateConflict(err) {
		t.Fatalf("expected conflict revoking the last role, got %v", err)
	}

	if err := e.GrantRole(ctx, student.ID, policy.Role("superuser")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestCan(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	u := seedUser(t, st, policy.RoleUser, policy.RoleSeller)

	ok, err := e.Can(ctx, u.ID, policy.ResourceProduct, policy.ActionCreate)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected seller to create products")
	}
	ok, err = e.Can(ctx, u.ID, policy.ResourceCourse, policy.ActionCreate)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected seller denied course creation")
	}
}
