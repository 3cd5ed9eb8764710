// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/errs"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/store"
	"github.com/xraph/sentinel/user"
)

// Compile-time interface checks.
var (
	_ user.Store        = (*Store)(nil)
	_ application.Store = (*Store)(nil)
	_ audit.Store       = (*Store)(nil)
	_ store.Store       = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all entities. Transactions
// take the write lock for their whole duration, so they are serializable:
// no reader observes a partially applied unit of work.
type Store struct {
	mu sync.RWMutex

	users        map[string]*user.User
	applications map[string]*application.Application
	auditEntries map[string]*audit.Entry

	// inTx marks a view handed to an InTransaction callback. The outer
	// call already holds the write lock, so methods on that view must
	// not lock again.
	inTx bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:        make(map[string]*user.User),
		applications: make(map[string]*application.Application),
		auditEntries: make(map[string]*audit.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// InTransaction runs fn under the write lock against a shared view of the
// maps. On error every map is restored from its snapshot, so fn's writes
// commit together or not at all.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		// Nested transactions join the outer unit of work.
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapUsers := make(map[string]*user.User, len(s.users))
	for k, v := range s.users {
		snapUsers[k] = v
	}
	snapApps := make(map[string]*application.Application, len(s.applications))
	for k, v := range s.applications {
		snapApps[k] = v
	}
	snapAudit := make(map[string]*audit.Entry, len(s.auditEntries))
	for k, v := range s.auditEntries {
		snapAudit[k] = v
	}

	tx := &Store{
		users:        s.users,
		applications: s.applications,
		auditEntries: s.auditEntries,
		inTx:         true,
	}
	if err := fn(ctx, tx); err != nil {
		s.users = snapUsers
		s.applications = snapApps
		s.auditEntries = snapAudit
		return err
	}
	return nil
}

// ──────────────────────────────────────────────────
// User Store
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	defer s.lock()()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: user email %q already exists", errs.ErrStateConflict, u.Email)
		}
	}
	s.users[u.ID.String()] = copyUser(u)
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	defer s.rlock()()
	u, ok := s.users[userID.String()]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	return copyUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	defer s.lock()()
	if _, ok := s.users[u.ID.String()]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, errs.ErrNotFound)
	}
	s.users[u.ID.String()] = copyUser(u)
	return nil
}

func (s *Store) UpdateUserRoles(_ context.Context, userID id.UserID, roles []policy.Role) error {
	defer s.lock()()
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	c := copyUser(u)
	c.Roles = append([]policy.Role(nil), roles...)
	c.UpdatedAt = time.Now().UTC()
	s.users[userID.String()] = c
	return nil
}

func (s *Store) AddUserRole(_ context.Context, userID id.UserID, role policy.Role) error {
	defer s.lock()()
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	c := copyUser(u)
	for _, r := range c.Roles {
		if r == role {
			return nil
		}
	}
	c.Roles = append(c.Roles, role)
	c.UpdatedAt = time.Now().UTC()
	s.users[userID.String()] = c
	return nil
}

func (s *Store) SetRoleVerified(_ context.Context, userID id.UserID, role policy.Role, at time.Time) error {
	defer s.lock()()
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	c := copyUser(u)
	if c.RoleData == nil {
		c.RoleData = make(map[policy.Role]user.RoleData)
	}
	c.RoleData[role] = user.RoleData{Verified: true, VerifiedAt: &at}
	c.UpdatedAt = time.Now().UTC()
	s.users[userID.String()] = c
	return nil
}

func (s *Store) SetCustomPermissions(_ context.Context, userID id.UserID, perms []policy.Permission) error {
	if len(perms) > user.MaxCustomPermissions {
		return fmt.Errorf("%w: at most %d custom permissions per user", errs.ErrValidation, user.MaxCustomPermissions)
	}
	defer s.lock()()
	u, ok := s.users[userID.String()]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	c := copyUser(u)
	c.CustomPermissions = append([]policy.Permission(nil), perms...)
	c.UpdatedAt = time.Now().UTC()
	s.users[userID.String()] = c
	return nil
}

func (s *Store) ListUsers(_ context.Context, filter *user.ListFilter) ([]*user.User, error) {
	defer s.rlock()()
	result := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		if filter != nil {
			if filter.Role != "" && !u.HasRole(filter.Role) {
				continue
			}
			if filter.Status != "" && u.Status != filter.Status {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyUser(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter != nil {
		result = paginate(result, filter.Offset, filter.Limit)
	}
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, userID id.UserID) error {
	defer s.lock()()
	delete(s.users, userID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Application Store
// ──────────────────────────────────────────────────

func (s *Store) CreateApplication(_ context.Context, a *application.Application) error {
	defer s.lock()()
	// Mirror the partial unique index: at most one open application per
	// user.
	if a.Status.Open() {
		for _, existing := range s.applications {
			if existing.UserID == a.UserID && existing.Status.Open() {
				return fmt.Errorf("%w: user %s already has an open application", errs.ErrStateConflict, a.UserID)
			}
		}
	}
	s.applications[a.ID.String()] = copyApplication(a)
	return nil
}

func (s *Store) GetApplication(_ context.Context, appID id.ApplicationID) (*application.Application, error) {
	defer s.rlock()()
	a, ok := s.applications[appID.String()]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, errs.ErrNotFound)
	}
	return copyApplication(a), nil
}

func (s *Store) GetOpenApplication(_ context.Context, userID id.UserID) (*application.Application, error) {
	defer s.rlock()()
	for _, a := range s.applications {
		if a.UserID == userID && a.Status.Open() {
			return copyApplication(a), nil
		}
	}
	return nil, fmt.Errorf("open application for user %s: %w", userID, errs.ErrNotFound)
}

func (s *Store) UpdateApplication(_ context.Context, a *application.Application) error {
	defer s.lock()()
	if _, ok := s.applications[a.ID.String()]; !ok {
		return fmt.Errorf("application %s: %w", a.ID, errs.ErrNotFound)
	}
	s.applications[a.ID.String()] = copyApplication(a)
	return nil
}

func (s *Store) DeleteApplication(_ context.Context, appID id.ApplicationID) error {
	defer s.lock()()
	delete(s.applications, appID.String())
	return nil
}

func (s *Store) ListApplications(_ context.Context, filter *application.ListFilter) ([]*application.Application, error) {
	defer s.rlock()()
	result := make([]*application.Application, 0, len(s.applications))
	for _, a := range s.applications {
		if !matchApplication(a, filter) {
			continue
		}
		result = append(result, copyApplication(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter != nil {
		result = paginate(result, int(filter.Offset), int(filter.Limit))
	}
	return result, nil
}

func (s *Store) CountApplications(_ context.Context, filter *application.ListFilter) (int64, error) {
	defer s.rlock()()
	var n int64
	for _, a := range s.applications {
		if matchApplication(a, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountApplicationsByRoleStatus(_ context.Context) ([]application.StatusCount, error) {
	defer s.rlock()()
	type cell struct {
		role   policy.Role
		status application.Status
	}
	counts := make(map[cell]int64)
	for _, a := range s.applications {
		counts[cell{a.Role, a.Status}]++
	}
	result := make([]application.StatusCount, 0, len(counts))
	for c, n := range counts {
		result = append(result, application.StatusCount{Role: c.role, Status: c.status, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Role != result[j].Role {
			return result[i].Role < result[j].Role
		}
		return result[i].Status < result[j].Status
	})
	return result, nil
}

func matchApplication(a *application.Application, filter *application.ListFilter) bool {
	if filter == nil {
		return true
	}
	if !filter.UserID.IsNil() && a.UserID != filter.UserID {
		return false
	}
	if filter.Role != "" && a.Role != filter.Role {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.UpdatedBefore != nil && !a.UpdatedAt.Before(*filter.UpdatedBefore) {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(_ context.Context, e *audit.Entry) error {
	defer s.lock()()
	c := *e
	s.auditEntries[e.ID.String()] = &c
	return nil
}

func (s *Store) GetAuditEntry(_ context.Context, entryID string) (*audit.Entry, error) {
	defer s.rlock()()
	e, ok := s.auditEntries[entryID]
	if !ok {
		return nil, fmt.Errorf("audit entry %s: %w", entryID, errs.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (s *Store) ListAuditEntries(_ context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	defer s.rlock()()
	result := make([]*audit.Entry, 0, len(s.auditEntries))
	for _, e := range s.auditEntries {
		if !matchAuditEntry(e, filter) {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter != nil {
		result = paginate(result, int(filter.Offset), int(filter.Limit))
	}
	return result, nil
}

func (s *Store) CountAuditEntries(_ context.Context, filter *audit.QueryFilter) (int64, error) {
	defer s.rlock()()
	var n int64
	for _, e := range s.auditEntries {
		if matchAuditEntry(e, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for k, e := range s.auditEntries {
		if e.CreatedAt.Before(before) {
			delete(s.auditEntries, k)
			n++
		}
	}
	return n, nil
}

func matchAuditEntry(e *audit.Entry, filter *audit.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Event != "" && e.Event != filter.Event {
		return false
	}
	if !filter.ActorID.IsNil() && e.ActorID != filter.ActorID {
		return false
	}
	if !filter.SubjectID.IsNil() && e.SubjectID != filter.SubjectID {
		return false
	}
	if filter.TargetID != "" && e.TargetID != filter.TargetID {
		return false
	}
	if filter.Decision != "" && e.Decision != filter.Decision {
		return false
	}
	if filter.After != nil && !e.CreatedAt.After(*filter.After) {
		return false
	}
	if filter.Before != nil && !e.CreatedAt.Before(*filter.Before) {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// Copy + pagination helpers
// ──────────────────────────────────────────────────

func copyUser(u *user.User) *user.User {
	c := *u
	c.Roles = append([]policy.Role(nil), u.Roles...)
	c.CustomPermissions = append([]policy.Permission(nil), u.CustomPermissions...)
	if u.RoleData != nil {
		c.RoleData = make(map[policy.Role]user.RoleData, len(u.RoleData))
		for k, v := range u.RoleData {
			c.RoleData[k] = v
		}
	}
	if u.Metadata != nil {
		c.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyApplication(a *application.Application) *application.Application {
	c := *a
	c.Documents = append([]application.Document(nil), a.Documents...)
	c.Steps = append([]application.VerificationStep(nil), a.Steps...)
	c.RolesAtSubmit = append([]policy.Role(nil), a.RolesAtSubmit...)
	return &c
}

func paginate[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
