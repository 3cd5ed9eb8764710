package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
	"github.com/xraph/sentinel/user"
)

// Resolver computes a user's effective permission set: the union of every
// held role's permissions (base plus inherited) and the user's custom
// permissions, de-duplicated. Resolutions are memoized through the Cache.
type Resolver struct {
	users  user.Store
	cache  Cache
	maxAge time.Duration
	logger *slog.Logger
}

// NewResolver creates a permission resolver. cache may be nil, in which
// case every resolution recomputes. maxAge caps how old a cached entry may
// be regardless of the cache backend's own expiry; zero means DefaultCacheTTL.
func NewResolver(users user.Store, cache Cache, maxAge time.Duration, logger *slog.Logger) *Resolver {
	if maxAge <= 0 {
		maxAge = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, cache: cache, maxAge: maxAge, logger: logger}
}

// EffectivePermissions resolves the user's permission set. A cached entry
// is used only when its role snapshot matches the user's current roles and
// its policy version matches the running table; otherwise the set is
// recomputed and re-cached.
func (r *Resolver) EffectivePermissions(ctx context.Context, u *user.User) ([]policy.Permission, error) {
	if r.cache != nil {
		if entry, ok := r.cache.Get(ctx, u.ID); ok {
			if entry.ValidFor(u.Roles, policy.Version) && time.Since(entry.ComputedAt) < r.maxAge {
				return entry.Permissions, nil
			}
			// Snapshot or version mismatch, or the entry outlived the
			// configured TTL on a backend with a laxer expiry.
			r.cache.Invalidate(ctx, u.ID)
		}
	}

	perms, err := r.compute(u)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		roles := make([]policy.Role, len(u.Roles))
		copy(roles, u.Roles)
		r.cache.Set(ctx, u.ID, &CachedPermissions{
			Permissions:   perms,
			Roles:         roles,
			ComputedAt:    time.Now().UTC(),
			PolicyVersion: policy.Version,
		})
	}
	return perms, nil
}

func (r *Resolver) compute(u *user.User) ([]policy.Permission, error) {
	perms := make([]policy.Permission, 0, 16)
	for _, role := range u.Roles {
		rolePerms, err := policy.RolePermissions(role)
		if err != nil {
			return nil, fmt.Errorf("resolve permissions for user %s: %w", u.ID, err)
		}
		perms = append(perms, rolePerms...)
	}
	for _, p := range u.CustomPermissions {
		if err := policy.ValidatePermission(p); err != nil {
			return nil, fmt.Errorf("custom permission for user %s: %w", u.ID, err)
		}
		perms = append(perms, p)
	}
	return policy.Dedupe(perms), nil
}

// Invalidate drops the user's cached permission set. Every role or
// custom-permission mutation must call this as part of the same logical
// operation as the store write.
func (r *Resolver) Invalidate(ctx context.Context, userID id.UserID) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, userID)
	}
}
