package sentinel

import (
	"context"
	"time"

	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// CachedPermissions is one memoized permission resolution. An entry is
// usable only while its role snapshot still matches the user's current
// roles and its policy version matches the running policy table.
type CachedPermissions struct {
	Permissions   []policy.Permission `json:"permissions"`
	Roles         []policy.Role       `json:"roles"`
	ComputedAt    time.Time           `json:"computed_at"`
	PolicyVersion string              `json:"policy_version"`
}

// ValidFor reports whether the entry may serve a user who currently holds
// the given roles under the given policy version. The role comparison is
// order-sensitive; role sets are small and assigned in canonical order.
func (c *CachedPermissions) ValidFor(roles []policy.Role, version string) bool {
	if c == nil || c.PolicyVersion != version || len(c.Roles) != len(roles) {
		return false
	}
	for i, r := range roles {
		if c.Roles[i] != r {
			return false
		}
	}
	return true
}

// Cache memoizes resolved permission sets keyed by user. Implementations
// enforce the TTL; snapshot and version validity is the resolver's job.
type Cache interface {
	// Get returns the cached entry for a user, if present and unexpired.
	Get(ctx context.Context, userID id.UserID) (*CachedPermissions, bool)

	// Set stores the entry for a user.
	Set(ctx context.Context, userID id.UserID, entry *CachedPermissions)

	// Invalidate removes the entry for a user.
	Invalidate(ctx context.Context, userID id.UserID)

	// Clear removes all entries, for policy reloads.
	Clear(ctx context.Context)
}
