package sentinel

import "time"

// Config holds configuration for the engine.
type Config struct {
	// CacheTTL is the time-to-live for cached permission sets.
	// Defaults to 5 minutes.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// AuditChecks records every authorization decision in the audit
	// trail. Defaults to true.
	AuditChecks *bool `json:"audit_checks,omitempty"`

	// RequireActiveUser denies requests from users whose account status
	// is not active. Defaults to true.
	RequireActiveUser *bool `json:"require_active_user,omitempty"`
}

// DefaultCacheTTL bounds how long a resolved permission set may be reused.
const DefaultCacheTTL = 5 * time.Minute

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		CacheTTL:          DefaultCacheTTL,
		AuditChecks:       &t,
		RequireActiveUser: &t,
	}
}

func (c Config) auditChecks() bool       { return c.AuditChecks == nil || *c.AuditChecks }
func (c Config) requireActiveUser() bool { return c.RequireActiveUser == nil || *c.RequireActiveUser }
