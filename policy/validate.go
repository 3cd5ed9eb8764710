package policy

import "fmt"

// ValidateRoleConstraints enforces the role-set invariants:
// the set is non-empty, every member is a recognized role, admin is never
// combined with another role, and mentor and student are mutually
// exclusive. It returns a human-readable violation message and ok=false
// instead of an error so callers can surface it to users directly.
func ValidateRoleConstraints(roles []Role) (violation string, ok bool) {
	if len(roles) == 0 {
		return "a user must hold at least one role", false
	}

	var hasAdmin, hasMentor, hasStudent bool
	for _, r := range roles {
		if !ValidRole(r) {
			return fmt.Sprintf("unrecognized role %q", r), false
		}
		switch r {
		case RoleAdmin:
			hasAdmin = true
		case RoleMentor:
			hasMentor = true
		case RoleStudent:
			hasStudent = true
		}
	}

	if hasAdmin && len(roles) > 1 {
		return "the admin role cannot be combined with other roles", false
	}
	if hasMentor && hasStudent {
		return "the mentor and student roles are mutually exclusive", false
	}

	return "", true
}

// DetectInheritanceCycle walks the inheritance graph depth-first from r
// and returns ErrCircularInheritance if r can reach itself.
func DetectInheritanceCycle(r Role) error {
	if !ValidRole(r) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}

	onPath := make(map[Role]struct{})

	var visit func(Role) error
	visit = func(cur Role) error {
		if _, ok := onPath[cur]; ok {
			return fmt.Errorf("%w: role %q reaches itself", ErrCircularInheritance, cur)
		}
		onPath[cur] = struct{}{}
		for _, parent := range roleConfigs[cur].Inherits {
			if err := visit(parent); err != nil {
				return err
			}
		}
		delete(onPath, cur)
		return nil
	}

	return visit(r)
}

// ValidateConfig verifies the whole static policy table: every configured
// permission references recognized enums, every inherited role exists, and
// the inheritance graph is acyclic. Engines run this at construction so a
// bad table fails at startup, not at request time.
func ValidateConfig() error {
	for role, cfg := range roleConfigs {
		if !ValidRole(role) {
			return fmt.Errorf("%w: configured role %q", ErrInvalidRole, role)
		}
		for _, p := range cfg.Permissions {
			if err := ValidatePermission(p); err != nil {
				return fmt.Errorf("role %q: %w", role, err)
			}
		}
		for _, parent := range cfg.Inherits {
			if !ValidRole(parent) {
				return fmt.Errorf("%w: role %q inherits unknown role %q", ErrInvalidRole, role, parent)
			}
		}
		if err := DetectInheritanceCycle(role); err != nil {
			return err
		}
	}

	for from, targets := range roleTransitions {
		if !ValidRole(from) {
			return fmt.Errorf("%w: transition source %q", ErrInvalidRole, from)
		}
		for _, to := range targets {
			if !ValidRole(to) {
				return fmt.Errorf("%w: transition target %q", ErrInvalidRole, to)
			}
		}
	}

	return nil
}
