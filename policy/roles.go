package policy

import "fmt"

// RoleConfig binds a role to its base permission set and the roles it
// inherits from. Inherited permissions are expanded transitively by
// RolePermissions.
type RoleConfig struct {
	Permissions []Permission
	Inherits    []Role
}

// Base permission sets per role. Each set is self-contained; inheritance
// on top of these only adds what a parent role grants beyond them.
var (
	userPermissions = []Permission{
		{Resource: ResourceUser, Action: ActionRead},
		{Resource: ResourceProduct, Action: ActionRead},
		{Resource: ResourceCategory, Action: ActionRead},
	}

	studentPermissions = append([]Permission{
		{Resource: ResourceCourse, Action: ActionRead},
		{Resource: ResourceArticle, Action: ActionRead},
	}, userPermissions...)

	mentorPermissions = append([]Permission{
		{Resource: ResourceCourse, Action: ActionCreate},
		{Resource: ResourceCourse, Action: ActionUpdate},
		{Resource: ResourceCourse, Action: ActionDelete},
	}, studentPermissions...)

	writerPermissions = append([]Permission{
		{Resource: ResourceArticle, Action: ActionCreate},
		{Resource: ResourceArticle, Action: ActionUpdate},
		{Resource: ResourceArticle, Action: ActionDelete},
	}, userPermissions...)

	sellerPermissions = append([]Permission{
		{Resource: ResourceProduct, Action: ActionCreate},
		{Resource: ResourceProduct, Action: ActionUpdate},
		{Resource: ResourceProduct, Action: ActionDelete},
	}, userPermissions...)

	adminPermissions = func() []Permission {
		perms := make([]Permission, 0, len(Resources()))
		for _, r := range Resources() {
			perms = append(perms, Permission{Resource: r, Action: ActionManage})
		}
		return perms
	}()
)

// roleConfigs is the static role configuration table.
var roleConfigs = map[Role]RoleConfig{
	RoleAdmin:   {Permissions: adminPermissions},
	RoleMentor:  {Permissions: mentorPermissions, Inherits: []Role{RoleUser}},
	RoleStudent: {Permissions: studentPermissions, Inherits: []Role{RoleUser}},
	RoleWriter:  {Permissions: writerPermissions, Inherits: []Role{RoleUser}},
	RoleSeller:  {Permissions: sellerPermissions, Inherits: []Role{RoleUser}},
	RoleUser:    {Permissions: userPermissions},
}

// roleTransitions declares which roles may be applied for from a given
// role. Every transition in this table requires administrative approval;
// there is no self-service upgrade path.
var roleTransitions = map[Role][]Role{
	RoleUser:    {RoleStudent, RoleMentor, RoleWriter, RoleSeller},
	RoleStudent: {RoleMentor, RoleWriter, RoleSeller},
	RoleMentor:  {RoleWriter, RoleSeller},
	RoleWriter:  {RoleMentor, RoleSeller},
	RoleSeller:  {RoleMentor, RoleWriter},
	RoleAdmin:   {},
}

// Config returns the static configuration for a role.
func Config(r Role) (RoleConfig, error) {
	cfg, ok := roleConfigs[r]
	if !ok {
		return RoleConfig{}, fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}
	return cfg, nil
}

// RolePermissions returns a role's base permissions plus all transitively
// inherited permissions, de-duplicated by (resource, action, conditions).
func RolePermissions(r Role) ([]Permission, error) {
	if !ValidRole(r) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}

	var perms []Permission
	var walk func(Role)
	visited := make(map[Role]struct{})

	walk = func(cur Role) {
		if _, ok := visited[cur]; ok {
			return
		}
		visited[cur] = struct{}{}

		cfg := roleConfigs[cur]
		perms = append(perms, cfg.Permissions...)
		for _, parent := range cfg.Inherits {
			walk(parent)
		}
	}
	walk(r)

	return Dedupe(perms), nil
}

// InheritedRoles returns all roles r transitively inherits from,
// de-duplicated, not including r itself.
func InheritedRoles(r Role) ([]Role, error) {
	if !ValidRole(r) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}

	var out []Role
	seen := map[Role]struct{}{r: {}}

	var walk func(Role)
	walk = func(cur Role) {
		for _, parent := range roleConfigs[cur].Inherits {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			out = append(out, parent)
			walk(parent)
		}
	}
	walk(r)

	return out, nil
}

// IsValidTransition reports whether to appears in the declared transition
// table for from.
func IsValidTransition(from, to Role) (bool, error) {
	if !ValidRole(from) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, from)
	}
	if !ValidRole(to) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, to)
	}

	for _, r := range roleTransitions[from] {
		if r == to {
			return true, nil
		}
	}
	return false, nil
}

// TransitionTargets returns the roles that may be applied for from r.
func TransitionTargets(r Role) ([]Role, error) {
	if !ValidRole(r) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}
	targets := roleTransitions[r]
	out := make([]Role, len(targets))
	copy(out, targets)
	return out, nil
}
