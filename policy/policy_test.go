package policy

import (
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(); err != nil {
		t.Fatalf("static policy table invalid: %v", err)
	}
}

func TestRolePermissionsSupersetAndDeduped(t *testing.T) {
	for _, r := range Roles() {
		perms, err := RolePermissions(r)
		if err != nil {
			t.Fatalf("RolePermissions(%s): %v", r, err)
		}

		keys := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			k := p.Key()
			if _, dup := keys[k]; dup {
				t.Errorf("role %s: duplicate permission %s", r, k)
			}
			keys[k] = struct{}{}
		}

		// Base permissions must all be present.
		cfg, err := Config(r)
		if err != nil {
			t.Fatalf("Config(%s): %v", r, err)
		}
		for _, p := range cfg.Permissions {
			if _, ok := keys[p.Key()]; !ok {
				t.Errorf("role %s: missing base permission %s", r, p.Key())
			}
		}

		// Every inherited role's permissions must be present too.
		inherited, err := InheritedRoles(r)
		if err != nil {
			t.Fatalf("InheritedRoles(%s): %v", r, err)
		}
		for _, parent := range inherited {
			parentPerms, err := RolePermissions(parent)
			if err != nil {
				t.Fatalf("RolePermissions(%s): %v", parent, err)
			}
			for _, p := range parentPerms {
				if _, ok := keys[p.Key()]; !ok {
					t.Errorf("role %s: missing inherited permission %s from %s", r, p.Key(), parent)
				}
			}
		}
	}
}

func TestRolePermissionsUnknownRole(t *testing.T) {
	_, err := RolePermissions(Role("superuser"))
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestValidateRoleConstraints(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		ok    bool
	}{
		{"empty set", nil, false},
		{"single user", []Role{RoleUser}, true},
		{"user plus mentor", []Role{RoleUser, RoleMentor}, true},
		{"admin alone", []Role{RoleAdmin}, true},
		{"admin plus user", []Role{RoleAdmin, RoleUser}, false},
		{"mentor plus student", []Role{RoleUser, RoleMentor, RoleStudent}, false},
		{"student plus mentor reversed", []Role{RoleStudent, RoleMentor}, false},
		{"unknown role", []Role{RoleUser, Role("wizard")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := ValidateRoleConstraints(tt.roles)
			if ok != tt.ok {
				t.Fatalf("got ok=%v (%q), want %v", ok, msg, tt.ok)
			}
			if !ok && msg == "" {
				t.Error("violation must carry a message")
			}
		})
	}
}

func TestValidatePermission(t *testing.T) {
	if err := ValidatePermission(Permission{Resource: ResourceCourse, Action: ActionRead}); err != nil {
		t.Fatalf("valid permission rejected: %v", err)
	}
	if err := ValidatePermission(Permission{Resource: "spaceship", Action: ActionRead}); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission for resource, got %v", err)
	}
	if err := ValidatePermission(Permission{Resource: ResourceCourse, Action: "launch"}); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission for action, got %v", err)
	}
}

func TestHasPermissionManageSubsumes(t *testing.T) {
	perms := []Permission{{Resource: ResourceCourse, Action: ActionManage}}

	for _, a := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage} {
		got, err := HasPermission(perms, ResourceCourse, a)
		if err != nil {
			t.Fatalf("HasPermission(%s): %v", a, err)
		}
		if !got {
			t.Errorf("manage should subsume %s", a)
		}
	}

	got, err := HasPermission(perms, ResourceArticle, ActionRead)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("manage on course must not grant article access")
	}
}

func TestHasPermissionRejectsUnknownEnums(t *testing.T) {
	if _, err := HasPermission(nil, "warp-core", ActionRead); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
	if _, err := HasPermission(nil, ResourceUser, "teleport"); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to Role
		want     bool
	}{
		{RoleUser, RoleStudent, true},
		{RoleUser, RoleMentor, true},
		{RoleUser, RoleAdmin, false},
		{RoleStudent, RoleMentor, true},
		{RoleAdmin, RoleSeller, false},
		{RoleMentor, RoleStudent, false},
	}

	for _, tt := range tests {
		got, err := IsValidTransition(tt.from, tt.to)
		if err != nil {
			t.Fatalf("IsValidTransition(%s, %s): %v", tt.from, tt.to, err)
		}
		if got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if _, err := IsValidTransition(Role("ghost"), RoleUser); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestDetectInheritanceCycle(t *testing.T) {
	for _, r := range Roles() {
		if err := DetectInheritanceCycle(r); err != nil {
			t.Errorf("unexpected cycle for %s: %v", r, err)
		}
	}

	// Inject a cycle, then restore the table.
	orig := roleConfigs[RoleUser]
	roleConfigs[RoleUser] = RoleConfig{Permissions: orig.Permissions, Inherits: []Role{RoleMentor}}
	defer func() { roleConfigs[RoleUser] = orig }()

	if err := DetectInheritanceCycle(RoleMentor); !errors.Is(err, ErrCircularInheritance) {
		t.Fatalf("expected ErrCircularInheritance, got %v", err)
	}
}

func TestPermissionKeyConditions(t *testing.T) {
	a := Permission{Resource: ResourceCourse, Action: ActionRead, Conditions: map[string]string{"owner": "self", "tier": "gold"}}
	b := Permission{Resource: ResourceCourse, Action: ActionRead, Conditions: map[string]string{"tier": "gold", "owner": "self"}}
	if a.Key() != b.Key() {
		t.Errorf("condition ordering must not affect identity: %q vs %q", a.Key(), b.Key())
	}

	c := Permission{Resource: ResourceCourse, Action: ActionRead}
	if a.Key() == c.Key() {
		t.Error("conditioned and unconditioned permissions must differ")
	}
}

func TestVersion(t *testing.T) {
	if !ValidVersion(Version) {
		t.Fatalf("module version %q is not valid semver", Version)
	}

	cmp, err := CompareVersions("1.2.0", "1.10.0")
	if err != nil {
		t.Fatal(err)
	}
	if cmp >= 0 {
		t.Error("1.2.0 must compare below 1.10.0")
	}

	ok, err := CompatibleVersion("1.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("same-major version should be compatible")
	}

	ok, err = CompatibleVersion("2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("different-major version should be incompatible")
	}

	if _, err := CompareVersions("1.0", "1.0.0"); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
}
