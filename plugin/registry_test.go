package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

// testPlugin implements Plugin + RoleGranted + AfterAuthorize.
type testPlugin struct {
	roleGrantedCalled    bool
	afterAuthorizeCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleGranted(_ context.Context, _ id.UserID, _ policy.Role) error {
	t.roleGrantedCalled = true
	return nil
}

func (t *testPlugin) OnAfterAuthorize(_ context.Context, _, _ any) error {
	t.afterAuthorizeCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleGranted to testPlugin only.
	reg.EmitRoleGranted(ctx, id.NewUserID(), policy.RoleStudent)
	if !tp.roleGrantedCalled {
		t.Fatal("OnRoleGranted was not called")
	}

	// Should dispatch AfterAuthorize.
	reg.EmitAfterAuthorize(ctx, nil, nil)
	if !tp.afterAuthorizeCalled {
		t.Fatal("OnAfterAuthorize was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeAuthorize(ctx, nil)
	reg.EmitApplicationSubmitted(ctx, &application.Application{})
	reg.EmitShutdown(ctx)
}
