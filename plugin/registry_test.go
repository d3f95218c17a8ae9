package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// testPlugin implements Plugin + RoleCreated + AfterAuthorize + TokenIssued.
type testPlugin struct {
	roleCreatedCalled    bool
	afterAuthorizeCalled bool
	tokenIssuedCalled    bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterAuthorize(_ context.Context, _, _ any) error {
	t.afterAuthorizeCalled = true
	return nil
}

func (t *testPlugin) OnTokenIssued(_ context.Context, _ *token.Action) error {
	t.tokenIssuedCalled = true
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

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	// Should dispatch AfterAuthorize.
	reg.EmitAfterAuthorize(ctx, nil, nil)
	if !tp.afterAuthorizeCalled {
		t.Fatal("OnAfterAuthorize was not called")
	}

	// Should dispatch TokenIssued.
	reg.EmitTokenIssued(ctx, &token.Action{ID: id.NewActionID(), Type: token.TypeInvite})
	if !tp.tokenIssuedCalled {
		t.Fatal("OnTokenIssued was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeAuthorize(ctx, nil)
	reg.EmitRoleDeleted(ctx, id.NewRoleID())
	reg.EmitAccountEnabledChanged(ctx, id.NewAccountID(), false)
	reg.EmitShutdown(ctx)
}
