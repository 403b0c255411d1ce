package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// testPlugin implements Plugin + RolesChanged + AfterResolve + CatalogChanged.
type testPlugin struct {
	rolesChangedCalled   bool
	afterResolveCommand  string
	catalogChangedCalled bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRolesChanged(_ context.Context, _ string, _, _ *assignment.Assignment) error {
	t.rolesChangedCalled = true
	return nil
}

func (t *testPlugin) OnAfterResolve(_ context.Context, _, command string, _ any) error {
	t.afterResolveCommand = command
	return nil
}

func (t *testPlugin) OnCatalogChanged(_ context.Context, _ string, _, _ *permission.Set) error {
	t.catalogChangedCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from its shutdown hook.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnShutdown(context.Context) error { return errors.New("boom") }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	after := assignment.Empty("42")
	after.Roles = role.MustSet(role.Moderator)
	reg.EmitRolesChanged(ctx, "7", assignment.Empty("42"), after)
	if !tp.rolesChangedCalled {
		t.Fatal("OnRolesChanged was not called")
	}

	reg.EmitAfterResolve(ctx, "42", "mod.blacklist", nil)
	if tp.afterResolveCommand != "mod.blacklist" {
		t.Fatalf("OnAfterResolve got command %q", tp.afterResolveCommand)
	}

	reg.EmitCatalogChanged(ctx, "7", nil, permission.Empty(role.Support))
	if !tp.catalogChangedCalled {
		t.Fatal("OnCatalogChanged was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitDeniedChanged(ctx, "7", nil, nil)
	reg.EmitBootstrapCompleted(ctx, nil)
	reg.EmitInfraFailure(ctx, "get_assignment", errors.New("down"))
	reg.EmitShutdown(ctx)
}

func TestRegistryLogsHookErrors(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	reg.Register(&failingPlugin{})

	reg.EmitShutdown(context.Background())

	out := buf.String()
	if !strings.Contains(out, "plugin hook error") || !strings.Contains(out, "plugin=failing") {
		t.Fatalf("expected hook error to be logged, got %q", out)
	}
}
