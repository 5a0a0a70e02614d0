package main

import (
	"testing"

	"github.com/mnthe/agentcore/internal/session"
	"github.com/mnthe/agentcore/internal/task"
)

// execCmd runs the root command against a fresh --root. Callers always
// pass --format and --dry-run explicitly since cobra's bound package
// variables otherwise carry over a prior test's value.
func execCmd(t *testing.T, root string, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append([]string{"--root", root}, args...))
	return rootCmd.Execute()
}

func TestRenderDispatchesOnFormat(t *testing.T) {
	flagFormat = "json"
	var jsonCalled, tableCalled bool
	if err := render(func() error { jsonCalled = true; return nil }, func() { tableCalled = true }); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !jsonCalled || tableCalled {
		t.Fatalf("expected json branch only, got json=%v table=%v", jsonCalled, tableCalled)
	}

	flagFormat = "table"
	jsonCalled, tableCalled = false, false
	if err := render(func() error { jsonCalled = true; return nil }, func() { tableCalled = true }); err != nil {
		t.Fatalf("render: %v", err)
	}
	if jsonCalled || !tableCalled {
		t.Fatalf("expected table branch only, got json=%v table=%v", jsonCalled, tableCalled)
	}
	flagFormat = ""
}

func TestSessionInitThenGetViaCLI(t *testing.T) {
	root := t.TempDir()
	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"session", "init", "sess-1", "--goal", "ship it", "--working-dir", "/work"); err != nil {
		t.Fatalf("session init: %v", err)
	}

	store := session.New(Resolver(), KernelStore())
	sess, err := store.Get("sess-1")
	if err != nil {
		t.Fatalf("Get after CLI init: %v", err)
	}
	if sess.Goal != "ship it" {
		t.Fatalf("expected goal %q, got %q", "ship it", sess.Goal)
	}

	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"session", "get", "sess-1"); err != nil {
		t.Fatalf("session get: %v", err)
	}
}

func TestSessionInitDryRunDoesNotPersist(t *testing.T) {
	root := t.TempDir()
	if err := execCmd(t, root, "--format", "json", "--dry-run=true", "-v=false",
		"session", "init", "sess-1", "--goal", "ship it"); err != nil {
		t.Fatalf("session init --dry-run: %v", err)
	}

	store := session.New(Resolver(), KernelStore())
	if _, err := store.Get("sess-1"); err == nil {
		t.Fatalf("expected dry-run init to not persist a session")
	}
}

func TestTaskLifecycleViaCLI(t *testing.T) {
	root := t.TempDir()

	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "create", "proj", "team", "t1", "--subject", "do the thing", "--complexity", "simple"); err != nil {
		t.Fatalf("task create: %v", err)
	}

	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "claim", "proj", "team", "t1", "--owner", "worker-a"); err != nil {
		t.Fatalf("task claim: %v", err)
	}

	store := task.New(Resolver(), KernelStore())
	got, err := store.Get("proj", "team", "t1")
	if err != nil {
		t.Fatalf("Get after CLI lifecycle: %v", err)
	}
	if got.ClaimedBy != "worker-a" {
		t.Fatalf("expected claimed_by worker-a, got %q", got.ClaimedBy)
	}

	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "list", "proj", "team"); err != nil {
		t.Fatalf("task list: %v", err)
	}
}

func TestTaskClaimRejectsSecondClaimant(t *testing.T) {
	root := t.TempDir()
	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "create", "proj", "team", "t1", "--subject", "x", "--complexity", "simple"); err != nil {
		t.Fatalf("task create: %v", err)
	}
	if err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "claim", "proj", "team", "t1", "--owner", "worker-a"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := execCmd(t, root, "--format", "json", "--dry-run=false", "-v=false",
		"task", "claim", "proj", "team", "t1", "--owner", "worker-b")
	if err == nil {
		t.Fatalf("expected a second claimant to be rejected")
	}
}
