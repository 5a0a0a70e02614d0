package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/paths"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func runGit(t *testing.T, cwd string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	r, err := paths.NewResolverAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolverAt: %v", err)
	}
	return New(r)
}

func TestCreateIsolatedRejectsNonRepo(t *testing.T) {
	m := newTestManager(t)
	notARepo := t.TempDir()
	_, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", notARepo)
	if err == nil {
		t.Fatalf("expected a non-repo source to be rejected")
	}
	if kernelerr.KindOf(err) != kernelerr.KindDomain {
		t.Fatalf("expected a domain kind error, got %v", err)
	}
}

func TestCreateIsolatedIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	target, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected worktree directory to exist: %v", err)
	}

	again, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo)
	if err != nil {
		t.Fatalf("second CreateIsolated should be a no-op, got: %v", err)
	}
	if again != target {
		t.Fatalf("expected the same target path, got %q vs %q", again, target)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	if _, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo); err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}
	if err := m.Remove(context.Background(), "proj", "team", "w1", repo); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := m.Remove(context.Background(), "proj", "team", "w1", repo); err != nil {
		t.Fatalf("second Remove should be a no-op, got: %v", err)
	}
}

func TestSyncReportsConflict(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	worktree, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}

	readme := filepath.Join(worktree, "README.md")
	if err := os.WriteFile(readme, []byte("worker change\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, worktree, "commit", "-am", "worker edit")

	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("mainline change\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, repo, "commit", "-am", "mainline edit")

	result, err := m.Sync(context.Background(), "proj", "team", "w1", repo, "main")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Status != "conflict" {
		t.Fatalf("expected a rebase conflict, got status %q", result.Status)
	}
}

func TestSyncSucceedsWithNoConflict(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	if _, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo); err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repo, "other.md"), []byte("new file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, repo, "add", "other.md")
	runGit(t, repo, "commit", "-m", "unrelated mainline change")

	result, err := m.Sync(context.Background(), "proj", "team", "w1", repo, "main")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %q: %s", result.Status, result.Error)
	}
}

func TestMergeRejectsDirtyTree(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("dirty\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := m.Merge(context.Background(), "proj", "team", []string{"w1"}, repo)
	if kernelerr.KindOf(err) != kernelerr.KindDomain {
		t.Fatalf("expected a dirty-tree domain error, got %v", err)
	}
}

func TestMergeSucceedsForCleanWorkers(t *testing.T) {
	m := newTestManager(t)
	repo := initGitRepo(t)

	worktree, err := m.CreateIsolated(context.Background(), "proj", "team", "w1", repo)
	if err != nil {
		t.Fatalf("CreateIsolated: %v", err)
	}
	if err := os.WriteFile(filepath.Join(worktree, "feature.md"), []byte("feature\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, worktree, "add", "feature.md")
	runGit(t, worktree, "commit", "-m", "worker feature")

	result, err := m.Merge(context.Background(), "proj", "team", []string{"w1"}, repo)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %q", result.Status)
	}
	if len(result.Merged) != 1 || result.Merged[0] != "w1" {
		t.Fatalf("expected w1 to be reported merged, got %v", result.Merged)
	}
	if _, err := os.Stat(filepath.Join(repo, "feature.md")); err != nil {
		t.Fatalf("expected merged file to exist in mainline: %v", err)
	}
}
