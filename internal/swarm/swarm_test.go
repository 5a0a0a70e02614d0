package swarm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/mailbox"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
	"github.com/mnthe/agentcore/internal/task"
	"github.com/mnthe/agentcore/internal/workspace"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
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

type fakeHost struct {
	sessions map[string]bool
	panes    map[string]int
}

func newFakeHost() *fakeHost {
	return &fakeHost{sessions: map[string]bool{}, panes: map[string]int{}}
}

func (f *fakeHost) SessionExists(ctx context.Context, session string) (bool, error) {
	return f.sessions[session], nil
}

func (f *fakeHost) NewSession(ctx context.Context, session string) error {
	f.sessions[session] = true
	return nil
}

func (f *fakeHost) AddPane(ctx context.Context, session string) (int, error) {
	f.panes[session]++
	return f.panes[session], nil
}

func (f *fakeHost) SendKeys(ctx context.Context, session string, pane int, keys string) error {
	return nil
}

func (f *fakeHost) KillPane(ctx context.Context, session string, pane int) error {
	return nil
}

func (f *fakeHost) KillSession(ctx context.Context, session string) error {
	f.sessions[session] = false
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeHost) {
	t.Helper()
	r, err := paths.NewResolverAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolverAt: %v", err)
	}
	s := store.New()
	host := newFakeHost()
	c := New(r, s, task.New(r, s), mailbox.New(r, s), workspace.New(r), host, nil)
	return c, host
}

func TestSpawnWritesWorkerFilesAndPlan(t *testing.T) {
	c, host := newTestController(t)
	ctx := context.Background()

	plan, err := c.Spawn(ctx, SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1", "w2"},
		SourceDir:   t.TempDir(),
		UseWorktree: false,
		SessionName: "swarm-1",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if plan.Status != "running" {
		t.Fatalf("expected running status, got %s", plan.Status)
	}
	if !host.sessions["swarm-1"] {
		t.Fatalf("expected pane host session to be created")
	}

	views, err := c.Status(ctx, "proj", "team")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(views))
	}
}

func TestWorkerSuffixSortsNumerically(t *testing.T) {
	ids := []string{"w10", "w2", "w1"}
	got := make([]int, len(ids))
	for i, id := range ids {
		got[i] = workerSuffix(id)
	}
	want := []int{10, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("workerSuffix(%s) = %d, want %d", ids[i], got[i], want[i])
		}
	}
}

func TestStopRequiresExactlyOneTarget(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	if err := c.Stop(ctx, "proj", "team", "", false); err == nil {
		t.Fatalf("expected error when neither worker id nor --all given")
	}
	if err := c.Stop(ctx, "proj", "team", "w1", true); err == nil {
		t.Fatalf("expected error when both worker id and --all given")
	}
}

func TestCheckWaveCompletionWaitsForAllTasksResolved(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	allTasks := map[string]*model.Task{
		"t1": {ID: "t1", Status: model.TaskResolved},
		"t2": {ID: "t2", Status: model.TaskInProgress},
	}
	result, err := c.CheckWaveCompletion(ctx, "proj", "team", allTasks, []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("CheckWaveCompletion: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result while the wave is incomplete, got %+v", result)
	}
}

func TestCheckWaveCompletionMergesAndSyncsWorkers(t *testing.T) {
	c, host := newTestController(t)
	ctx := context.Background()
	repo := initGitRepo(t)

	plan, err := c.Spawn(ctx, SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1", "w2"},
		SourceDir:   repo,
		UseWorktree: true,
		SessionName: "swarm-1",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !host.sessions["swarm-1"] {
		t.Fatalf("expected pane host session to be created")
	}

	for _, id := range plan.Workers {
		var w model.Worker
		if err := c.store.ReadJSON(c.Paths.WorkerFile("proj", "team", id), &w); err != nil {
			t.Fatalf("read worker %s: %v", id, err)
		}
		if w.Worktree == "" {
			t.Fatalf("expected worker %s to have a provisioned worktree", id)
		}
		feature := filepath.Join(w.Worktree, id+".md")
		if err := os.WriteFile(feature, []byte("work from "+id+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		runGit(t, w.Worktree, "add", id+".md")
		runGit(t, w.Worktree, "commit", "-m", "worker "+id+" change")
	}

	allTasks := map[string]*model.Task{
		"t1": {ID: "t1", Status: model.TaskResolved},
	}
	result, err := c.CheckWaveCompletion(ctx, "proj", "team", allTasks, []string{"t1"})
	if err != nil {
		t.Fatalf("CheckWaveCompletion: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected a clean merge, got status %q", result.Status)
	}
	for _, id := range plan.Workers {
		if _, err := os.Stat(filepath.Join(repo, id+".md")); err != nil {
			t.Fatalf("expected %s's change merged into mainline: %v", id, err)
		}
	}

	var updated model.SwarmPlan
	if err := c.store.ReadJSON(c.Paths.SwarmFile("proj", "team"), &updated); err != nil {
		t.Fatalf("read swarm plan: %v", err)
	}
	if updated.CurrentWave != 1 {
		t.Fatalf("expected current_wave to advance to 1, got %d", updated.CurrentWave)
	}
}

func TestCheckWaveCompletionSendsTaskAssignmentsForNextWave(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	repo := initGitRepo(t)

	plan, err := c.Spawn(ctx, SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1"},
		SourceDir:   repo,
		UseWorktree: true,
		SessionName: "swarm-1",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	nextWave := 1
	allTasks := map[string]*model.Task{
		"t1": {ID: "t1", Status: model.TaskResolved},
		"t2": {ID: "t2", Status: model.TaskOpen, Wave: &nextWave},
	}
	if _, err := c.CheckWaveCompletion(ctx, "proj", "team", allTasks, []string{"t1"}); err != nil {
		t.Fatalf("CheckWaveCompletion: %v", err)
	}

	msgs, err := c.Mailbox.Poll("proj", "team", plan.Workers[0], mailbox.PollRequest{
		TimeoutMs: 1,
		Type:      model.MessageTaskAssignment,
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 task_assignment message, got %d", len(msgs))
	}
}

func TestSpawnRefusesWhenPlanPaused(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	repo := initGitRepo(t)

	req := SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1"},
		SourceDir:   repo,
		UseWorktree: false,
		SessionName: "swarm-1",
	}
	if _, err := c.Spawn(ctx, req); err != nil {
		t.Fatalf("initial Spawn: %v", err)
	}

	var plan model.SwarmPlan
	if err := c.store.UpdateJSON(c.Paths.SwarmFile("proj", "team"), &plan, func() error {
		plan.Paused = true
		return nil
	}); err != nil {
		t.Fatalf("force pause: %v", err)
	}

	_, err := c.Spawn(ctx, req)
	if kernelerr.KindOf(err) != kernelerr.KindConflict {
		t.Fatalf("expected a conflict error for a paused plan, got %v", err)
	}

	if _, err := c.Resume(ctx, "proj", "team"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := c.Spawn(ctx, req); err != nil {
		t.Fatalf("Spawn after Resume: %v", err)
	}
}

func TestResumeRejectsNotPaused(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	repo := initGitRepo(t)

	if _, err := c.Spawn(ctx, SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1"},
		SourceDir:   repo,
		SessionName: "swarm-1",
	}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	_, err := c.Resume(ctx, "proj", "team")
	if kernelerr.KindOf(err) != kernelerr.KindValidation {
		t.Fatalf("expected resuming a non-paused plan to fail validation, got %v", err)
	}
}

func TestStopSendsShutdownRequestBeforeKillingPane(t *testing.T) {
	c, host := newTestController(t)
	ctx := context.Background()
	repo := initGitRepo(t)

	plan, err := c.Spawn(ctx, SpawnRequest{
		Project:     "proj",
		Team:        "team",
		WorkerIDs:   []string{"w1"},
		SourceDir:   repo,
		SessionName: "swarm-1",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := c.Stop(ctx, "proj", "team", "w1", false); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !host.sessions["swarm-1"] {
		t.Fatalf("expected Stop(worker) to leave the session alive")
	}

	msgs, err := c.Mailbox.Poll("proj", "team", plan.Workers[0], mailbox.PollRequest{
		TimeoutMs: 1,
		Type:      model.MessageShutdownRequest,
	})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 shutdown_request message, got %d", len(msgs))
	}
}
