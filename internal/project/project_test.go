package project

import (
	"testing"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
	"github.com/mnthe/agentcore/internal/task"
)

func newTestView(t *testing.T) (*View, *task.Store) {
	t.Helper()
	r, err := paths.NewResolverAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolverAt: %v", err)
	}
	s := store.New()
	tasks := task.New(r, s)
	return New(r, s, tasks), tasks
}

func TestInitRejectsDuplicate(t *testing.T) {
	v, _ := newTestView(t)
	if _, err := v.Init("proj", "team", "goal"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err := v.Init("proj", "team", "goal again")
	if kernelerr.KindOf(err) != kernelerr.KindConflict {
		t.Fatalf("expected a conflict error, got %v", err)
	}
}

func TestStatusAggregatesTaskCounts(t *testing.T) {
	v, tasks := newTestView(t)
	if _, err := v.Init("proj", "team", "ship it"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t1", task.Fields{Subject: "a", Complexity: model.ComplexitySimple}); err != nil {
		t.Fatalf("Create t1: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t2", task.Fields{Subject: "b", Complexity: model.ComplexitySimple}); err != nil {
		t.Fatalf("Create t2: %v", err)
	}
	if _, err := tasks.Claim("proj", "team", "t2", "worker-a", "", false); err != nil {
		t.Fatalf("Claim t2: %v", err)
	}

	status, err := v.Status("proj", "team", false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Stats.Total != 2 {
		t.Fatalf("expected total 2, got %d", status.Stats.Total)
	}
	if status.Stats.Open != 1 {
		t.Fatalf("expected open 1, got %d", status.Stats.Open)
	}
	if status.Stats.InProgress != 1 {
		t.Fatalf("expected in_progress 1, got %d", status.Stats.InProgress)
	}
	if status.Tasks != nil {
		t.Fatalf("expected tasks to be omitted when not verbose")
	}
}

func TestStatusVerboseIncludesTasks(t *testing.T) {
	v, tasks := newTestView(t)
	if _, err := v.Init("proj", "team", "goal"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t1", task.Fields{Subject: "a", Complexity: model.ComplexitySimple}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	status, err := v.Status("proj", "team", true)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Tasks) != 1 {
		t.Fatalf("expected 1 task in verbose status, got %d", len(status.Tasks))
	}
}

func TestStatusReportsBlockedTasks(t *testing.T) {
	v, tasks := newTestView(t)
	if _, err := v.Init("proj", "team", "goal"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t1", task.Fields{Subject: "base", Complexity: model.ComplexitySimple}); err != nil {
		t.Fatalf("Create t1: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t2", task.Fields{Subject: "dependent", Complexity: model.ComplexitySimple, BlockedBy: []string{"t1"}}); err != nil {
		t.Fatalf("Create t2: %v", err)
	}

	status, err := v.Status("proj", "team", false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.BlockedTasks) != 1 || status.BlockedTasks[0] != "t2" {
		t.Fatalf("expected t2 to be reported blocked, got %v", status.BlockedTasks)
	}
}

func TestExtractFieldDottedPath(t *testing.T) {
	v, tasks := newTestView(t)
	if _, err := v.Init("proj", "team", "goal"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := tasks.Create("proj", "team", "t1", task.Fields{Subject: "a", Complexity: model.ComplexitySimple}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	status, err := v.Status("proj", "team", false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	got, err := ExtractField(status, "stats.open")
	if err != nil {
		t.Fatalf("ExtractField: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected stats.open = 1, got %v", got)
	}
}

func TestExtractFieldUnknownPath(t *testing.T) {
	v, _ := newTestView(t)
	if _, err := v.Init("proj", "team", "goal"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	status, err := v.Status("proj", "team", false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := ExtractField(status, "stats.nonexistent"); err == nil {
		t.Fatalf("expected an unknown field to fail")
	}
}
