package wave

import (
	"errors"
	"testing"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
)

func task(id string, blockedBy ...string) *model.Task {
	return &model.Task{ID: id, BlockedBy: blockedBy, Status: model.TaskOpen}
}

func TestCalculateTwoLevelChain(t *testing.T) {
	tasks := []*model.Task{task("t1"), task("t2", "t1")}

	plan, err := Calculate(tasks)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if plan.TotalWaves != 2 {
		t.Fatalf("expected 2 waves, got %d", plan.TotalWaves)
	}
	if len(plan.Waves[0].Tasks) != 1 || plan.Waves[0].Tasks[0] != "t1" {
		t.Fatalf("expected wave 1 = [t1], got %v", plan.Waves[0].Tasks)
	}
	if len(plan.Waves[1].Tasks) != 1 || plan.Waves[1].Tasks[0] != "t2" {
		t.Fatalf("expected wave 2 = [t2], got %v", plan.Waves[1].Tasks)
	}
}

func TestCalculateDetectsCycle(t *testing.T) {
	tasks := []*model.Task{
		task("t1", "t3"),
		task("t2", "t1"),
		task("t3", "t2"),
	}

	_, err := Calculate(tasks)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !errors.Is(err, kernelerr.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Residual) != 3 {
		t.Fatalf("expected all 3 tasks residual, got %v", cycleErr.Residual)
	}
}

func TestCalculateIgnoresDanglingBlocker(t *testing.T) {
	tasks := []*model.Task{task("t1", "ghost")}

	plan, err := Calculate(tasks)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if plan.TotalWaves != 1 || plan.Waves[0].Tasks[0] != "t1" {
		t.Fatalf("expected dangling blocker to act as satisfied, got %+v", plan)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	tasks := []*model.Task{task("b"), task("a"), task("c", "a", "b")}

	p1, err := Calculate(tasks)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	p2, err := Calculate(tasks)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p1.Waves[0].Tasks[0] != "a" || p1.Waves[0].Tasks[1] != "b" {
		t.Fatalf("expected wave 1 sorted [a b], got %v", p1.Waves[0].Tasks)
	}
	if len(p1.Waves) != len(p2.Waves) || p1.Waves[1].Tasks[0] != p2.Waves[1].Tasks[0] {
		t.Fatalf("expected deterministic recomputation")
	}
}
