// Package swarm implements the Swarm Controller: supervises the pane
// host, spawns and stops workers, maintains per-worker state files,
// detects wave completion, and drives the merge/sync protocol. Grounded
// in the worker-pool and pane-spawn shape from the pack's orchestrator
// examples, generalized to route through the task store, mailbox, and
// workspace manager defined by this kernel. Post-merge worker resyncs
// fan out across internal/worker's generic pool since each worker syncs
// an independent worktree.
package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/mailbox"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/panehost"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
	"github.com/mnthe/agentcore/internal/task"
	"github.com/mnthe/agentcore/internal/worker"
	"github.com/mnthe/agentcore/internal/workspace"
)

// Controller is the Swarm Controller.
type Controller struct {
	Paths     *paths.Resolver
	store     *store.Store
	Tasks     *task.Store
	Mailbox   *mailbox.Mailbox
	Workspace *workspace.Manager
	Host      panehost.Host
	Log       *slog.Logger

	mu sync.Mutex
}

// New constructs a Controller.
func New(p *paths.Resolver, s *store.Store, tasks *task.Store, mb *mailbox.Mailbox, ws *workspace.Manager, host panehost.Host, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{Paths: p, store: s, Tasks: tasks, Mailbox: mb, Workspace: ws, Host: host, Log: log}
}

// SpawnRequest is the input to Spawn.
type SpawnRequest struct {
	Project     string
	Team        string
	WorkerIDs   []string
	Roles       map[string]string // worker id -> role
	SourceDir   string
	UseWorktree bool
	SessionName string
}

// Spawn creates the pane-host session (if absent) and one pane per
// worker, writes a worker file per worker with initial status=idle, and
// writes the swarm plan. If UseWorktree, provisions an isolated working
// copy for each worker via the Workspace Manager. Refuses to spawn while
// an existing plan for this project/team is paused after a merge
// conflict; Resume must clear it first.
func (c *Controller) Spawn(ctx context.Context, req SpawnRequest) (*model.SwarmPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var existing model.SwarmPlan
	if err := c.store.ReadJSON(c.Paths.SwarmFile(req.Project, req.Team), &existing); err == nil && existing.Paused {
		return nil, fmt.Errorf("swarm %s/%s: %w", req.Project, req.Team, kernelerr.ErrSwarmPaused)
	}

	exists, err := c.Host.SessionExists(ctx, req.SessionName)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := c.Host.NewSession(ctx, req.SessionName); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	plan := &model.SwarmPlan{
		Session:     req.SessionName,
		Status:      model.SwarmRunning,
		CreatedAt:   now,
		Workers:     append([]string(nil), req.WorkerIDs...),
		CurrentWave: 0,
		UseWorktree: req.UseWorktree,
		SourceDir:   req.SourceDir,
	}

	for _, id := range req.WorkerIDs {
		paneIdx, err := c.Host.AddPane(ctx, req.SessionName)
		if err != nil {
			c.Log.Warn("failed to add pane", "worker_id", id, "error", err)
			continue
		}

		w := &model.Worker{
			ID:            id,
			Role:          req.Roles[id],
			Pane:          paneIdx,
			Status:        model.WorkerIdle,
			LastHeartbeat: now,
		}

		if req.UseWorktree {
			wt, err := c.Workspace.CreateIsolated(ctx, req.Project, req.Team, id, req.SourceDir)
			if err != nil {
				c.Log.Warn("failed to provision worktree", "worker_id", id, "error", err)
				w.HeartbeatNote = fmt.Sprintf("worktree provisioning failed: %v", err)
			} else {
				w.Worktree = wt
				w.Branch = "worker-" + id
			}
		}

		if err := c.store.WriteJSON(c.Paths.WorkerFile(req.Project, req.Team, id), w); err != nil {
			return nil, err
		}
	}

	if err := c.store.WriteJSON(c.Paths.SwarmFile(req.Project, req.Team), plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// WorkerView decorates a worker document with a liveness bit derived
// from the pane host.
type WorkerView struct {
	model.Worker
	Alive bool `json:"alive"`
}

// Status enumerates worker files (the authoritative source; swarm.json's
// worker list is advisory only), decorated with liveness, sorted by the
// numeric suffix of the worker id (w1, w2, w10 — not lexicographic).
func (c *Controller) Status(ctx context.Context, project, team string) ([]WorkerView, error) {
	dir := c.Paths.WorkersDir(project, team)
	files, err := listJSONFiles(dir)
	if err != nil {
		if isNotExistErr(err) {
			return nil, nil
		}
		return nil, err
	}

	var plan model.SwarmPlan
	sessionName := ""
	if perr := c.store.ReadJSON(c.Paths.SwarmFile(project, team), &plan); perr == nil {
		sessionName = plan.Session
	}

	var views []WorkerView
	for _, f := range files {
		var w model.Worker
		if err := c.store.ReadJSON(f, &w); err != nil {
			continue
		}
		alive := false
		if sessionName != "" {
			alive, _ = c.Host.SessionExists(ctx, sessionName)
		}
		views = append(views, WorkerView{Worker: w, Alive: alive})
	}

	sort.Slice(views, func(i, j int) bool {
		return workerSuffix(views[i].ID) < workerSuffix(views[j].ID)
	})
	return views, nil
}

// workerSuffix extracts the trailing integer from a worker id like "w10"
// so sorting is numeric, not lexicographic.
func workerSuffix(id string) int {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0
	}
	return n
}

// Stop stops one worker's pane (workerID set) or kills the whole session
// (all=true). Exactly one of the two must be requested. Workers are sent
// a shutdown_request before their pane or session is killed.
func (c *Controller) Stop(ctx context.Context, project, team, workerID string, all bool) error {
	if (workerID == "") == !all {
		return fmt.Errorf("stop requires exactly one of worker id or --all: %w", kernelerr.ErrInvalidValue)
	}

	var plan model.SwarmPlan
	if err := c.store.ReadJSON(c.Paths.SwarmFile(project, team), &plan); err != nil {
		return err
	}
	exists, err := c.Host.SessionExists(ctx, plan.Session)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %s: %w", plan.Session, kernelerr.ErrNotFound)
	}

	if all {
		for _, id := range plan.Workers {
			c.sendShutdownRequest(project, team, id)
		}
		return c.Host.KillSession(ctx, plan.Session)
	}

	var w model.Worker
	if err := c.store.ReadJSON(c.Paths.WorkerFile(project, team, workerID), &w); err != nil {
		return err
	}
	c.sendShutdownRequest(project, team, workerID)
	return c.Host.KillPane(ctx, plan.Session, w.Pane)
}

// sendShutdownRequest notifies a worker's inbox before its pane is
// killed; delivery failure is logged, not fatal, since the pane is being
// torn down regardless.
func (c *Controller) sendShutdownRequest(project, team, workerID string) {
	_, err := c.Mailbox.Send(project, team, mailbox.SendRequest{
		From: "swarm-controller",
		To:   workerID,
		Type: model.MessageShutdownRequest,
	})
	if err != nil {
		c.Log.Warn("failed to send shutdown_request", "worker_id", workerID, "error", err)
	}
}

// Resume clears a swarm plan's paused flag after an operator has
// resolved the merge conflict that set it, allowing Spawn and
// CheckWaveCompletion to proceed again.
func (c *Controller) Resume(ctx context.Context, project, team string) (*model.SwarmPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var plan model.SwarmPlan
	err := c.store.UpdateJSON(c.Paths.SwarmFile(project, team), &plan, func() error {
		if !plan.Paused {
			return fmt.Errorf("swarm %s/%s: %w", project, team, kernelerr.ErrInvalidValue)
		}
		plan.Paused = false
		plan.ConflictAt = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CheckWaveCompletion checks whether every task in the current wave is
// resolved; if so, it merges the wave via the Workspace Manager,
// advances the wave counter, syncs every active worker, and sends
// task_assignment messages for the next wave's tasks. If merge reports
// a conflict, the swarm plan is paused and no further action is taken
// until an explicit resume.
func (c *Controller) CheckWaveCompletion(ctx context.Context, project, team string, allTasks map[string]*model.Task, waveTasks []string) (*workspace.MergeResult, error) {
	for _, id := range waveTasks {
		t, ok := allTasks[id]
		if !ok || t.Status != model.TaskResolved {
			return nil, nil // wave not yet complete
		}
	}

	var plan model.SwarmPlan
	if err := c.store.ReadJSON(c.Paths.SwarmFile(project, team), &plan); err != nil {
		return nil, err
	}

	result, err := c.Workspace.Merge(ctx, project, team, plan.Workers, plan.SourceDir)
	if err != nil {
		return nil, err
	}

	if result.Status == "conflict" {
		err := c.store.UpdateJSON(c.Paths.SwarmFile(project, team), &plan, func() error {
			plan.Paused = true
			return nil
		})
		return result, err
	}

	pool := worker.NewPool[*workspace.SyncResult](0)
	syncResults := pool.Process(plan.Workers, func(id string) (*workspace.SyncResult, error) {
		return c.Workspace.Sync(ctx, project, team, id, plan.SourceDir, "main")
	})
	for _, r := range syncResults {
		if r.Err != nil {
			c.Log.Warn("sync failed after merge", "worker_id", plan.Workers[r.Index], "error", r.Err)
		}
	}

	err = c.store.UpdateJSON(c.Paths.SwarmFile(project, team), &plan, func() error {
		plan.CurrentWave++
		return nil
	})
	if err != nil {
		return result, err
	}

	nextWave := plan.CurrentWave
	for _, t := range allTasks {
		if t.Wave == nil || *t.Wave != nextWave {
			continue
		}
		for _, id := range plan.Workers {
			if _, serr := c.Mailbox.Send(project, team, mailbox.SendRequest{
				From:    "swarm-controller",
				To:      id,
				Type:    model.MessageTaskAssignment,
				Payload: t,
			}); serr != nil {
				c.Log.Warn("failed to send task_assignment", "worker_id", id, "task_id", t.ID, "error", serr)
			}
		}
	}

	return result, nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e, ".json") {
			out = append(out, filepath.Join(dir, e))
		}
	}
	return out, nil
}
