// Package workspace implements the Workspace Manager: creating,
// removing, syncing, and merging isolated working copies for swarm
// workers via git worktrees. It generalizes the teacher's single
// detached-worktree-per-run model to one named-branch worktree per
// worker, following the teacher's git-plumbing approach throughout.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/paths"
)

// Manager provisions and tears down isolated working copies.
type Manager struct {
	Paths *paths.Resolver
}

// New constructs a Manager.
func New(p *paths.Resolver) *Manager {
	return &Manager{Paths: p}
}

func branchName(workerID string) string {
	return "worker-" + workerID
}

func (m *Manager) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %v: %w: %s", args, kernelerr.ErrExternal, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// isRepo reports whether dir is inside a git working tree. Tried read-only
// via go-git first (cheap, no subprocess); falls back to shelling out for
// worktree layouts go-git's DetectDotGit doesn't resolve.
func (m *Manager) isRepo(ctx context.Context, dir string) bool {
	if _, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true}); err == nil {
		return true
	}
	_, err := m.git(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// isClean reports whether dir's working tree has no uncommitted changes.
func (m *Manager) isClean(ctx context.Context, dir string) (bool, error) {
	if repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if wt, err := repo.Worktree(); err == nil {
			if status, err := wt.Status(); err == nil {
				return status.IsClean(), nil
			}
		}
	}
	out, err := m.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// CreateIsolated provisions a worktree for workerID rooted under the
// project's worktrees subdirectory, on branch worker-<worker_id>.
// Refuses NotARepo if sourceDir is not under version control. Idempotent:
// if the target directory already exists, it succeeds without error.
func (m *Manager) CreateIsolated(ctx context.Context, project, team, workerID, sourceDir string) (string, error) {
	if !m.isRepo(ctx, sourceDir) {
		return "", fmt.Errorf("%s: %w", sourceDir, kernelerr.ErrNotARepo)
	}

	target := m.Paths.WorktreeDir(project, team, workerID)
	branch := branchName(workerID)

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	_, err := m.git(ctx, sourceDir, "worktree", "add", "-B", branch, target)
	if err != nil {
		// Idempotency: a worktree already registered at target is not
		// an error condition for this operation.
		if existing, statErr := m.git(ctx, sourceDir, "worktree", "list", "--porcelain"); statErr == nil && strings.Contains(existing, target) {
			return target, nil
		}
		return "", err
	}
	return target, nil
}

// Remove tears down the worktree and deletes its branch. Idempotent.
func (m *Manager) Remove(ctx context.Context, project, team, workerID, sourceDir string) error {
	target := m.Paths.WorktreeDir(project, team, workerID)
	branch := branchName(workerID)

	if _, err := m.git(ctx, sourceDir, "worktree", "remove", "--force", target); err != nil {
		if !strings.Contains(err.Error(), "not a working tree") && !strings.Contains(err.Error(), "No such file") {
			return err
		}
	}
	if _, err := m.git(ctx, sourceDir, "branch", "-D", branch); err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return err
		}
	}
	return nil
}

// SyncResult is the outcome of Sync.
type SyncResult struct {
	Status string // "success" or "conflict"
	Error  string `json:"error,omitempty"`
}

// Sync rebases a worker's branch onto the mainline branch, returning
// conflict status rather than attempting resolution.
func (m *Manager) Sync(ctx context.Context, project, team, workerID, sourceDir, mainlineBranch string) (*SyncResult, error) {
	worktree := m.Paths.WorktreeDir(project, team, workerID)

	_, err := m.git(ctx, worktree, "rebase", mainlineBranch)
	if err != nil {
		_, _ = m.git(ctx, worktree, "rebase", "--abort")
		return &SyncResult{Status: "conflict", Error: err.Error()}, nil
	}
	return &SyncResult{Status: "success"}, nil
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	Status               string   `json:"status"` // "success" or "conflict"
	Merged               []string `json:"merged,omitempty"`
	ConflictAt           string   `json:"conflict_at,omitempty"`
	ConflictFiles        []string `json:"conflict_files,omitempty"`
	MergedBeforeConflict []string `json:"merged_before_conflict,omitempty"`
	NotMerged            []string `json:"not_merged,omitempty"`
}

// Merge merges each worker's branch into the mainline, in worker-id
// order, stopping at the first conflict. The working directory (the
// mainline checkout at sourceDir) must be clean, else DirtyTree.
func (m *Manager) Merge(ctx context.Context, project, team string, workerIDs []string, sourceDir string) (*MergeResult, error) {
	clean, err := m.isClean(ctx, sourceDir)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, fmt.Errorf("%s: %w", sourceDir, kernelerr.ErrDirtyTree)
	}

	ordered := append([]string(nil), workerIDs...)
	sort.Strings(ordered)

	var mergedBefore []string
	for i, id := range ordered {
		branch := branchName(id)
		if _, mergeErr := m.git(ctx, sourceDir, "merge", "--no-edit", branch); mergeErr != nil {
			conflictOut, _ := m.git(ctx, sourceDir, "diff", "--name-only", "--diff-filter=U")
			var files []string
			for _, f := range strings.Split(strings.TrimSpace(conflictOut), "\n") {
				if f != "" {
					files = append(files, f)
				}
			}
			_, _ = m.git(ctx, sourceDir, "merge", "--abort")

			return &MergeResult{
				Status:               "conflict",
				ConflictAt:           id,
				ConflictFiles:        files,
				MergedBeforeConflict: mergedBefore,
				NotMerged:            ordered[i+1:],
			}, nil
		}
		mergedBefore = append(mergedBefore, id)
	}

	return &MergeResult{Status: "success", Merged: mergedBefore}, nil
}
