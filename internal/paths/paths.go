// Package paths maps logical entities (project, team, session, task,
// worker) to filesystem paths under a single configurable root, and
// enforces the safety predicate that gates every destructive operation.
//
// The layout follows §6 of the design exactly:
//
//	<root>/sessions/<session_id>/{session.json,context.json,exploration/,tasks/}
//	<root>/<project>/<team>/{project.json,tasks/,waves.json,inboxes/,swarm/,worktrees/,.loop-state/}
//
// This mirrors the path-resolution and symlink-aware confinement checks in
// the teacher's resolver and safety packages, generalized from a single
// learnings/patterns search into the kernel's full entity set.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mnthe/agentcore/internal/kernelerr"
)

// EnvRoot is the well-known environment variable that overrides the store
// root for test isolation. When set to a directory outside the caller's
// home directory, the safety predicate allows destructive operations
// freely within that root (§6).
const EnvRoot = "AGENTCORE_ROOT"

// EnvSession is the well-known environment variable naming the current
// session id for commands that must bind to the caller's context.
const EnvSession = "AGENTCORE_SESSION"

// DefaultProduct names the subdirectory under the user's home used when
// EnvRoot is unset.
const DefaultProduct = ".claude/agentcore"

// Resolver maps logical entities to filesystem paths, rooted at Root.
type Resolver struct {
	Root string
}

// NewResolver builds a Resolver from the environment, falling back to
// <home>/.claude/agentcore when EnvRoot is unset.
func NewResolver() (*Resolver, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		return &Resolver{Root: abs}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Resolver{Root: filepath.Join(home, DefaultProduct)}, nil
}

// NewResolverAt builds a Resolver rooted at an explicit path, bypassing
// the environment. Used by tests and by commands that received an
// explicit --root flag.
func NewResolverAt(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Resolver{Root: abs}, nil
}

// SessionsDir is the root directory for all session documents.
func (r *Resolver) SessionsDir() string {
	return filepath.Join(r.Root, "sessions")
}

// SessionDir returns the directory for one session.
func (r *Resolver) SessionDir(sessionID string) string {
	return filepath.Join(r.SessionsDir(), sessionID)
}

// SessionFile returns the path to a session's session.json.
func (r *Resolver) SessionFile(sessionID string) string {
	return filepath.Join(r.SessionDir(sessionID), "session.json")
}

// ContextFile returns the path to a session's context.json.
func (r *Resolver) ContextFile(sessionID string) string {
	return filepath.Join(r.SessionDir(sessionID), "context.json")
}

// ExplorationDir returns the directory for a session's raw exploration
// notes (overview.md, exp-*.md), treated as opaque files by the core.
func (r *Resolver) ExplorationDir(sessionID string) string {
	return filepath.Join(r.SessionDir(sessionID), "exploration")
}

// SessionTaskFile returns the path to one task document scoped to a
// session (as opposed to a persistent project).
func (r *Resolver) SessionTaskFile(sessionID, taskID string) string {
	return filepath.Join(r.SessionDir(sessionID), "tasks", taskID+".json")
}

// SessionTasksDir returns the tasks directory under a session.
func (r *Resolver) SessionTasksDir(sessionID string) string {
	return filepath.Join(r.SessionDir(sessionID), "tasks")
}

// TeamDir returns the directory for one project/team pair.
func (r *Resolver) TeamDir(project, team string) string {
	return filepath.Join(r.Root, project, team)
}

// ProjectFile returns the path to a team's project.json.
func (r *Resolver) ProjectFile(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "project.json")
}

// TasksDir returns the tasks directory under a project/team.
func (r *Resolver) TasksDir(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "tasks")
}

// TaskFile returns the path to one task document under a project/team.
func (r *Resolver) TaskFile(project, team, taskID string) string {
	return filepath.Join(r.TasksDir(project, team), taskID+".json")
}

// WavesFile returns the path to a team's waves.json.
func (r *Resolver) WavesFile(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "waves.json")
}

// InboxesDir returns the inboxes directory under a project/team.
func (r *Resolver) InboxesDir(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "inboxes")
}

// InboxFile returns the path to one recipient's inbox file.
func (r *Resolver) InboxFile(project, team, recipient string) string {
	return filepath.Join(r.InboxesDir(project, team), recipient+".json")
}

// SwarmDir returns the swarm directory under a project/team.
func (r *Resolver) SwarmDir(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "swarm")
}

// SwarmFile returns the path to a team's swarm.json.
func (r *Resolver) SwarmFile(project, team string) string {
	return filepath.Join(r.SwarmDir(project, team), "swarm.json")
}

// WorkersDir returns the directory holding per-worker state files.
func (r *Resolver) WorkersDir(project, team string) string {
	return filepath.Join(r.SwarmDir(project, team), "workers")
}

// WorkerFile returns the path to one worker's state file.
func (r *Resolver) WorkerFile(project, team, workerID string) string {
	return filepath.Join(r.WorkersDir(project, team), workerID+".json")
}

// WorktreesDir returns the directory holding isolated working copies.
func (r *Resolver) WorktreesDir(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), "worktrees")
}

// WorktreeDir returns the directory for one worker's isolated working copy.
func (r *Resolver) WorktreeDir(project, team, workerID string) string {
	return filepath.Join(r.WorktreesDir(project, team), workerID)
}

// LoopStateDir returns the directory holding continuous-session markers.
func (r *Resolver) LoopStateDir(project, team string) string {
	return filepath.Join(r.TeamDir(project, team), ".loop-state")
}

// LoopStateFile returns the path to one session's loop-state marker.
func (r *Resolver) LoopStateFile(project, team, sessionID string) string {
	return filepath.Join(r.LoopStateDir(project, team), sessionID+".json")
}

// Safe applies the safety predicate to a destructive operation target: it
// succeeds iff target is a proper descendant of the configured root AND
// the canonicalized (symlink-resolved) path still lies beneath the root,
// defeating traversal via parent references or symlink chains. Removal of
// the root itself, or of a non-descendant path, is rejected.
//
// When EnvRoot is set to a path outside the caller's home directory, the
// predicate still enforces descendant-of-root, but that root may itself
// sit anywhere on disk (test isolation); it never permits an operation
// outside the configured root.
func (r *Resolver) Safe(target string) error {
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	rootAbs := r.Root
	if targetAbs == rootAbs {
		return errSafety(targetAbs, rootAbs)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil || rel == ".." || hasParentPrefix(rel) {
		return errSafety(targetAbs, rootAbs)
	}

	// Resolve symlinks where possible; a target that does not yet exist
	// is resolved via its nearest existing ancestor.
	resolved, err := resolveExistingAncestor(targetAbs)
	if err != nil {
		return err
	}
	resolvedRoot, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		resolvedRoot = rootAbs
	}
	relResolved, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || relResolved == ".." || hasParentPrefix(relResolved) {
		return errSafety(resolved, resolvedRoot)
	}
	return nil
}

// errSafety reports a rejected destructive operation: target lies
// outside (or equal to) root once relative paths and symlinks are
// resolved.
func errSafety(target, root string) error {
	return fmt.Errorf("%s is not a descendant of root %s: %w", target, root, kernelerr.ErrSafetyViolation)
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// resolveExistingAncestor walks up from path until it finds a directory
// that exists, resolves symlinks on that ancestor, and reattaches the
// original (non-existent) suffix.
func resolveExistingAncestor(path string) (string, error) {
	suffix := ""
	cur := path
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				resolved = cur
			}
			if suffix == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, suffix), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}
