// Package panehost abstracts the terminal-multiplexer collaborator the
// Swarm Controller depends on: creating named sessions, adding panes,
// sending keystrokes, and killing sessions. The spec treats the pane
// host as a replaceable external collaborator; this package wraps the
// tmux CLI in the same exec.Command-wrapping idiom used throughout the
// teacher's git-facing code, so a test double can stand in for it
// without a real terminal multiplexer.
package panehost

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/mnthe/agentcore/internal/kernelerr"
)

// Host is the interface the Swarm Controller depends on. Tmux is the
// production implementation; tests substitute a fake.
type Host interface {
	SessionExists(ctx context.Context, session string) (bool, error)
	NewSession(ctx context.Context, session string) error
	AddPane(ctx context.Context, session string) (paneIndex int, err error)
	SendKeys(ctx context.Context, session string, pane int, keys string) error
	KillPane(ctx context.Context, session string, pane int) error
	KillSession(ctx context.Context, session string) error
}

// Tmux is the production Host, shelling out to the tmux binary.
type Tmux struct {
	// Command overrides the executable name, defaulting to "tmux".
	// Populated from the configuration loader's pane-host command
	// template (SPEC_FULL.md §4.13).
	Command string
}

func (t *Tmux) bin() string {
	if t.Command != "" {
		return t.Command
	}
	return "tmux"
}

func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %v: %w: %s", args, kernelerr.ErrExternal, stderr.String())
	}
	return stdout.String(), nil
}

// SessionExists reports whether a named tmux session is currently
// alive, which the spec uses as the worker liveness bit.
func (t *Tmux) SessionExists(ctx context.Context, session string) (bool, error) {
	cmd := exec.CommandContext(ctx, t.bin(), "has-session", "-t", session)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if isExitError(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("tmux has-session: %w: %v", kernelerr.ErrExternal, err)
	}
	return true, nil
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// NewSession creates a new detached tmux session with the given name.
func (t *Tmux) NewSession(ctx context.Context, session string) error {
	_, err := t.run(ctx, "new-session", "-d", "-s", session)
	return err
}

// AddPane splits the session's first window to add a pane, returning
// its numeric index.
func (t *Tmux) AddPane(ctx context.Context, session string) (int, error) {
	out, err := t.run(ctx, "split-window", "-t", session, "-P", "-F", "#{pane_index}")
	if err != nil {
		return 0, err
	}
	var idx int
	if _, scanErr := fmt.Sscanf(out, "%d", &idx); scanErr != nil {
		return 0, fmt.Errorf("parse pane index %q: %w", out, kernelerr.ErrExternal)
	}
	return idx, nil
}

// SendKeys sends literal keystrokes to one pane, followed by Enter.
func (t *Tmux) SendKeys(ctx context.Context, session string, pane int, keys string) error {
	target := fmt.Sprintf("%s.%d", session, pane)
	_, err := t.run(ctx, "send-keys", "-t", target, keys, "Enter")
	return err
}

// KillPane kills one pane within a session.
func (t *Tmux) KillPane(ctx context.Context, session string, pane int) error {
	target := fmt.Sprintf("%s.%d", session, pane)
	_, err := t.run(ctx, "kill-pane", "-t", target)
	return err
}

// KillSession kills an entire session.
func (t *Tmux) KillSession(ctx context.Context, session string) error {
	_, err := t.run(ctx, "kill-session", "-t", session)
	return err
}
