// Package cleanup implements the Cleanup Manager: removes terminal
// sessions, prunes old session directories by age or state, and
// enforces the safety predicate on every deletion path.
package cleanup

import (
	"os"
	"time"

	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// Manager prunes session directories.
type Manager struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a cleanup Manager.
func New(p *paths.Resolver, s *store.Store) *Manager {
	return &Manager{Paths: p, store: s}
}

// Mode selects which sessions a Run considers eligible for deletion.
type Mode struct {
	OlderThanDays int  // 0 means "not applied"; default handled by caller
	Completed     bool // restrict to terminal-state sessions
	All           bool // explicitly destructive; may delete active sessions
}

// DeletedSession describes one session removed by Run.
type DeletedSession struct {
	SessionID string      `json:"session_id"`
	Goal      string      `json:"goal"`
	Phase     model.Phase `json:"phase"`
	AgeDays   int         `json:"age_days"`
}

// Result is the structured output of Run.
type Result struct {
	DeletedCount    int              `json:"deleted_count"`
	DeletedSessions []DeletedSession `json:"deleted_sessions"`
	PreservedCount  int              `json:"preserved_count"`
}

// Run scans every session directory and deletes those eligible under
// mode, enforcing the safety predicate on every deletion.
func (m *Manager) Run(mode Mode, now time.Time) (*Result, error) {
	root := m.Paths.SessionsDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{}, nil
		}
		return nil, err
	}

	result := &Result{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()

		var sess model.Session
		if err := m.store.ReadJSON(m.Paths.SessionFile(sessionID), &sess); err != nil {
			// An unreadable session document is treated conservatively:
			// preserve it rather than guess at its eligibility.
			result.PreservedCount++
			continue
		}

		ageDays := int(now.Sub(sess.UpdatedAt).Hours() / 24)
		eligible := m.eligible(mode, sess, ageDays)

		if !eligible {
			result.PreservedCount++
			continue
		}

		target := m.Paths.SessionDir(sessionID)
		if err := m.Paths.Safe(target); err != nil {
			result.PreservedCount++
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, err
		}

		result.DeletedCount++
		result.DeletedSessions = append(result.DeletedSessions, DeletedSession{
			SessionID: sessionID,
			Goal:      sess.Goal,
			Phase:     sess.Phase,
			AgeDays:   ageDays,
		})
	}

	return result, nil
}

func (m *Manager) eligible(mode Mode, sess model.Session, ageDays int) bool {
	if mode.All {
		return true
	}
	if mode.Completed {
		return sess.Phase.Terminal()
	}
	if mode.OlderThanDays > 0 {
		return sess.Phase.Terminal() && ageDays >= mode.OlderThanDays
	}
	return false
}
