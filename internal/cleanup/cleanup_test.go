package cleanup

import (
	"testing"
	"time"

	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

func TestRunOlderThanOnlyDeletesTerminalAgedSessions(t *testing.T) {
	root := t.TempDir()
	r, err := paths.NewResolverAt(root)
	if err != nil {
		t.Fatalf("NewResolverAt: %v", err)
	}
	s := store.New()
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	writeSession(t, s, r, "completed-old", model.PhaseComplete, now.AddDate(0, 0, -10))
	writeSession(t, s, r, "executing-old", model.PhaseExecution, now.AddDate(0, 0, -30))

	m := New(r, s)
	result, err := m.Run(Mode{OlderThanDays: 7}, now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.DeletedCount != 1 {
		t.Fatalf("expected 1 deleted session, got %d", result.DeletedCount)
	}
	if result.PreservedCount != 1 {
		t.Fatalf("expected 1 preserved session, got %d", result.PreservedCount)
	}
	if result.DeletedSessions[0].SessionID != "completed-old" {
		t.Fatalf("expected completed-old to be deleted, got %s", result.DeletedSessions[0].SessionID)
	}
}

func writeSession(t *testing.T, s *store.Store, r *paths.Resolver, id string, phase model.Phase, updatedAt time.Time) {
	t.Helper()
	sess := model.Session{SessionID: id, Phase: phase, UpdatedAt: updatedAt}
	if err := s.WriteJSON(r.SessionFile(id), &sess); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}
