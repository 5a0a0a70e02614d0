// Package session implements the Session Store: the domain layer over
// internal/store for session documents, including phase transitions,
// exploration-stage progression, and evidence-log append.
package session

import (
	"fmt"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// Store is the Session Store, composing the path resolver and the
// atomic store.
type Store struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a session Store.
func New(p *paths.Resolver, s *store.Store) *Store {
	return &Store{Paths: p, store: s}
}

var phaseTransitions = map[model.Phase][]model.Phase{
	model.PhasePlanning:     {model.PhaseExecution, model.PhaseCancelled},
	model.PhaseExecution:    {model.PhaseVerification, model.PhaseCancelled},
	model.PhaseVerification: {model.PhaseComplete, model.PhaseExecution, model.PhaseFailed, model.PhaseCancelled},
}

func transitionAllowed(from, to model.Phase) bool {
	if to == model.PhaseCancelled {
		return true
	}
	for _, allowed := range phaseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var stageOrder = []model.ExplorationStage{
	model.StageNotStarted, model.StageOverview, model.StageAnalyzing,
	model.StageTargeted, model.StageComplete,
}

func stageIndex(s model.ExplorationStage) int {
	for i, v := range stageOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Init creates a new session document plus an empty context document.
// It fails with kernelerr.ErrAlreadyExists if an active (non-terminal)
// session with the id exists and force is false.
func (s *Store) Init(sessionID, goal, workingDir string, opts model.SessionOptions, force bool) (*model.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required: %w", kernelerr.ErrInvalidValue)
	}

	sessionPath := s.Paths.SessionFile(sessionID)

	if existing, err := s.tryGet(sessionID); err == nil {
		if !existing.Phase.Terminal() && !force {
			return nil, fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	sess := &model.Session{
		Version:          model.SchemaVersion,
		SessionID:        sessionID,
		Goal:             goal,
		WorkingDir:       workingDir,
		Phase:            model.PhasePlanning,
		ExplorationStage: model.StageNotStarted,
		Iteration:        1,
		Options:          opts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.WriteJSON(sessionPath, sess); err != nil {
		return nil, err
	}

	ctx := &model.Context{}
	if err := s.store.WriteJSON(s.Paths.ContextFile(sessionID), ctx); err != nil {
		return nil, err
	}

	return sess, nil
}

func (s *Store) tryGet(sessionID string) (*model.Session, error) {
	var sess model.Session
	if err := s.store.ReadJSON(s.Paths.SessionFile(sessionID), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Get returns the full session document.
func (s *Store) Get(sessionID string) (*model.Session, error) {
	return s.tryGet(sessionID)
}

// Patch is the set of optional fields session.update accepts.
type Patch struct {
	Phase            *model.Phase
	ExplorationStage *model.ExplorationStage
	Iteration        *int
	PlanApproved     bool
}

// Update applies patch under lock, validating the phase transition and
// the exploration stage value, and refreshes updated_at. The exploration
// stage may be set to any valid value; its order is not enforced.
func (s *Store) Update(sessionID string, patch Patch) (*model.Session, error) {
	var sess model.Session
	path := s.Paths.SessionFile(sessionID)

	err := s.store.UpdateJSON(path, &sess, func() error {
		if sess.SessionID == "" {
			return fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrNotFound)
		}
		if sess.Phase.Terminal() {
			return fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrIllegalTransition)
		}

		if patch.Phase != nil {
			if !transitionAllowed(sess.Phase, *patch.Phase) {
				return fmt.Errorf("phase %s -> %s: %w", sess.Phase, *patch.Phase, kernelerr.ErrIllegalTransition)
			}
			sess.Phase = *patch.Phase
			if sess.Phase == model.PhaseExecution && sess.StartedAt == nil {
				now := time.Now().UTC()
				sess.StartedAt = &now
			}
		}
		if patch.ExplorationStage != nil {
			if !model.ValidExplorationStage(*patch.ExplorationStage) {
				return fmt.Errorf("exploration_stage %q: %w", *patch.ExplorationStage, kernelerr.ErrInvalidValue)
			}
			sess.ExplorationStage = *patch.ExplorationStage
		}
		if patch.Iteration != nil {
			if *patch.Iteration < 1 {
				return fmt.Errorf("iteration %d: %w", *patch.Iteration, kernelerr.ErrInvalidValue)
			}
			sess.Iteration = *patch.Iteration
		}
		if patch.PlanApproved {
			now := time.Now().UTC()
			sess.PlanApprovedAt = &now
		}
		sess.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Cancel idempotently sets phase=CANCELLED, cancelled_at=now.
func (s *Store) Cancel(sessionID string) (*model.Session, error) {
	var sess model.Session
	path := s.Paths.SessionFile(sessionID)

	err := s.store.UpdateJSON(path, &sess, func() error {
		if sess.SessionID == "" {
			return fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrNotFound)
		}
		if sess.Phase == model.PhaseCancelled {
			return nil
		}
		now := time.Now().UTC()
		sess.Phase = model.PhaseCancelled
		sess.CancelledAt = &now
		sess.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Resume clears cancelled_at without changing phase. Fails NotFound if
// no such session exists.
func (s *Store) Resume(sessionID string) (*model.Session, error) {
	var sess model.Session
	path := s.Paths.SessionFile(sessionID)

	err := s.store.UpdateJSON(path, &sess, func() error {
		if sess.SessionID == "" {
			return fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrNotFound)
		}
		sess.CancelledAt = nil
		sess.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// AppendEvidence appends one evidence record. record must carry a
// non-empty Type; Timestamp defaults to now if zero.
func (s *Store) AppendEvidence(sessionID string, record model.EvidenceRecord) (*model.Session, error) {
	if record.Type == "" {
		return nil, fmt.Errorf("evidence record type required: %w", kernelerr.ErrInvalidValue)
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	var sess model.Session
	path := s.Paths.SessionFile(sessionID)

	err := s.store.UpdateJSON(path, &sess, func() error {
		if sess.SessionID == "" {
			return fmt.Errorf("session %s: %w", sessionID, kernelerr.ErrNotFound)
		}
		sess.EvidenceLog = append(sess.EvidenceLog, record)
		sess.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
