// Package wave implements the Wave Calculator: topological layering of
// a project's task graph into parallel waves via Kahn's algorithm, plus
// persistence and status-transition bookkeeping for the resulting plan.
package wave

import (
	"fmt"
	"sort"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// Store persists wave plans.
type Store struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a wave Store.
func New(p *paths.Resolver, s *store.Store) *Store {
	return &Store{Paths: p, store: s}
}

// CycleError carries the residual task ids that Calculate could not
// assign to any wave.
type CycleError struct {
	Residual []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among tasks: %v", e.Residual)
}

func (e *CycleError) Unwrap() error { return kernelerr.ErrCycleDetected }

// Calculate computes waves over tasks by Kahn's algorithm. References
// in blocked_by to ids absent from tasks are ignored (treated as
// already satisfied) with the caller responsible for logging a warning
// if it wants one — Calculate itself only returns the result. Output is
// deterministic: task ids are sorted ascending within each wave.
func Calculate(tasks []*model.Task) (*model.WavePlan, error) {
	byID := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	remaining := make(map[string][]string, len(tasks)) // id -> unresolved blockers
	for _, t := range tasks {
		var blockers []string
		for _, b := range t.BlockedBy {
			if _, ok := byID[b]; ok {
				blockers = append(blockers, b)
			}
		}
		remaining[t.ID] = blockers
	}

	resolved := make(map[string]bool, len(tasks))
	var waves []model.Wave
	waveNum := 0

	for len(resolved) < len(tasks) {
		var ready []string
		for id, blockers := range remaining {
			if resolved[id] {
				continue
			}
			allResolved := true
			for _, b := range blockers {
				if !resolved[b] {
					allResolved = false
					break
				}
			}
			if allResolved {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			var residual []string
			for id := range remaining {
				if !resolved[id] {
					residual = append(residual, id)
				}
			}
			sort.Strings(residual)
			return nil, &CycleError{Residual: residual}
		}

		sort.Strings(ready)
		waveNum++
		waves = append(waves, model.Wave{
			ID:     waveNum,
			Status: model.WavePlanning,
			Tasks:  ready,
		})
		for _, id := range ready {
			resolved[id] = true
		}
	}

	return &model.WavePlan{
		TotalWaves:  len(waves),
		CurrentWave: currentWave(waves),
		Waves:       waves,
	}, nil
}

// currentWave returns the lowest wave id whose status is not completed,
// or 0 if every wave (or no wave) is completed/verified.
func currentWave(waves []model.Wave) int {
	for _, w := range waves {
		if w.Status != model.WaveCompleted && w.Status != model.WaveVerified {
			return w.ID
		}
	}
	return 0
}

// RecalculateAndSave recomputes waves over the given task set and
// persists the plan. Recomputation is idempotent: calling it twice with
// an unchanged task set produces a byte-identical plan.
func (s *Store) RecalculateAndSave(project, team string, tasks []*model.Task) (*model.WavePlan, error) {
	plan, err := Calculate(tasks)
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(s.Paths.WavesFile(project, team), plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Get returns the persisted wave plan for a project/team.
func (s *Store) Get(project, team string) (*model.WavePlan, error) {
	var plan model.WavePlan
	if err := s.store.ReadJSON(s.Paths.WavesFile(project, team), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

var waveTransitions = map[model.WaveStatus][]model.WaveStatus{
	model.WavePlanning:   {model.WaveInProgress},
	model.WaveInProgress: {model.WaveCompleted},
	model.WaveCompleted:  {model.WaveVerified, model.WaveInProgress},
	model.WaveVerified:   {model.WaveInProgress},
}

// Transition moves wave waveID to newStatus, validating against the
// allowed status graph and stamping the matching timestamp field.
func (s *Store) Transition(project, team string, waveID int, newStatus model.WaveStatus) (*model.WavePlan, error) {
	var plan model.WavePlan
	path := s.Paths.WavesFile(project, team)

	err := s.store.UpdateJSON(path, &plan, func() error {
		idx := -1
		for i := range plan.Waves {
			if plan.Waves[i].ID == waveID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("wave %d: %w", waveID, kernelerr.ErrNotFound)
		}
		w := &plan.Waves[idx]

		allowed := false
		for _, v := range waveTransitions[w.Status] {
			if v == newStatus {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("wave %d status %s -> %s: %w", waveID, w.Status, newStatus, kernelerr.ErrIllegalTransition)
		}

		now := time.Now().UTC()
		w.Status = newStatus
		switch newStatus {
		case model.WaveInProgress:
			if w.StartedAt == nil {
				w.StartedAt = &now
			}
		case model.WaveCompleted:
			w.CompletedAt = &now
		case model.WaveVerified:
			w.VerifiedAt = &now
		}

		plan.CurrentWave = currentWave(plan.Waves)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
