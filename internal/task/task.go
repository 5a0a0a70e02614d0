// Package task implements the Task Store: the domain layer over
// internal/store for task documents, including optimistic-versioned
// claim, release, status update, and evidence append.
package task

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// Store is the Task Store.
type Store struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a task Store.
func New(p *paths.Resolver, s *store.Store) *Store {
	return &Store{Paths: p, store: s}
}

// Fields is the set of fields accepted by Create.
type Fields struct {
	Subject     string
	Description string
	Role        string
	Domain      string
	Complexity  model.Complexity
	BlockedBy   []string
	Criteria    []string
}

// Create writes a new task with status=open, version=1, evidence=[].
// Fails AlreadyExists if id is already present.
func (s *Store) Create(project, team, id string, f Fields) (*model.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("task id required: %w", kernelerr.ErrInvalidValue)
	}
	if !model.ValidComplexity(f.Complexity) {
		return nil, fmt.Errorf("complexity %q: %w", f.Complexity, kernelerr.ErrInvalidValue)
	}

	path := s.Paths.TaskFile(project, team, id)
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("task %s: %w", id, kernelerr.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	blocked := f.BlockedBy
	if blocked == nil {
		blocked = []string{}
	}
	t := &model.Task{
		ID:          id,
		Subject:     f.Subject,
		Description: f.Description,
		Role:        f.Role,
		Domain:      f.Domain,
		Complexity:  f.Complexity,
		Status:      model.TaskOpen,
		BlockedBy:   blocked,
		Criteria:    f.Criteria,
		Evidence:    []string{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.WriteJSON(path, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one task document.
func (s *Store) Get(project, team, id string) (*model.Task, error) {
	var t model.Task
	if err := s.store.ReadJSON(s.Paths.TaskFile(project, team, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Filter selects a subset of a project's tasks.
type Filter struct {
	Status    model.TaskStatus
	Role      string
	Available bool // alias for status=open AND claimed_by=null
}

func (f Filter) matches(t *model.Task) bool {
	if f.Available {
		return t.Status == model.TaskOpen && t.ClaimedBy == ""
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Role != "" && t.Role != f.Role {
		return false
	}
	return true
}

// List loads and filters all tasks under a project/team. Corrupt task
// files are skipped; the caller-visible skipped count is returned
// alongside the matching tasks.
func (s *Store) List(project, team string, f Filter) (matched []*model.Task, skipped int, err error) {
	all, skipped, err := s.loadAll(project, team)
	if err != nil {
		return nil, 0, err
	}
	for _, t := range all {
		if f.matches(t) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, skipped, nil
}

// loadAll reads every task document under a project/team, skipping and
// counting any that fail to parse rather than aborting the scan.
func (s *Store) loadAll(project, team string) (tasks []*model.Task, skipped int, err error) {
	dir := s.Paths.TasksDir(project, team)
	entries, readErr := dirEntries(dir)
	if readErr != nil {
		if isNotExist(readErr) {
			return nil, 0, nil
		}
		return nil, 0, readErr
	}
	for _, name := range entries {
		var t model.Task
		if rerr := s.store.ReadJSON(filepath.Join(dir, name), &t); rerr != nil {
			skipped++
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, skipped, nil
}

// Claim marks a task in_progress for owner, subject to role matching.
func (s *Store) Claim(project, team, id, owner, role string, strictRole bool) (*model.Task, error) {
	var t model.Task
	path := s.Paths.TaskFile(project, team, id)

	err := s.store.UpdateJSON(path, &t, func() error {
		if t.ID == "" {
			return fmt.Errorf("task %s: %w", id, kernelerr.ErrNotFound)
		}
		if t.Status != model.TaskOpen && t.Status != model.TaskPending {
			if t.ClaimedBy == owner {
				return nil // reclaim no-op
			}
			return fmt.Errorf("task %s: %w", id, kernelerr.ErrNotClaimable)
		}
		if t.ClaimedBy != "" && t.ClaimedBy != owner {
			return fmt.Errorf("task %s already claimed by %s: %w", id, t.ClaimedBy, kernelerr.ErrAlreadyClaimed)
		}
		if strictRole && role != "" && t.Role != "" && t.Role != role {
			return fmt.Errorf("task %s role %s != %s: %w", id, t.Role, role, kernelerr.ErrRoleMismatch)
		}
		now := time.Now().UTC()
		t.ClaimedBy = owner
		t.ClaimedAt = &now
		t.Status = model.TaskInProgress
		t.Version++
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdatePatch is the set of fields task.update accepts.
type UpdatePatch struct {
	Status      *model.TaskStatus
	Subject     *string
	Description *string
	Wave        *int
}

var taskTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskOpen:       {model.TaskInProgress},
	model.TaskInProgress: {model.TaskResolved, model.TaskFailed, model.TaskOpen, model.TaskPending},
	model.TaskPending:    {model.TaskInProgress, model.TaskOpen},
	model.TaskFailed:     {model.TaskPending, model.TaskOpen},
}

// Update patches status/subject/description/wave fields under lock.
func (s *Store) Update(project, team, id string, patch UpdatePatch) (*model.Task, error) {
	var t model.Task
	path := s.Paths.TaskFile(project, team, id)

	err := s.store.UpdateJSON(path, &t, func() error {
		if t.ID == "" {
			return fmt.Errorf("task %s: %w", id, kernelerr.ErrNotFound)
		}
		if patch.Status != nil {
			newStatus := *patch.Status
			if newStatus == model.TaskResolved && t.Status == model.TaskResolved {
				// no-op per spec
			} else {
				allowed := false
				for _, v := range taskTransitions[t.Status] {
					if v == newStatus {
						allowed = true
						break
					}
				}
				if !allowed {
					return fmt.Errorf("task %s status %s -> %s: %w", id, t.Status, newStatus, kernelerr.ErrInvalidValue)
				}
				t.Status = newStatus
			}
		}
		if patch.Subject != nil {
			t.Subject = *patch.Subject
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Wave != nil {
			t.Wave = patch.Wave
		}
		t.Version++
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Release clears claimed_by/claimed_at while keeping status=in_progress,
// per the documented (if unusual) convention preserved from the source
// system. Claim refuses an in_progress task held by no one, so a released
// task becomes claimable again only once Update moves its status back to
// open or pending.
func (s *Store) Release(project, team, id string) (*model.Task, error) {
	var t model.Task
	path := s.Paths.TaskFile(project, team, id)

	err := s.store.UpdateJSON(path, &t, func() error {
		if t.ID == "" {
			return fmt.Errorf("task %s: %w", id, kernelerr.ErrNotFound)
		}
		t.ClaimedBy = ""
		t.ClaimedAt = nil
		t.Version++
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// AppendEvidence appends one evidence string, allowed in any status.
func (s *Store) AppendEvidence(project, team, id, text string) (*model.Task, error) {
	var t model.Task
	path := s.Paths.TaskFile(project, team, id)

	err := s.store.UpdateJSON(path, &t, func() error {
		if t.ID == "" {
			return fmt.Errorf("task %s: %w", id, kernelerr.ErrNotFound)
		}
		t.Evidence = append(t.Evidence, text)
		t.Version++
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a task, only when status=open. If other tasks depend
// on it, deletion is refused unless force is set; with force, the ids
// of orphaned dependents are returned.
func (s *Store) Delete(project, team, id string, force bool) (orphaned []string, err error) {
	t, err := s.Get(project, team, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TaskOpen {
		return nil, fmt.Errorf("task %s status %s: %w", id, t.Status, kernelerr.ErrNotDeletable)
	}

	all, _, err := s.loadAll(project, team)
	if err != nil {
		return nil, err
	}
	for _, other := range all {
		if other.ID == id {
			continue
		}
		for _, b := range other.BlockedBy {
			if b == id {
				orphaned = append(orphaned, other.ID)
			}
		}
	}
	if len(orphaned) > 0 && !force {
		return nil, fmt.Errorf("task %s: %w", id, kernelerr.ErrHasDependents)
	}

	path := s.Paths.TaskFile(project, team, id)
	if err := removeFile(path); err != nil {
		return nil, err
	}
	return orphaned, nil
}
