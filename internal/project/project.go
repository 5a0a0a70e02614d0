// Package project implements the Project View: derived statistics and
// blocker lists over a project's task set, plus a dotted-field
// extractor for structured output.
package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
	"github.com/mnthe/agentcore/internal/task"
)

// View derives status over a project's task set.
type View struct {
	Paths *paths.Resolver
	store *store.Store
	tasks *task.Store
}

// New constructs a project View.
func New(p *paths.Resolver, s *store.Store, tasks *task.Store) *View {
	return &View{Paths: p, store: s, tasks: tasks}
}

// Init writes a new project document.
func (v *View) Init(project, team, goal string) (*model.Project, error) {
	path := v.Paths.ProjectFile(project, team)
	if _, err := v.store.Read(path); err == nil {
		return nil, fmt.Errorf("project %s/%s: %w", project, team, kernelerr.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	p := &model.Project{
		Project:   project,
		Team:      team,
		Goal:      goal,
		Phase:     model.PhasePlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := v.store.WriteJSON(path, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Status is the rendered view returned by status(project).
type Status struct {
	Project      string           `json:"project"`
	Team         string           `json:"team"`
	Goal         string           `json:"goal"`
	Phase        model.Phase      `json:"phase"`
	Stats        model.TaskStats  `json:"stats"`
	BlockedTasks []string         `json:"blocked_tasks"`
	Tasks        []*model.Task    `json:"tasks,omitempty"`
	SkippedFiles int              `json:"skipped_files,omitempty"`
}

// Status derives {project, goal, phase, stats, blocked_tasks, tasks?}.
// Malformed task files are tolerated and skipped; the skipped count is
// reported but never aborts the scan.
func (v *View) Status(project, team string, verbose bool) (*Status, error) {
	var proj model.Project
	if err := v.store.ReadJSON(v.Paths.ProjectFile(project, team), &proj); err != nil {
		return nil, err
	}

	all, skipped, err := v.tasks.List(project, team, task.Filter{})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	stats := model.TaskStats{Total: len(all)}
	var blocked []string
	for _, t := range all {
		switch t.Status {
		case model.TaskOpen:
			stats.Open++
		case model.TaskInProgress:
			stats.InProgress++
		case model.TaskResolved:
			stats.Resolved++
		}

		for _, b := range t.BlockedBy {
			dep, ok := byID[b]
			if ok && dep.Status != model.TaskResolved {
				blocked = append(blocked, t.ID)
				break
			}
		}
	}

	status := &Status{
		Project:      proj.Project,
		Team:         proj.Team,
		Goal:         proj.Goal,
		Phase:        proj.Phase,
		Stats:        stats,
		BlockedTasks: blocked,
		SkippedFiles: skipped,
	}
	if verbose {
		status.Tasks = all
	}

	return status, nil
}

// ExtractField applies a dotted field path (e.g. "stats.open") to a
// Status value, returning the value at that path or kernelerr.ErrFieldNotFound.
func ExtractField(s *Status, field string) (any, error) {
	parts := strings.Split(field, ".")
	var cur any = map[string]any{
		"project":       s.Project,
		"team":          s.Team,
		"goal":          s.Goal,
		"phase":         string(s.Phase),
		"blocked_tasks": s.BlockedTasks,
		"stats": map[string]any{
			"total":       s.Stats.Total,
			"open":        s.Stats.Open,
			"in_progress": s.Stats.InProgress,
			"resolved":    s.Stats.Resolved,
		},
	}
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %w", field, kernelerr.ErrFieldNotFound)
		}
		v, ok := m[p]
		if !ok {
			return nil, fmt.Errorf("field %q: %w", field, kernelerr.ErrFieldNotFound)
		}
		cur = v
	}
	return cur, nil
}
