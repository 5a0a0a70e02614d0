// Package context implements the Context & Exploration Index: it
// aggregates explorer summaries for a session and marks exploration
// complete once the expected explorer ids are all satisfied.
package context

import (
	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

// Index is the Context & Exploration Index store.
type Index struct {
	Paths *paths.Resolver
	store *store.Store
}

// New constructs a context Index.
func New(p *paths.Resolver, s *store.Store) *Index {
	return &Index{Paths: p, store: s}
}

// InitContext overwrites expected_explorers with the given ordered set
// and resets exploration_complete=false.
func (ix *Index) InitContext(sessionID string, expected []string) (*model.Context, error) {
	var ctx model.Context
	path := ix.Paths.ContextFile(sessionID)

	err := ix.store.UpdateJSON(path, &ctx, func() error {
		ctx.ExpectedExplorers = append([]string(nil), expected...)
		ctx.ExplorationComplete = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ctx, nil
}

// AddExplorer appends an explorer entry, merging key_files and patterns
// as deduped, order-stable sets. Duplicate ids (same explorer reporting
// twice) are a no-op: the existing entry is preserved, not overwritten.
func (ix *Index) AddExplorer(sessionID string, entry model.Explorer, keyFiles, patterns []string) (*model.Context, error) {
	if entry.ID == "" {
		return nil, kernelerr.ErrInvalidValue
	}

	var ctx model.Context
	path := ix.Paths.ContextFile(sessionID)

	err := ix.store.UpdateJSON(path, &ctx, func() error {
		for _, e := range ctx.Explorers {
			if e.ID == entry.ID {
				// Duplicate report: existing entry wins, this is a
				// warning-level condition the caller may choose to log.
				return nil
			}
		}
		ctx.Explorers = append(ctx.Explorers, entry)
		ctx.KeyFiles = mergeSet(ctx.KeyFiles, keyFiles)
		ctx.Patterns = mergeSet(ctx.Patterns, patterns)

		if len(ctx.ExpectedExplorers) > 0 && explorersSatisfy(ctx.Explorers, ctx.ExpectedExplorers) {
			ctx.ExplorationComplete = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ctx, nil
}

// Get returns the context document for a session.
func (ix *Index) Get(sessionID string) (*model.Context, error) {
	var ctx model.Context
	if err := ix.store.ReadJSON(ix.Paths.ContextFile(sessionID), &ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

// mergeSet appends items from add that are not already present in base,
// preserving base's existing order and add's relative order for new
// items (deduped, order-stable).
func mergeSet(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[v] = true
	}
	out := base
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// explorersSatisfy reports whether the set of explorer ids is a
// superset of expected, treating both as unordered sets.
func explorersSatisfy(explorers []model.Explorer, expected []string) bool {
	have := make(map[string]bool, len(explorers))
	for _, e := range explorers {
		have[e.ID] = true
	}
	for _, id := range expected {
		if !have[id] {
			return false
		}
	}
	return true
}
