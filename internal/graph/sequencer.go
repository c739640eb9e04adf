// Package graph sequences a factor dependency graph into batches of factors
// whose requirements have all completed.
package graph

import (
	"errors"
	"sort"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// ErrExhausted is returned by Advance once every factor has completed.
// It is the normal termination signal, not a failure.
var ErrExhausted = errors.New("graph exhausted")

// Descend yields the direct requirements of a factor.
type Descend func(factor.ID) []factor.ID

// Batch is the response to an Advance call.
type Batch struct {
	// Ready lists the factors whose requirements have all completed, sorted by id.
	Ready []factor.ID
	// Requirements maps each ready factor to its direct requirements.
	Requirements map[factor.ID][]factor.ID
	// Dependents maps each ready factor to the factors that require it.
	Dependents map[factor.ID][]factor.ID
}

type set map[factor.ID]struct{}

// Sequencer owns the graph state of a build: the unresolved requirements of
// every blocked factor, the inverted dependency index, and the set of factors
// that have not yet been reported complete.
type Sequencer struct {
	requirements map[factor.ID][]factor.ID
	tree         map[factor.ID]set
	inverse      map[factor.ID]set
	working      set
	fresh        set
	primed       bool
}

// Open builds the inverted graph reachable from roots. Dependency cycles are
// rejected with a CycleError listing the offending factors.
func Open(roots []factor.ID, descend Descend) (*Sequencer, error) {
	s := &Sequencer{
		requirements: make(map[factor.ID][]factor.ID),
		tree:         make(map[factor.ID]set),
		inverse:      make(map[factor.ID]set),
		working:      make(set),
	}

	visited := make(set)
	for _, root := range roots {
		s.traverse(descend, visited, root)
	}

	if cycle := FindCycle(s.requirements); len(cycle) > 0 {
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = string(id)
		}
		return nil, constructerrors.NewCycleError("factors", names)
	}

	s.fresh = make(set, len(s.working))
	for id := range s.working {
		s.fresh[id] = struct{}{}
	}
	return s, nil
}

func (s *Sequencer) traverse(descend Descend, visited set, node factor.ID) {
	if _, seen := visited[node]; seen {
		return
	}
	visited[node] = struct{}{}

	deps := unique(descend(node))
	s.requirements[node] = deps
	if len(deps) == 0 {
		s.working[node] = struct{}{}
		return
	}

	pending := make(set, len(deps))
	for _, dep := range deps {
		pending[dep] = struct{}{}
		if s.inverse[dep] == nil {
			s.inverse[dep] = make(set)
		}
		s.inverse[dep][node] = struct{}{}
		s.traverse(descend, visited, dep)
	}
	s.tree[node] = pending
}

// Advance reports completed factors and returns the factors they unlocked.
// The first call must pass no completions and returns the leaf batch.
// Reporting the same factor twice, or a factor that was never emitted, has
// no effect. Once no factor remains outstanding, Advance returns ErrExhausted.
func (s *Sequencer) Advance(completed []factor.ID) (Batch, error) {
	if !s.primed {
		s.primed = true
		if len(s.working) == 0 {
			return Batch{}, ErrExhausted
		}
	} else {
		s.fresh = make(set)
	}

	for _, node := range completed {
		// Only emitted, incomplete factors can complete.
		if _, active := s.working[node]; !active {
			continue
		}
		delete(s.working, node)

		for dependent := range s.inverse[node] {
			pending, blocked := s.tree[dependent]
			if !blocked {
				continue
			}
			delete(pending, node)
			if len(pending) == 0 {
				delete(s.tree, dependent)
				s.fresh[dependent] = struct{}{}
				s.working[dependent] = struct{}{}
			}
		}
	}

	if len(s.working) == 0 {
		return Batch{}, ErrExhausted
	}

	return s.batch(), nil
}

func (s *Sequencer) batch() Batch {
	ready := make([]factor.ID, 0, len(s.fresh))
	for id := range s.fresh {
		ready = append(ready, id)
	}
	sortIDs(ready)

	b := Batch{
		Ready:        ready,
		Requirements: make(map[factor.ID][]factor.ID, len(ready)),
		Dependents:   make(map[factor.ID][]factor.ID),
	}
	for _, id := range ready {
		b.Requirements[id] = append([]factor.ID(nil), s.requirements[id]...)
		if deps := s.inverse[id]; len(deps) > 0 {
			b.Dependents[id] = sortedSet(deps)
		}
	}
	return b
}

// Outstanding returns the factors that have not been reported complete.
func (s *Sequencer) Outstanding() []factor.ID {
	out := sortedSet(s.working)
	for id := range s.tree {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Stranded returns the factors still waiting on requirements.
func (s *Sequencer) Stranded() []factor.ID {
	out := make([]factor.ID, 0, len(s.tree))
	for id := range s.tree {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Len returns the number of factors reachable from the roots.
func (s *Sequencer) Len() int {
	return len(s.requirements)
}

func unique(ids []factor.ID) []factor.ID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(set, len(ids))
	out := make([]factor.ID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedSet(s set) []factor.ID {
	out := make([]factor.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []factor.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
