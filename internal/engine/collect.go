package engine

import (
	"context"
	"sort"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/graph"
	"github.com/alexisbeaulieu97/construct/internal/instruction"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	"github.com/alexisbeaulieu97/construct/internal/staleness"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// collect plans the instructions of a factor released by the sequencer and
// dispatches its first batch.
func (s *Scheduler) collect(ctx context.Context, id factor.ID, batch graph.Batch) {
	node, ok := s.project.Node(id)
	if !ok {
		s.touch(id)
		return
	}

	f, ok := node.(*factor.Factor)
	if !ok {
		// System factors are already built.
		s.touch(id)
		return
	}

	log := s.log.WithFactor(string(id))

	sel, ok := s.context.Select(f.Domain)
	if !ok {
		err := constructerrors.NewMissingMechanismError(string(id), f.Domain)
		log.WithFields(map[string]any{"domain": f.Domain}).Warn("no mechanism for factor domain; skipping")
		s.skipped[id] = struct{}{}
		s.report.Skipped = append(s.report.Skipped, id)
		s.report.Errors = append(s.report.Errors, err)
		s.touch(id)
		return
	}

	reqIDs := batch.Requirements[id]
	requirements := s.project.Group(reqIDs)
	force := false
	for _, req := range reqIDs {
		if has(s.changed, req) {
			force = true
			break
		}
	}

	var dependents []factor.Node
	for _, dep := range batch.Dependents[id] {
		if n, ok := s.project.Node(dep); ok {
			dependents = append(dependents, n)
		}
	}
	sort.Slice(dependents, func(i, j int) bool { return dependents[i].ID() < dependents[j].ID() })

	opts := s.rebuild
	opts.Subfactor = has(s.selected, id)
	filter := staleness.Bind(s.fs, opts)

	var tracks []instruction.Batch
	for _, b := range s.planner.Builds(s.context, sel, f, requirements, dependents) {
		steps, err := s.planner.Plan(b, filter, force)
		if err != nil {
			s.report.Failures++
			s.report.Errors = append(s.report.Errors, err)
			s.failed[id] = struct{}{}
			s.opts.Metrics.Failure(metrics.FailurePlan)
			log.Error(err, "failed to plan factor")
			continue
		}
		if steps.Changed() {
			s.changed[id] = struct{}{}
		}
		tracks = append(tracks, steps.Batches()...)
	}

	if len(tracks) == 0 {
		if !has(s.failed, id) {
			s.inert[id] = struct{}{}
			s.report.Inert = append(s.report.Inert, id)
		}
		log.Debug("factor is up to date")
		s.touch(id)
		return
	}

	s.tracking[id] = tracks
	s.progress[id] = ready
	s.dispatch(ctx, id)
}
