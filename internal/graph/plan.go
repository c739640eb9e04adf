package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/construct/internal/factor"
)

// Plan is the sequence of batches a build would emit if every factor
// completed as soon as it became ready.
type Plan struct {
	Levels [][]factor.ID
}

// GeneratePlan drives a Sequencer to exhaustion, completing each batch in full.
func GeneratePlan(roots []factor.ID, descend Descend) (*Plan, error) {
	seq, err := Open(roots, descend)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	var completed []factor.ID
	for {
		batch, err := seq.Advance(completed)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(batch.Ready) == 0 {
			return nil, fmt.Errorf("sequencing stalled with %d factors outstanding", len(seq.Outstanding()))
		}
		plan.Levels = append(plan.Levels, batch.Ready)
		completed = batch.Ready
	}
	return plan, nil
}

// Len returns the number of factors in the plan.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, level := range p.Levels {
		n += len(level)
	}
	return n
}

// String renders a human readable summary of the plan.
func (p *Plan) String() string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	for i, level := range p.Levels {
		ids := make([]string, len(level))
		for j, id := range level {
			ids[j] = string(id)
		}
		fmt.Fprintf(&b, "Batch %d (%d factors): %s\n", i, len(level), strings.Join(ids, ", "))
	}
	return b.String()
}
