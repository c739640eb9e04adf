// Package engine drives a build: it sequences factors, plans their
// instructions and runs them against a bounded pool of subprocesses.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/build"
	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/graph"
	"github.com/alexisbeaulieu97/construct/internal/instruction"
	"github.com/alexisbeaulieu97/construct/internal/logger"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	"github.com/alexisbeaulieu97/construct/internal/staleness"
)

// ready marks a factor between batches.
const ready = -1

// Options configures a Scheduler.
type Options struct {
	// Roots are the factors to build; empty builds every project factor.
	Roots []factor.ID
	// ProcessLimit bounds concurrently running subprocesses; zero uses NumCPU.
	ProcessLimit int
	// Rebuild is the rebuild level: 0 checks timestamps, 1 rebuilds the
	// roots, 2 rebuilds everything.
	Rebuild int
	// Timeout bounds each subprocess; zero disables it.
	Timeout time.Duration

	FS       afero.Fs
	Spawner  Spawner
	Registry *build.Registry
	Logger   *logger.Logger
	Metrics  *metrics.Collector
	// Output receives failure summaries.
	Output io.Writer
	// Observe receives scheduler events.
	Observe func(Event)
}

type exitEvent struct {
	ins     instruction.Instruction
	pid     int
	command string
	code    int
	err     error
	start   time.Time
	stop    time.Time
}

// Scheduler is the construction manager of one build. It owns the graph and
// scheduler state; all of it is mutated on the goroutine running Run.
type Scheduler struct {
	opts    Options
	project *factor.Project
	context *buildcontext.Context
	planner *build.Planner
	log     *logger.Logger
	fs      afero.Fs
	out     io.Writer

	seq      *graph.Sequencer
	rebuild  staleness.Options
	selected map[factor.ID]struct{}

	tracking     map[factor.ID][]instruction.Batch
	progress     map[factor.ID]int
	commandQueue []instruction.Instruction
	processCount int
	processLimit int
	activity     map[factor.ID]struct{}
	continued    bool
	changed      map[factor.ID]struct{}
	exits        chan exitEvent

	inert   map[factor.ID]struct{}
	skipped map[factor.ID]struct{}
	failed  map[factor.ID]struct{}

	cancelled  bool
	terminated bool
	report     Report
}

// New creates a scheduler for project using the mechanisms of bctx.
func New(project *factor.Project, bctx *buildcontext.Context, opts Options) *Scheduler {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Spawner == nil {
		opts.Spawner = ExecSpawner{WaitDelay: 5 * time.Second}
	}
	if opts.Registry == nil {
		opts.Registry = build.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	limit := opts.ProcessLimit
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	return &Scheduler{
		opts:         opts,
		project:      project,
		context:      bctx,
		planner:      build.NewPlanner(opts.FS, opts.Registry, opts.Logger),
		log:          opts.Logger,
		fs:           opts.FS,
		out:          opts.Output,
		rebuild:      staleness.ForRebuild(opts.Rebuild),
		tracking:     make(map[factor.ID][]instruction.Batch),
		progress:     make(map[factor.ID]int),
		processLimit: limit,
		activity:     make(map[factor.ID]struct{}),
		changed:      make(map[factor.ID]struct{}),
		exits:        make(chan exitEvent, limit),
		inert:        make(map[factor.ID]struct{}),
		skipped:      make(map[factor.ID]struct{}),
		failed:       make(map[factor.ID]struct{}),
	}
}

// Run builds the roots and returns the report. Failures of individual
// instructions never stop the build; they are counted in the report. An
// error is returned when a requirement does not resolve, when the graph
// cannot be sequenced or when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	started := time.Now()

	roots := s.opts.Roots
	if len(roots) == 0 {
		roots = s.project.IDs()
	}
	s.selected = make(map[factor.ID]struct{}, len(roots))
	for _, id := range roots {
		s.selected[id] = struct{}{}
	}

	// Descend drops unresolved requirements, so they are rejected up front.
	if err := s.project.Validate(); err != nil {
		return nil, err
	}

	seq, err := graph.Open(roots, s.project.Descend)
	if err != nil {
		return nil, err
	}
	s.seq = seq
	s.emit(Event{Kind: EventStart, Total: seq.Len()})
	s.log.WithFields(map[string]any{
		"factors":       seq.Len(),
		"process_limit": s.processLimit,
		"rebuild":       s.opts.Rebuild,
	}).Info("construction started")

	s.finish(ctx, nil)
	s.drainProcessQueue(ctx)

	done := ctx.Done()
	for !s.terminated {
		s.interrupted(ctx)
		if s.continued {
			s.continuation(ctx)
			continue
		}
		if s.processCount == 0 {
			if s.cancelled {
				break
			}
			return s.close(started), fmt.Errorf("construction stalled with %d factors outstanding", len(s.seq.Outstanding()))
		}

		select {
		case ev := <-s.exits:
			s.processExit(ev)
			s.collectExits()
		case <-done:
			done = nil
			s.interrupted(ctx)
		}
	}

	report := s.close(started)
	if s.cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// interrupted stops spawning and sequencing once ctx is done. Running
// processes are killed through their contexts and still reported.
func (s *Scheduler) interrupted(ctx context.Context) bool {
	if !s.cancelled && ctx.Err() != nil {
		s.cancelled = true
		s.commandQueue = nil
		s.log.WithFields(map[string]any{"running": s.processCount}).Warn("construction cancelled; waiting for running processes")
	}
	return s.cancelled
}

// collectExits consumes every exit that is already pending so a burst of
// exits results in a single continuation.
func (s *Scheduler) collectExits() {
	for {
		select {
		case ev := <-s.exits:
			s.processExit(ev)
		default:
			return
		}
	}
}

func (s *Scheduler) close(started time.Time) *Report {
	if s.seq != nil {
		s.report.Stranded = s.seq.Stranded()
	}
	s.report.Failed = sortedIDs(s.failed)
	s.report.Duration = time.Since(started)

	s.log.WithFields(map[string]any{
		"completed": len(s.report.Completed),
		"failures":  s.report.Failures,
		"exits":     s.report.Exits,
		"skipped":   len(s.report.Skipped),
		"duration":  s.report.Duration.String(),
	}).Info("construction finished")

	report := s.report
	s.emit(Event{Kind: EventFinish, Report: &report})
	return &report
}

// finish reports completed factors to the sequencer and collects the
// factors they unlock.
func (s *Scheduler) finish(ctx context.Context, completed []factor.ID) {
	for _, id := range completed {
		delete(s.progress, id)
		delete(s.tracking, id)

		outcome := s.outcome(id)
		s.report.Completed = append(s.report.Completed, id)
		s.opts.Metrics.Factor(outcome)
		s.emit(Event{Kind: EventFactor, Factor: id, Outcome: outcome})
	}

	if s.cancelled {
		if s.processCount == 0 {
			s.terminated = true
		}
		return
	}

	batch, err := s.seq.Advance(completed)
	if errors.Is(err, graph.ErrExhausted) {
		s.terminated = true
		return
	}
	for _, id := range batch.Ready {
		s.collect(ctx, id, batch)
	}
}

func (s *Scheduler) outcome(id factor.ID) string {
	switch {
	case has(s.failed, id):
		return metrics.FactorFailed
	case has(s.skipped, id):
		return metrics.FactorSkipped
	case has(s.inert, id):
		return metrics.FactorInert
	default:
		return metrics.FactorComplete
	}
}

// continuation sweeps the factors whose state changed: finished batches are
// popped, the next batch is dispatched and fully processed factors are
// reported complete.
func (s *Scheduler) continuation(ctx context.Context) {
	s.continued = false
	factors := sortedIDs(s.activity)
	s.activity = make(map[factor.ID]struct{})

	var completions []factor.ID
	for _, id := range factors {
		tracks := s.tracking[id]
		if len(tracks) == 0 {
			completions = append(completions, id)
			continue
		}

		if s.progress[id] >= len(tracks[0]) {
			tracks = tracks[1:]
			s.tracking[id] = tracks
			s.progress[id] = ready

			if len(tracks) == 0 {
				completions = append(completions, id)
			} else if !s.cancelled {
				s.dispatch(ctx, id)
			}
		}
		// Otherwise the batch still waits on process exits.
	}

	if len(completions) > 0 {
		s.finish(ctx, completions)
	}
	s.drainProcessQueue(ctx)
}

// touch schedules id for the next continuation.
func (s *Scheduler) touch(id factor.ID) {
	s.activity[id] = struct{}{}
	s.continued = true
}

func (s *Scheduler) emit(ev Event) {
	if s.opts.Observe != nil {
		s.opts.Observe(ev)
	}
}

func has(set map[factor.ID]struct{}, id factor.ID) bool {
	_, ok := set[id]
	return ok
}

func sortedIDs(set map[factor.ID]struct{}) []factor.ID {
	out := make([]factor.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
