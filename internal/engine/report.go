package engine

import (
	"time"

	"github.com/alexisbeaulieu97/construct/internal/factor"
)

// MaxExitStatus bounds the exit status derived from the failure count.
const MaxExitStatus = 201

// Report summarizes a finished build.
type Report struct {
	// Completed lists every factor reported to the sequencer, in completion order.
	Completed []factor.ID
	// Inert factors needed no instructions.
	Inert []factor.ID
	// Skipped factors had no mechanism for their domain.
	Skipped []factor.ID
	// Failed factors had at least one failing instruction.
	Failed []factor.ID
	// Stranded factors were never emitted by the sequencer.
	Stranded []factor.ID

	Failures int
	Exits    int
	// Errors holds the typed failure of every counted failure and every
	// skipped factor, in occurrence order.
	Errors   []error
	Duration time.Duration
}

// ExitStatus clamps the failure count into a single byte exit status.
func (r *Report) ExitStatus() int {
	if r == nil {
		return 0
	}
	return ExitStatus(r.Failures)
}

// ExitStatus clamps failures to MaxExitStatus.
func ExitStatus(failures int) int {
	if failures > MaxExitStatus {
		return MaxExitStatus
	}
	if failures < 0 {
		return 0
	}
	return failures
}

// EventKind tags a scheduler event.
type EventKind string

const (
	// EventStart carries the number of factors reachable from the roots.
	EventStart EventKind = "start"
	// EventSpawn is emitted when a subprocess starts.
	EventSpawn EventKind = "spawn"
	// EventExit is emitted when a subprocess exits.
	EventExit EventKind = "exit"
	// EventCall is emitted after a call instruction ran.
	EventCall EventKind = "call"
	// EventFactor is emitted when a factor is reported complete.
	EventFactor EventKind = "factor"
	// EventFinish carries the final report.
	EventFinish EventKind = "finish"
)

// Event describes a state change of the scheduler. Observers are invoked on
// the scheduling goroutine and must not block.
type Event struct {
	Kind     EventKind
	Factor   factor.ID
	PID      int
	Command  string
	ExitCode int
	// Outcome is one of the metrics factor outcomes for EventFactor.
	Outcome string
	Total   int
	Elapsed time.Duration
	Err     error
	Report  *Report
}
