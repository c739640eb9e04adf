package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/instruction"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// dispatch starts the current batch of a factor. Setup and call instructions
// run immediately; process instructions are queued for the process pool.
func (s *Scheduler) dispatch(ctx context.Context, id factor.ID) {
	batch := s.tracking[id][0]
	s.progress[id] = 0

	for _, ins := range batch {
		switch {
		case ins.Kind.IsProcess():
			if s.cancelled {
				continue
			}
			s.commandQueue = append(s.commandQueue, ins)
			continue
		case ins.Kind == instruction.Call:
			s.call(ctx, ins)
		default:
			if err := s.setup(ins); err != nil {
				s.fail(ins, constructerrors.NewSetupError(string(id), string(ins.Kind), ins.Output, err), metrics.FailureSetup)
			}
		}
		s.progress[id]++
	}

	if s.progress[id] >= len(batch) {
		s.touch(id)
	}
}

// setup performs a directory or link instruction.
func (s *Scheduler) setup(ins instruction.Instruction) error {
	switch ins.Kind {
	case instruction.Directory:
		return s.fs.MkdirAll(ins.Output, 0o755)
	case instruction.Link:
		if len(ins.Sources) == 0 {
			return fmt.Errorf("link %s has no target", ins.Output)
		}
		linker, ok := s.fs.(afero.Linker)
		if !ok {
			return fmt.Errorf("filesystem %s cannot create links", s.fs.Name())
		}
		target := ins.Sources[0]
		if _, err := s.fs.Stat(target); err != nil {
			return fmt.Errorf("link target: %w", err)
		}
		if err := s.fs.MkdirAll(filepath.Dir(ins.Output), 0o755); err != nil {
			return err
		}
		if err := s.fs.Remove(ins.Output); err != nil && !os.IsNotExist(err) {
			return err
		}
		return linker.SymlinkIfPossible(target, ins.Output)
	default:
		return fmt.Errorf("unsupported setup instruction %s", ins.Kind)
	}
}

// call runs a call instruction synchronously. A raised error or panic is
// recorded in the instruction log and counted as a failure.
func (s *Scheduler) call(ctx context.Context, ins instruction.Instruction) {
	start := time.Now()
	err := invoke(ctx, ins)
	elapsed := time.Since(start)

	log := s.log.WithFactor(string(ins.Factor)).WithFields(map[string]any{
		"call": ins.Name,
	})

	if err == nil {
		if ins.Log != "" {
			_ = s.fs.Remove(ins.Log)
		}
		log.Debug("call completed")
		s.emit(Event{Kind: EventCall, Factor: ins.Factor, Command: ins.Command(), Elapsed: elapsed})
		return
	}

	failure := constructerrors.NewInstructionCallError(string(ins.Factor), ins.Name, err)
	s.fail(ins, failure, metrics.FailureCall)

	if ins.Log != "" {
		if werr := afero.WriteFile(s.fs, ins.Log, []byte("[Exception]\n"+err.Error()+"\n"), 0o644); werr != nil {
			log.Warn(fmt.Sprintf("unable to write call log: %v", werr))
		}
	}
	s.emit(Event{Kind: EventCall, Factor: ins.Factor, Command: ins.Command(), Elapsed: elapsed, Err: failure})
}

func invoke(ctx context.Context, ins instruction.Instruction) (err error) {
	if ins.Func == nil {
		return fmt.Errorf("call %s has no function", ins.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return ins.Func(ctx)
}

// fail counts an instruction failure that happened on the scheduling
// goroutine and prints its summary.
func (s *Scheduler) fail(ins instruction.Instruction, failure error, kind string) {
	s.report.Failures++
	s.report.Errors = append(s.report.Errors, failure)
	s.failed[ins.Factor] = struct{}{}
	s.opts.Metrics.Failure(kind)

	fmt.Fprintln(s.out, renderFailure(failure))
	s.log.WithFactor(string(ins.Factor)).WithFields(map[string]any{
		"kind": string(ins.Kind),
		"path": ins.Output,
	}).Error(failure, "instruction failed")
}
