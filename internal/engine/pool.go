package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/instruction"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// tailLines is the number of log lines quoted by a failure summary.
const tailLines = 12

// drainProcessQueue spawns queued process instructions until the limit is
// reached.
func (s *Scheduler) drainProcessQueue(ctx context.Context) {
	for len(s.commandQueue) > 0 && s.processCount < s.processLimit && !s.interrupted(ctx) {
		ins := s.commandQueue[0]
		s.commandQueue = s.commandQueue[1:]
		s.spawn(ctx, ins)
	}
}

func (s *Scheduler) spawn(ctx context.Context, ins instruction.Instruction) {
	command := ins.Command()
	s.processCount++
	start := time.Now()

	logFile, err := s.openLog(ins, command)
	if err != nil {
		s.processExit(exitEvent{ins: ins, command: command, code: -1, err: err, start: start, stop: time.Now()})
		return
	}

	var (
		pctx   context.Context
		cancel context.CancelFunc
	)
	if s.opts.Timeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	} else {
		pctx, cancel = context.WithCancel(ctx)
	}

	proc, err := s.opts.Spawner.Spawn(pctx, ProcessSpec{
		Argv:   ins.Argv,
		Stdin:  ins.Stdin(),
		Stdout: ins.Stdout(),
		Stderr: logFile,
		Env:    os.Environ(),
	})
	if err != nil {
		cancel()
		_ = logFile.Close()
		s.processExit(exitEvent{ins: ins, command: command, code: -1, err: err, start: start, stop: time.Now()})
		return
	}

	pid := proc.PID()
	s.opts.Metrics.ProcessStarted()
	s.log.WithFactor(string(ins.Factor)).WithProcess(pid, command).Info("spawn")
	s.emit(Event{Kind: EventSpawn, Factor: ins.Factor, PID: pid, Command: command})

	go func() {
		code, werr := proc.Wait()
		cancel()
		_ = logFile.Close()
		s.exits <- exitEvent{ins: ins, pid: pid, command: command, code: code, err: werr, start: start, stop: time.Now()}
	}()
}

// openLog creates the instruction log and writes its header.
func (s *Scheduler) openLog(ins instruction.Instruction, command string) (afero.File, error) {
	if ins.Log == "" {
		return nil, fmt.Errorf("instruction %q has no log path", command)
	}
	if err := s.fs.MkdirAll(filepath.Dir(ins.Log), 0o755); err != nil {
		return nil, err
	}
	f, err := s.fs.Create(ins.Log)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString("[Command]\n" + command + "\n\n[Standard Error]\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// processExit accounts for a finished process and schedules its factor for
// the next continuation.
func (s *Scheduler) processExit(ev exitEvent) {
	s.processCount--
	s.progress[ev.ins.Factor]++
	s.touch(ev.ins.Factor)
	s.report.Exits++

	elapsed := ev.stop.Sub(ev.start)
	if ev.pid > 0 {
		s.opts.Metrics.ProcessExited(ev.code, elapsed)
	}

	var failure error
	if ev.code == 0 {
		s.log.WithFactor(string(ev.ins.Factor)).WithProcess(ev.pid, ev.command).WithFields(map[string]any{
			"exit_code": ev.code,
			"elapsed":   elapsed.String(),
		}).Info("exit")
	} else {
		failure = constructerrors.NewToolStageFailure(
			string(ev.ins.Factor), ev.command, ev.pid, ev.code, ev.ins.Log, s.tail(ev.ins.Log), ev.err,
		)
		s.report.Failures++
		s.report.Errors = append(s.report.Errors, failure)
		s.failed[ev.ins.Factor] = struct{}{}
		s.opts.Metrics.Failure(metrics.FailureTool)

		fmt.Fprintln(s.out, renderFailure(failure))
		s.log.WithFactor(string(ev.ins.Factor)).WithProcess(ev.pid, ev.command).WithFields(map[string]any{
			"exit_code": ev.code,
			"log":       ev.ins.Log,
		}).Error(failure, "tool stage failed")
	}

	if ev.ins.Log != "" {
		s.appendProfile(ev)
	}
	s.emit(Event{
		Kind:     EventExit,
		Factor:   ev.ins.Factor,
		PID:      ev.pid,
		Command:  ev.command,
		ExitCode: ev.code,
		Elapsed:  elapsed,
		Err:      failure,
	})
}

// tail returns the last lines of a log.
func (s *Scheduler) tail(path string) []string {
	if path == "" {
		return nil
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > tailLines {
			lines = lines[1:]
		}
	}
	return lines
}

func (s *Scheduler) appendProfile(ev exitEvent) {
	f, err := s.fs.OpenFile(ev.ins.Log, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("\n[Profile]\n")
	b.WriteString("/factor/ " + string(ev.ins.Factor) + "\n")
	b.WriteString("/subject/ " + ev.ins.Output + "\n")
	b.WriteString("/command/ " + ev.command + "\n")
	b.WriteString("/pid/ " + strconv.Itoa(ev.pid) + "\n")
	b.WriteString("/status/ " + strconv.Itoa(ev.code) + "\n")
	b.WriteString("/start/ " + ev.start.Format(time.RFC3339Nano) + "\n")
	b.WriteString("/stop/ " + ev.stop.Format(time.RFC3339Nano) + "\n")
	_, _ = f.WriteString(b.String())
}
