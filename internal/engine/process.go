package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ProcessSpec describes a subprocess to start. Empty Stdin or Stdout attach
// the null device.
type ProcessSpec struct {
	Argv   []string
	Stdin  string
	Stdout string
	Stderr io.Writer
	Env    []string
}

// Process is a started subprocess.
type Process interface {
	PID() int
	// Wait blocks until the process exits and returns its exit code. A
	// process that could not be waited on reports -1 and the cause.
	Wait() (int, error)
}

// Spawner starts subprocesses. Cancelling ctx kills the process.
type Spawner interface {
	Spawn(ctx context.Context, spec ProcessSpec) (Process, error)
}

// ExecSpawner starts subprocesses with os/exec.
type ExecSpawner struct {
	// WaitDelay bounds how long Wait waits for I/O after the process is killed.
	WaitDelay time.Duration
}

// Spawn implements Spawner.
func (s ExecSpawner) Spawn(ctx context.Context, spec ProcessSpec) (Process, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	cmd.Stderr = spec.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGKILL) }
	cmd.WaitDelay = s.WaitDelay

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	if spec.Stdin != "" {
		in, err := os.Open(spec.Stdin)
		if err != nil {
			return nil, err
		}
		files = append(files, in)
		cmd.Stdin = in
	}
	if spec.Stdout != "" {
		out, err := os.Create(spec.Stdout)
		if err != nil {
			closeAll()
			return nil, err
		}
		files = append(files, out)
		cmd.Stdout = out
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, err
	}
	return &execProcess{cmd: cmd, ctx: ctx, release: closeAll}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	ctx     context.Context
	release func()
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (int, error) {
	defer p.release()

	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	// Wait reports a cancellation that raced a clean exit; the status wins.
	if state := p.cmd.ProcessState; state != nil && state.Success() {
		return 0, nil
	}
	if ctxErr := p.ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
