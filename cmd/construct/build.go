package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/construct/internal/adapters"
	"github.com/alexisbeaulieu97/construct/internal/build"
	"github.com/alexisbeaulieu97/construct/internal/engine"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/logger"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	"github.com/alexisbeaulieu97/construct/internal/settings"
	"github.com/alexisbeaulieu97/construct/internal/tui"
)

// exitCancelled is the status of an interrupted build.
const exitCancelled = 130

// sessionLogName receives the log of interactive builds.
const sessionLogName = "construct.log"

// spawner overrides the process spawner of builds.
var spawner engine.Spawner

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [factor...]",
		Short: "Build factors and their requirements",
		Long: `Build the given factors, or every factor of the project, after their
requirements. Failing factors do not stop independent factors; the exit
status is the number of failures, capped at 201.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			roots, err := sess.roots(args)
			if err != nil {
				return err
			}

			report, err := sess.build(ctx, roots, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return buildResult(report, err)
		},
	}

	return cmd
}

// buildResult converts the outcome of a build into the command error.
func buildResult(report *engine.Report, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return &ExitError{Code: exitCancelled, Message: "construction cancelled"}
	case err != nil:
		return err
	case report != nil && report.Failures > 0:
		return &ExitError{
			Code:    report.ExitStatus(),
			Message: fmt.Sprintf("construction finished with %d failures", report.Failures),
		}
	}
	return nil
}

// build runs one construction of roots. Progress goes to stdout, logs and
// failure summaries to stderr unless the progress view is interactive.
func (s *session) build(ctx context.Context, roots []factor.ID, stdout, stderr io.Writer) (*engine.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interactive := s.interactive(stdout)
	logWriter := stderr
	if interactive {
		f, err := s.openSessionLog()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		logWriter = f
	}

	log, err := logger.New(logger.Options{
		Level:         s.settings.LogLevel,
		HumanReadable: !interactive && isTerminal(stderr),
		Writer:        logWriter,
		Session:       uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]any{
		"project":   s.project.Name,
		"revision":  s.project.Revision,
		"context":   s.context.Name(),
		"intention": s.context.Intention(),
	}).Info("project loaded")

	collector := metrics.New()
	model := tui.NewModel(s.project.Name, cancel, !interactive)

	opts := engine.Options{
		Roots:        roots,
		ProcessLimit: s.settings.Processors,
		Rebuild:      s.settings.Rebuild,
		Timeout:      s.settings.ProcessTimeout(),
		FS:           s.fs,
		Spawner:      spawner,
		Registry:     adapters.Default(s.fs),
		Logger:       log,
		Metrics:      collector,
		Output:       stderr,
	}

	var program *tea.Program
	done := make(chan error, 1)
	if interactive {
		program = tea.NewProgram(model, tea.WithOutput(stdout))
		opts.Observe = tui.Observer(program)
		opts.Output = programWriter{program: program}
		go func() {
			_, err := program.Run()
			done <- err
		}()
	} else {
		opts.Observe = func(ev engine.Event) {
			model = model.Apply(ev)
		}
	}

	report, runErr := engine.New(s.project, s.context, opts).Run(ctx)

	if interactive {
		program.Quit()
		if err := <-done; err != nil && runErr == nil {
			runErr = err
		}
	} else if report != nil {
		fmt.Fprintln(stdout, model.View())
	}

	if path := s.settings.MetricsFile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			log.Error(err, "unable to write metrics")
		}
	}

	return report, runErr
}

func (s *session) interactive(out io.Writer) bool {
	switch s.settings.Interactive {
	case settings.InteractiveAlways:
		return true
	case settings.InteractiveNever:
		return false
	default:
		return isTerminal(out)
	}
}

// openSessionLog truncates the log of the project's last interactive build.
func (s *session) openSessionLog() (io.WriteCloser, error) {
	dir := filepath.Join(s.root, build.CacheDir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return s.fs.Create(filepath.Join(dir, sessionLogName))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// programWriter prints writes above a running program.
type programWriter struct {
	program *tea.Program
}

func (w programWriter) Write(b []byte) (int, error) {
	w.program.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}
