package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/construct/internal/adapters"
	"github.com/alexisbeaulieu97/construct/internal/build"
	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/engine"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	"github.com/alexisbeaulieu97/construct/internal/metrics"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

type fakeSpawner struct {
	mu      sync.Mutex
	running int
	peak    int
	nextPID int
	argv    [][]string

	delay time.Duration
	block bool
	fail  func(argv []string) bool
}

func (s *fakeSpawner) Spawn(ctx context.Context, spec engine.ProcessSpec) (engine.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running++
	if s.running > s.peak {
		s.peak = s.running
	}
	s.nextPID++
	s.argv = append(s.argv, append([]string(nil), spec.Argv...))

	code := 0
	if s.fail != nil && s.fail(spec.Argv) {
		code = 1
		fmt.Fprintf(spec.Stderr, "error: cannot process %s\n", spec.Argv[len(spec.Argv)-1])
	}
	return &fakeProcess{spawner: s, ctx: ctx, pid: 1000 + s.nextPID, code: code}, nil
}

func (s *fakeSpawner) spawned() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.argv...)
}

type fakeProcess struct {
	spawner *fakeSpawner
	ctx     context.Context
	pid     int
	code    int
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() (int, error) {
	defer func() {
		p.spawner.mu.Lock()
		p.spawner.running--
		p.spawner.mu.Unlock()
	}()

	if p.spawner.block {
		<-p.ctx.Done()
		return -1, p.ctx.Err()
	}
	select {
	case <-time.After(p.spawner.delay):
		return p.code, nil
	case <-p.ctx.Done():
		return -1, p.ctx.Err()
	}
}

type fixture struct {
	fs       afero.Fs
	ctx      *buildcontext.Context
	project  *factor.Project
	registry *build.Registry
	spawner  *fakeSpawner
	output   bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, afero.NewMemMapFs())
}

func newFixtureOn(t *testing.T, fs afero.Fs) *fixture {
	t.Helper()

	ctx, err := buildcontext.New("host", "debug", map[string]string{"c": "c h", "txt": "txt"}, map[string]mechanism.Descriptor{
		"system": {
			Variants:         map[string]string{"system": "linux"},
			Formats:          map[string]string{mechanism.DefaultKey: "pie", "library": "pic"},
			IgnoreExtensions: []string{"h"},
			Transformations: map[string]mechanism.Adapter{
				"c": {Interface: "standard-out", Command: "/usr/bin/cc", Options: []string{"-c"}},
			},
			Integrations: map[string]mechanism.Adapter{
				mechanism.DefaultKey: {Interface: "standard-out", Command: "/usr/bin/ld"},
			},
		},
		"resource": {
			Variants: map[string]string{"system": "data"},
			Transformations: map[string]mechanism.Adapter{
				mechanism.DefaultKey: {Interface: "standard-out", Method: mechanism.MethodInternal, Command: "copy"},
			},
		},
		"mirror": {
			Variants: map[string]string{"system": "data"},
			Transformations: map[string]mechanism.Adapter{
				mechanism.DefaultKey: {Interface: "transparent", Method: mechanism.MethodLink},
			},
		},
		"boom": {
			Variants: map[string]string{"system": "data"},
			Transformations: map[string]mechanism.Adapter{
				mechanism.DefaultKey: {Interface: "standard-out", Method: mechanism.MethodInternal, Command: "explode"},
			},
		},
	})
	require.NoError(t, err)

	registry := adapters.Default(fs)
	require.NoError(t, registry.RegisterCall("explode", func(context.Context, build.CallRequest) error {
		panic("boom")
	}))

	return &fixture{
		fs:       fs,
		ctx:      ctx,
		project:  factor.NewProject("demo", "/src"),
		registry: registry,
		spawner:  &fakeSpawner{delay: time.Millisecond},
	}
}

func (fx *fixture) factor(t *testing.T, path, domain, ftype string, requires []string, sources ...string) *factor.Factor {
	t.Helper()

	dir := filepath.Join("/src", path)
	f := &factor.Factor{Path: path, Domain: domain, Type: ftype, Dir: dir, Symbols: requires}
	for _, name := range sources {
		src := filepath.Join(dir, name)
		require.NoError(t, afero.WriteFile(fx.fs, src, []byte(name), 0o644))
		f.Sources = append(f.Sources, src)
	}
	require.NoError(t, fx.project.AddFactor(f))
	return f
}

func (fx *fixture) scheduler(opts engine.Options) *engine.Scheduler {
	opts.FS = fx.fs
	opts.Registry = fx.registry
	opts.Output = &fx.output
	if opts.Spawner == nil {
		opts.Spawner = fx.spawner
	}
	return engine.New(fx.project, fx.ctx, opts)
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.spawner.delay = 10 * time.Millisecond
	for i := 0; i < 8; i++ {
		fx.factor(t, fmt.Sprintf("app%d", i), "system", factor.TypeExecutable, nil, "main.c", "util.h")
	}

	collector := metrics.New()
	report, err := fx.scheduler(engine.Options{ProcessLimit: 2, Metrics: collector}).Run(context.Background())
	require.NoError(t, err)

	require.LessOrEqual(t, fx.spawner.peak, 2)
	require.Len(t, fx.spawner.spawned(), 16)
	require.Equal(t, 16, report.Exits)
	require.Zero(t, report.Failures)
	require.Zero(t, report.ExitStatus())
	require.Len(t, report.Completed, 8)
	require.Empty(t, report.Stranded)
}

func TestRunRespectsRequirementOrder(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "base", "system", factor.TypeLibrary, nil, "base.c")
	fx.factor(t, "left", "system", factor.TypeLibrary, []string{"base"}, "left.c")
	fx.factor(t, "right", "system", factor.TypeLibrary, []string{"base"}, "right.c")
	fx.factor(t, "top", "system", factor.TypeExecutable, []string{"left", "right"}, "main.c")

	var order []factor.ID
	report, err := fx.scheduler(engine.Options{
		Roots:        []factor.ID{"top"},
		ProcessLimit: 4,
		Observe: func(ev engine.Event) {
			if ev.Kind == engine.EventFactor {
				order = append(order, ev.Factor)
			}
		},
	}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, order, report.Completed)

	require.Len(t, order, 4)
	require.Equal(t, factor.ID("base"), order[0])
	require.ElementsMatch(t, []factor.ID{"left", "right"}, order[1:3])
	require.Equal(t, factor.ID("top"), order[3])

	// The executable links against the integral of each library.
	var link []string
	for _, argv := range fx.spawner.spawned() {
		if argv[0] == "/usr/bin/ld" && strings.Contains(argv[len(argv)-1], filepath.Join("top", "__f_cache__")) {
			link = argv
		}
	}
	require.NotNil(t, link)
}

func TestRunIsolatesToolFailures(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.spawner.fail = func(argv []string) bool {
		return argv[len(argv)-1] == "/src/bad/main.c"
	}
	fx.factor(t, "bad", "system", factor.TypeLibrary, nil, "main.c")
	fx.factor(t, "dependent", "system", factor.TypeExecutable, []string{"bad"}, "main.c")
	fx.factor(t, "other", "system", factor.TypeExecutable, nil, "main.c")

	report, err := fx.scheduler(engine.Options{ProcessLimit: 1}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Failures)
	require.Equal(t, 1, report.ExitStatus())
	require.Equal(t, []factor.ID{"bad"}, report.Failed)
	require.ElementsMatch(t, []factor.ID{"bad", "dependent", "other"}, report.Completed)

	require.Len(t, report.Errors, 1)
	var tool *constructerrors.ToolStageFailure
	require.True(t, errors.As(report.Errors[0], &tool))
	require.Equal(t, "bad", tool.Factor)
	require.Equal(t, 1, tool.ExitCode)
	require.Contains(t, tool.Tail, "[Standard Error]")
	require.Contains(t, tool.Tail, "error: cannot process /src/bad/main.c")

	log, err := afero.ReadFile(fx.fs, tool.Log)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(log), "[Command]\n/usr/bin/cc -c /src/bad/main.c"))
	require.Contains(t, string(log), "[Profile]\n/factor/ bad\n")
	require.Contains(t, string(log), "/status/ 1\n")

	require.Contains(t, fx.output.String(), "exited 1")
}

func TestRunRecordsCallFailures(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "data", "boom", factor.TypeExecutable, nil, "notes.txt")
	fx.factor(t, "assets", "resource", factor.TypeExecutable, nil, "notes.txt")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Failures)
	require.Equal(t, []factor.ID{"data"}, report.Failed)
	require.Len(t, report.Errors, 1)

	var callErr *constructerrors.InstructionCallError
	require.True(t, errors.As(report.Errors[0], &callErr))
	require.Equal(t, "explode", callErr.Call)
	require.Empty(t, fx.spawner.spawned())

	// The independent factor still completes.
	require.ElementsMatch(t, []factor.ID{"assets", "data"}, report.Completed)
	require.Contains(t, fx.output.String(), "call (explode) raised on factor data")
}

func TestRunRejectsUnresolvedRequirements(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "base", "system", factor.TypeLibrary, nil, "base.c")
	fx.factor(t, "top", "system", factor.TypeExecutable, []string{"base", "nosuch"}, "main.c")

	report, err := fx.scheduler(engine.Options{Roots: []factor.ID{"top"}}).Run(context.Background())
	require.Nil(t, report)

	var validation *constructerrors.ValidationError
	require.True(t, errors.As(err, &validation))
	require.Contains(t, err.Error(), `unresolved symbol "nosuch"`)
	require.Empty(t, fx.spawner.spawned())
}

func TestRunLinksSources(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	fx := newFixtureOn(t, afero.NewBasePathFs(afero.NewOsFs(), base))
	fx.factor(t, "docs", "mirror", "data", nil, "index.txt")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Failures)
	require.Equal(t, []factor.ID{"docs"}, report.Completed)
	require.Empty(t, fx.spawner.spawned())

	var links []string
	require.NoError(t, filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.Type()&os.ModeSymlink != 0 {
			links = append(links, path)
		}
		return err
	}))
	require.Len(t, links, 1)
	require.Equal(t, "index.txt", filepath.Base(links[0]))

	target, err := os.Readlink(links[0])
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "src", "docs", "index.txt"), target)

	// The link carries the source's modification time.
	report, err = fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []factor.ID{"docs"}, report.Inert)
}

func TestRunCountsSetupFailures(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "docs", "mirror", "data", nil, "index.txt")
	fx.factor(t, "app", "system", factor.TypeExecutable, nil, "main.c")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Failures)
	require.Equal(t, []factor.ID{"docs"}, report.Failed)
	require.ElementsMatch(t, []factor.ID{"app", "docs"}, report.Completed)

	var setup *constructerrors.SetupError
	require.Len(t, report.Errors, 1)
	require.True(t, errors.As(report.Errors[0], &setup))
	require.Equal(t, "link", setup.Kind)
	require.Contains(t, setup.Error(), "cannot create links")
	require.Contains(t, fx.output.String(), "link ")
}

func TestRunSkipsMissingMechanism(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "legacy", "cobol", factor.TypeLibrary, nil, "main.cbl")
	fx.factor(t, "app", "system", factor.TypeExecutable, []string{"legacy"}, "main.c")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, report.Failures)
	require.Equal(t, []factor.ID{"legacy"}, report.Skipped)
	require.Equal(t, []factor.ID{"legacy", "app"}, report.Completed)

	var missing *constructerrors.MissingMechanismError
	require.Len(t, report.Errors, 1)
	require.True(t, errors.As(report.Errors[0], &missing))
}

func TestRunSecondPassIsInert(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "assets", "resource", factor.TypeExecutable, nil, "a.txt", "b.txt")

	first, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, first.Inert)
	require.Zero(t, first.Failures)

	second, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []factor.ID{"assets"}, second.Inert)

	forced, err := fx.scheduler(engine.Options{Rebuild: 1}).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, forced.Inert)
}

func TestRunCompletesSystemFactors(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.project.DefineSymbol("libc", factor.SymbolTree{
		"system": {"library": {"/usr/lib": {"c"}}},
	})
	fx.factor(t, "app", "system", factor.TypeExecutable, []string{"libc"}, "main.c")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Completed, 2)
	require.Equal(t, factor.ID("app"), report.Completed[1])
}

func TestRunRejectsCycles(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.factor(t, "a", "system", factor.TypeLibrary, []string{"b"}, "a.c")
	fx.factor(t, "b", "system", factor.TypeLibrary, []string{"a"}, "b.c")

	report, err := fx.scheduler(engine.Options{}).Run(context.Background())
	require.Nil(t, report)
	var cycle *constructerrors.CycleError
	require.True(t, errors.As(err, &cycle))
	require.Empty(t, fx.spawner.spawned())
}

func TestRunCancellationWaitsForProcesses(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.spawner.block = true
	fx.factor(t, "app", "system", factor.TypeExecutable, nil, "main.c")
	fx.factor(t, "lib", "system", factor.TypeLibrary, nil, "lib.c")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := fx.scheduler(engine.Options{
		ProcessLimit: 1,
		Observe: func(ev engine.Event) {
			if ev.Kind == engine.EventSpawn {
				cancel()
			}
		},
	}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	require.Len(t, fx.spawner.spawned(), 1)
	require.Equal(t, 1, report.Exits)
	require.Zero(t, fx.spawner.running)
}

func TestRunTimesOutProcesses(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.spawner.block = true
	fx.factor(t, "app", "system", factor.TypeExecutable, nil, "main.c")

	report, err := fx.scheduler(engine.Options{Timeout: 10 * time.Millisecond}).Run(context.Background())
	require.NoError(t, err)

	// Both the transformation and the integration time out.
	require.Equal(t, 2, report.Failures)
	require.ErrorIs(t, report.Errors[0], context.DeadlineExceeded)
}

func TestExitStatusIsClamped(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, engine.ExitStatus(0))
	require.Equal(t, 7, engine.ExitStatus(7))
	require.Equal(t, engine.MaxExitStatus, engine.ExitStatus(201))
	require.Equal(t, engine.MaxExitStatus, engine.ExitStatus(5000))
	require.Zero(t, (*engine.Report)(nil).ExitStatus())
}
