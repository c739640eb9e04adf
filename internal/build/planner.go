package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/instruction"
	"github.com/alexisbeaulieu97/construct/internal/logger"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	"github.com/alexisbeaulieu97/construct/internal/staleness"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// IntentionFragments transforms every source, including those normally ignored.
const IntentionFragments = "fragments"

// IntegrationLog is the log file name of the integration step.
const IntegrationLog = "Integration.log"

// Steps are the instruction batches of one build, in execution order.
type Steps struct {
	Prepare   instruction.Batch
	Transform instruction.Batch
	Integrate instruction.Batch
}

// Batches returns the non-empty batches in execution order.
func (s Steps) Batches() []instruction.Batch {
	var out []instruction.Batch
	for _, b := range []instruction.Batch{s.Prepare, s.Transform, s.Integrate} {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Changed reports whether the build does more than filesystem setup.
func (s Steps) Changed() bool {
	return !s.Transform.Trivial() || !s.Integrate.Trivial()
}

// Planner generates the instructions of builds.
type Planner struct {
	fs       afero.Fs
	registry *Registry
	log      *logger.Logger
}

// NewPlanner creates a planner resolving adapters against registry.
func NewPlanner(fs afero.Fs, registry *Registry, log *logger.Logger) *Planner {
	if log == nil {
		log = logger.Nop()
	}
	return &Planner{fs: fs, registry: registry, log: log}
}

// Builds expands a factor into one build per format it must be produced in.
func (p *Planner) Builds(ctx *buildcontext.Context, sel buildcontext.Selection, f *factor.Factor, reqs map[factor.Pair][]factor.Node, dependents []factor.Node) []*Build {
	mech := sel.Mechanism
	depTypes := make([]string, 0, len(dependents))
	for _, d := range dependents {
		depTypes = append(depTypes, d.Pair().Type)
	}

	var builds []*Build
	for _, format := range mech.Formats(f.Type, depTypes) {
		variants := make(map[string]string, len(sel.Variants)+len(f.Variants)+2)
		for k, v := range sel.Variants {
			variants[k] = v
		}
		for k, v := range f.Variants {
			variants[k] = v
		}
		variants["name"] = f.Name()
		variants["format"] = format

		locations := Locate(f, variants, mech.Suffix(f.Type))
		if !mech.Integrates() {
			// The transformed set is the integral.
			locations.Output = locations.Integral
		}

		builds = append(builds, &Build{
			Context:      ctx,
			Mechanism:    mech,
			Factor:       f,
			Requirements: reqs,
			Dependents:   dependents,
			Variants:     variants,
			Locations:    locations,
			Parameters:   SourceParameters(f, variants, ctx.Intention()),
		})
	}
	return builds
}

// Plan generates the steps of a build. Transformations are filtered by
// filter. When the transformations do real work, or force is set, the
// integration is always emitted.
func (p *Planner) Plan(b *Build, filter staleness.Filter, force bool) (Steps, error) {
	var steps Steps

	xf, err := p.Transform(b, filter)
	if err != nil {
		return Steps{}, err
	}
	steps.Transform = xf

	integrationFilter := filter
	if force || !xf.Trivial() {
		integrationFilter = staleness.Always
	}

	fi, err := p.Integrate(b, p.transformAdapters(b), integrationFilter)
	if err != nil {
		return Steps{}, err
	}
	steps.Integrate = fi

	if len(xf) > 0 || len(fi) > 0 {
		steps.Prepare = p.Prepare(b)
	}
	return steps, nil
}

// Prepare emits the directories the build writes into that do not exist yet.
func (p *Planner) Prepare(b *Build) instruction.Batch {
	loc := b.Locations
	dirs := map[string]struct{}{
		filepath.Dir(loc.Integral): {},
		loc.Output:                 {},
		loc.Log:                    {},
	}
	for _, src := range b.Factor.Sources {
		point := b.Factor.SourcePoint(src)
		dirs[filepath.Dir(filepath.Join(loc.Output, point))] = struct{}{}
		dirs[filepath.Dir(filepath.Join(loc.Log, point))] = struct{}{}
	}

	paths := make([]string, 0, len(dirs))
	for dir := range dirs {
		if exists, _ := afero.DirExists(p.fs, dir); exists {
			continue
		}
		paths = append(paths, dir)
	}
	sort.Strings(paths)

	batch := make(instruction.Batch, 0, len(paths))
	for _, dir := range paths {
		batch = append(batch, instruction.Instruction{
			Factor: b.Factor.ID(),
			Kind:   instruction.Directory,
			Output: dir,
		})
	}
	return batch
}

func (p *Planner) ignored(b *Build, src string) bool {
	if strings.HasPrefix(filepath.Base(src), ".") {
		return true
	}
	return b.Context.Intention() != IntentionFragments && b.Mechanism.Descriptor.Ignores(extension(src))
}

// Transform emits one instruction per out of date source.
func (p *Planner) Transform(b *Build, filter staleness.Filter) (instruction.Batch, error) {
	f := b.Factor
	loc := b.Locations

	var batch instruction.Batch
	for _, src := range f.Sources {
		if p.ignored(b, src) {
			continue
		}

		point := f.SourcePoint(src)
		obj := filepath.Join(loc.Output, point)
		if filter([]string{obj}, []string{src}) {
			continue
		}

		language := b.Context.Language(extension(src))
		adapter, ok := b.Mechanism.Adaption(mechanism.PhaseTransformations, language)
		if !ok || adapter.Interface == "" {
			p.log.WithFactor(f.Path).WithFields(map[string]any{
				"language": language,
				"source":   point,
			}).Debug("no interface for transformation")
			continue
		}

		argv, err := p.construct(adapter, Request{
			Build:      b,
			Adapter:    adapter,
			OutputType: b.Format(),
			Output:     obj,
			InputType:  language,
			Inputs:     []string{src},
		})
		if errors.Is(err, ErrDisabled) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ins, err := p.formulate(f, obj, []string{src}, filepath.Join(loc.Log, point), adapter, argv)
		if err != nil {
			return nil, err
		}
		batch = append(batch, ins)
	}
	return batch, nil
}

// Integrate emits the instruction reducing transformed sources into the
// integral. Nothing is emitted for mechanisms without integrations, or when
// filter reports the integral as current.
func (p *Planner) Integrate(b *Build, transformations map[string]mechanism.Adapter, filter staleness.Filter) (instruction.Batch, error) {
	f := b.Factor
	loc := b.Locations
	format := b.Format()
	if format == "" || !b.Mechanism.Integrates() {
		return nil, nil
	}

	var objects []string
	for _, src := range f.Sources {
		if strings.HasPrefix(filepath.Base(src), ".") || b.Mechanism.Descriptor.Ignores(extension(src)) {
			continue
		}
		objects = append(objects, filepath.Join(loc.Output, f.SourcePoint(src)))
	}
	sort.Strings(objects)

	partials := b.Required(f.Domain, factor.TypePartial)
	inputs := append([]string(nil), objects...)
	for _, r := range partials {
		if _, isFactor := r.Node.(*factor.Factor); isFactor && r.Path != "" {
			inputs = append(inputs, r.Path)
		}
	}
	if filter([]string{loc.Integral}, inputs) {
		return nil, nil
	}

	adapter, ok := b.Mechanism.Adaption(mechanism.PhaseIntegrations, f.Type)
	if !ok || adapter.Interface == "" {
		return nil, constructerrors.NewAdapterError(f.Type, fmt.Errorf("no integration adapter for factor type %q", f.Type))
	}

	// A configured root is the single object referencing the others.
	if adapter.Root != "" {
		objects = []string{filepath.Join(loc.Output, adapter.Root)}
	}

	argv, err := p.construct(adapter, Request{
		Build:           b,
		Adapter:         adapter,
		OutputType:      f.Type,
		Output:          loc.Integral,
		InputType:       format,
		Inputs:          objects,
		Partials:        partials,
		Libraries:       b.Required(f.Domain, factor.TypeLibrary),
		Transformations: transformations,
	})
	if errors.Is(err, ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ins, err := p.formulate(f, loc.Integral, objects, filepath.Join(loc.Log, IntegrationLog), adapter, argv)
	if err != nil {
		return nil, err
	}
	return instruction.Batch{ins}, nil
}

// transformAdapters collects the adapters used per source language.
func (p *Planner) transformAdapters(b *Build) map[string]mechanism.Adapter {
	out := make(map[string]mechanism.Adapter)
	for _, src := range b.Factor.Sources {
		language := b.Context.Language(extension(src))
		if _, seen := out[language]; seen {
			continue
		}
		if adapter, ok := b.Mechanism.Adaption(mechanism.PhaseTransformations, language); ok {
			out[language] = adapter
		}
	}
	return out
}

func (p *Planner) construct(adapter mechanism.Adapter, req Request) ([]string, error) {
	ctor, ok := p.registry.Constructor(adapter.Interface)
	if !ok {
		return nil, constructerrors.NewAdapterError(adapter.Interface, fmt.Errorf("no constructor registered"))
	}
	argv, err := ctor(req)
	if err != nil {
		return nil, constructerrors.NewAdapterError(adapter.Interface, err)
	}
	return argv, nil
}

// formulate converts a constructed argument vector into an instruction
// according to the adapter's method and redirect.
func (p *Planner) formulate(f *factor.Factor, output string, sources []string, log string, adapter mechanism.Adapter, argv []string) (instruction.Instruction, error) {
	ins := instruction.Instruction{
		Factor:  f.ID(),
		Log:     log,
		Sources: sources,
		Output:  output,
	}

	if adapter.Method == mechanism.MethodLink {
		if len(sources) != 1 {
			return instruction.Instruction{}, constructerrors.NewAdapterError(adapter.Interface, fmt.Errorf("link method expects one input, got %d", len(sources)))
		}
		ins.Kind = instruction.Link
		return ins, nil
	}

	if adapter.Method == mechanism.MethodInternal {
		fn, ok := p.registry.Call(adapter.Command)
		if !ok {
			return instruction.Instruction{}, constructerrors.NewAdapterError(adapter.Interface, fmt.Errorf("no internal call %q registered", adapter.Command))
		}
		ins.Kind = instruction.Call
		ins.Name = adapter.Command
		ins.Argv = argv
		req := CallRequest{Argv: argv, Sources: sources, Output: output, Log: log}
		ins.Func = func(ctx context.Context) error { return fn(ctx, req) }
		return ins, nil
	}

	var rest []string
	if len(argv) > 0 {
		rest = argv[1:]
	}
	head := adapter.Command
	if len(argv) > 0 && argv[0] != "" {
		head = argv[0]
	}

	var cmd []string
	if adapter.Method == mechanism.MethodInterpreter {
		cmd = append(cmd, adapter.Interpreter, adapter.Command)
	} else {
		cmd = append(cmd, head)
	}
	cmd = append(cmd, adapter.Options...)
	cmd = append(cmd, rest...)
	ins.Argv = cmd

	switch {
	case adapter.Redirect == mechanism.RedirectIO:
		ins.Kind = instruction.ExecuteStdio
	case adapter.Redirect != "":
		ins.Kind = instruction.ExecuteRedirection
	default:
		ins.Kind = instruction.Execute
	}
	return ins, nil
}

func extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
