package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/config"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/revision"
	"github.com/alexisbeaulieu97/construct/internal/settings"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// session bundles the inputs resolved for one invocation.
type session struct {
	settings settings.Settings
	fs       afero.Fs
	root     string
	manifest *config.Manifest
	project  *factor.Project
	context  *buildcontext.Context
}

// settingsDir is where the settings file is looked up.
var settingsDir = "."

func loadSettings(cmd *cobra.Command) (settings.Settings, error) {
	v, err := settings.New(cmd.Flags(), settingsDir)
	if err != nil {
		return settings.Settings{}, err
	}
	return settings.Load(v)
}

// openManifest reads the manifest named by the settings.
func openManifest(fs afero.Fs, s settings.Settings) (*config.Manifest, string, error) {
	path, err := filepath.Abs(s.Manifest)
	if err != nil {
		return nil, "", fmt.Errorf("resolve manifest path: %w", err)
	}
	m, err := config.ParseManifest(fs, path)
	if err != nil {
		return nil, "", err
	}
	return m, filepath.Dir(path), nil
}

// contextDir picks the --context setting over the manifest's context.
func contextDir(s settings.Settings, m *config.Manifest, root string) (string, error) {
	if s.Context != "" {
		return filepath.Abs(s.Context)
	}
	if m != nil {
		if dir := m.ContextDir(root); dir != "" {
			return dir, nil
		}
	}
	return "", constructerrors.NewValidationError("context", "no build context: set --context or the manifest's context", nil)
}

func loadContext(ctx context.Context, fs afero.Fs, s settings.Settings, dir string) (*buildcontext.Context, error) {
	return buildcontext.Load(ctx, fs, dir, buildcontext.LoadOptions{
		Intention:   s.Intention,
		SymbolPaths: s.Symbols,
	})
}

// openSession resolves the settings, the project and its build context.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	m, root, err := openManifest(fs, s)
	if err != nil {
		return nil, err
	}

	p, err := m.Project(fs, root)
	if err != nil {
		return nil, err
	}
	if p.Revision == "" {
		info, err := revision.Head(root)
		if err != nil {
			return nil, err
		}
		p.Revision = info.Short()
	}

	dir, err := contextDir(s, m, root)
	if err != nil {
		return nil, err
	}
	bctx, err := loadContext(ctx, fs, s, dir)
	if err != nil {
		return nil, err
	}

	bctx.DefineSymbols(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &session{
		settings: s,
		fs:       fs,
		root:     root,
		manifest: m,
		project:  p,
		context:  bctx,
	}, nil
}

// roots converts command arguments into factor ids. No arguments selects
// every factor of the project.
func (s *session) roots(args []string) ([]factor.ID, error) {
	if len(args) == 0 {
		return s.project.IDs(), nil
	}
	ids := make([]factor.ID, 0, len(args))
	for _, arg := range args {
		id := factor.ID(arg)
		if _, ok := s.project.Factor(id); !ok {
			return nil, constructerrors.NewValidationError("factor", fmt.Sprintf("unknown factor %q", arg), nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// sourceDirs lists the directories holding factor sources and the context.
func (s *session) sourceDirs() []string {
	seen := make(map[string]struct{})
	var dirs []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	for _, f := range s.project.Factors() {
		add(f.Dir)
	}
	add(s.context.Root())
	return dirs
}
