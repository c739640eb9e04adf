package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/alexisbeaulieu97/construct/internal/build"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// Project converts the manifest into a factor project rooted at root. Source
// patterns are expanded against fs; matched directories contribute every
// file below them except build state and dotfiles.
func (m *Manifest) Project(fs afero.Fs, root string) (*factor.Project, error) {
	p := factor.NewProject(m.Name, root)
	p.Revision = m.Revision

	for i, spec := range m.Factors {
		dir := spec.Directory(root)
		sources, err := expandSources(fs, dir, spec.SourcePatterns())
		if err != nil {
			return nil, constructerrors.NewValidationError(fieldForFactor(i, "sources"), err.Error(), err)
		}

		f := &factor.Factor{
			Path:     spec.Path,
			Domain:   spec.Domain,
			Type:     spec.Type,
			Symbols:  append([]string(nil), spec.Requires...),
			Sources:  sources,
			Dir:      dir,
			Variants: spec.Variants,
		}
		if err := p.AddFactor(f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ContextDir resolves the build context directory declared by the manifest.
func (m *Manifest) ContextDir(root string) string {
	if m.Context == "" {
		return ""
	}
	if filepath.IsAbs(m.Context) {
		return m.Context
	}
	return filepath.Join(root, m.Context)
}

func expandSources(fs afero.Fs, dir string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(path string) {
		seen[path] = struct{}{}
	}

	for _, pattern := range patterns {
		if filepath.IsAbs(pattern) {
			return nil, fmt.Errorf("source pattern %q must be relative to the factor directory", pattern)
		}
		matches, err := afero.Glob(fs, filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if skipped(filepath.Base(match)) {
				continue
			}
			info, err := fs.Stat(match)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(match)
				continue
			}
			if err := collectDir(fs, match, add); err != nil {
				return nil, err
			}
		}
	}

	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func collectDir(fs afero.Fs, dir string, add func(string)) error {
	return afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && skipped(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			add(path)
		}
		return nil
	})
}

// skipped reports whether a directory entry is build state or hidden.
func skipped(name string) bool {
	return strings.HasPrefix(name, ".") || name == build.CacheDir || name == build.IntegralDir
}
