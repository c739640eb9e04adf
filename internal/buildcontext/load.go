package buildcontext

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// Directory layout of a context.
const (
	MechanismsDir = "mechanisms"
	SymbolsDir    = "symbols"
	LibraryDir    = "lib"
	IncludeDir    = "include"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// document is one layer of a context. Layers merge in file name order.
type document struct {
	Context    contextSection                   `yaml:"context,omitempty" toml:"context,omitempty"`
	Syntax     syntaxSection                    `yaml:"syntax,omitempty" toml:"syntax,omitempty"`
	Mechanisms map[string]mechanism.Descriptor `yaml:"mechanisms,omitempty" toml:"mechanisms,omitempty"`
}

type contextSection struct {
	Name      string `yaml:"name,omitempty" toml:"name,omitempty"`
	Intention string `yaml:"intention,omitempty" toml:"intention,omitempty"`
}

type syntaxSection struct {
	// TargetFileExtensions maps a language to a space separated extension list.
	TargetFileExtensions map[string]string `yaml:"target-file-extensions,omitempty" toml:"target-file-extensions,omitempty"`
}

// LoadOptions adjusts a loaded context.
type LoadOptions struct {
	// Intention overrides the intention declared by the descriptors.
	Intention string
	// SymbolPaths are additional symbol directories consulted after the
	// context's own; later definitions replace earlier ones.
	SymbolPaths []string
}

// Load reads the context rooted at dir. Descriptor files are decoded
// concurrently and merged in file name order.
func Load(ctx context.Context, fs afero.Fs, dir string, opts LoadOptions) (*Context, error) {
	files, err := descriptorFiles(fs, filepath.Join(dir, MechanismsDir))
	if err != nil {
		return nil, err
	}

	layers := make([]document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := decodeDocument(fs, path)
			if err != nil {
				return err
			}
			layers[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := newContext(dir)
	for _, layer := range layers {
		c.apply(layer)
	}
	if opts.Intention != "" {
		c.intention = opts.Intention
	}
	if c.intention == "" {
		c.intention = DefaultIntention
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	symbolDirs := append([]string{filepath.Join(dir, SymbolsDir)}, opts.SymbolPaths...)
	for _, sd := range symbolDirs {
		if err := c.loadSymbols(fs, sd); err != nil {
			return nil, err
		}
	}

	for _, sub := range []struct {
		name   string
		target *string
	}{
		{LibraryDir, &c.libraryDir},
		{IncludeDir, &c.includeDir},
	} {
		path := filepath.Join(dir, sub.name)
		if ok, _ := afero.DirExists(fs, path); ok {
			*sub.target = path
		}
	}

	return c, nil
}

func descriptorFiles(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, constructerrors.NewParseError(dir, 0, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".toml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func decodeDocument(fs afero.Fs, path string) (document, error) {
	var doc document
	if err := decodeFile(fs, path, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

func decodeFile(fs afero.Fs, path string, out any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return constructerrors.NewParseError(path, 0, err)
	}

	if filepath.Ext(path) == ".toml" {
		if err := toml.Unmarshal(data, out); err != nil {
			line := 0
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				line, _ = derr.Position()
			}
			return constructerrors.NewParseError(path, line, err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return constructerrors.NewParseError(path, extractLine(err), err)
	}
	return nil
}

func (c *Context) loadSymbols(fs afero.Fs, dir string) error {
	ok, err := afero.DirExists(fs, dir)
	if err != nil || !ok {
		return nil
	}

	files, err := descriptorFiles(fs, dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		var tree factor.SymbolTree
		if err := decodeFile(fs, path, &tree); err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		c.symbols[name] = tree
	}
	return nil
}

func extractLine(err error) int {
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
