package config

import (
	"path/filepath"
	"strings"
)

// ManifestName is the file describing the factors of a project.
const ManifestName = "project.yaml"

// Manifest represents a project.yaml document.
type Manifest struct {
	Name     string `yaml:"name" validate:"required,min=1,max=100"`
	Revision string `yaml:"revision,omitempty"`
	// Context is the build context directory, relative to the manifest.
	Context string       `yaml:"context,omitempty"`
	Factors []FactorSpec `yaml:"factors" validate:"required,min=1,dive"`
}

// FactorSpec declares one factor of the project.
type FactorSpec struct {
	Path   string `yaml:"path" validate:"required,factor_path"`
	Domain string `yaml:"domain" validate:"required,domain"`
	Type   string `yaml:"type" validate:"required,domain"`
	// Dir is the factor directory relative to the manifest. It defaults to
	// the factor path with dots replaced by separators.
	Dir      string            `yaml:"dir,omitempty"`
	Requires []string          `yaml:"requires,omitempty" validate:"omitempty,dive,required"`
	Sources  []string          `yaml:"sources,omitempty" validate:"omitempty,dive,required"`
	Variants map[string]string `yaml:"variants,omitempty"`
}

// Directory resolves the factor directory under root.
func (f FactorSpec) Directory(root string) string {
	dir := f.Dir
	if dir == "" {
		dir = strings.ReplaceAll(f.Path, ".", string(filepath.Separator))
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// SourcePatterns returns the configured source globs, or every file of the
// factor directory when none are set.
func (f FactorSpec) SourcePatterns() []string {
	if len(f.Sources) == 0 {
		return []string{"*"}
	}
	return f.Sources
}
