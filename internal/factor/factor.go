// Package factor models build units and the project symbol table used to
// resolve their requirements.
package factor

import (
	"path/filepath"
	"strings"
)

// ID is the stable identity of a node in the factor graph.
type ID string

// Common factor types.
const (
	TypeExecutable = "executable"
	TypeLibrary    = "library"
	TypeExtension  = "extension"
	TypePartial    = "partial"
)

// Pair groups factors by domain and type.
type Pair struct {
	Domain string
	Type   string
}

func (p Pair) String() string {
	return p.Domain + "." + p.Type
}

// Node is implemented by every member of the factor graph.
type Node interface {
	ID() ID
	Pair() Pair
}

// Factor is a source-bearing build unit. It is immutable for the duration of a build.
type Factor struct {
	// Path is the project-relative dotted route, e.g. "lib.core".
	Path    string
	Domain  string
	Type    string
	Symbols []string
	Sources []string
	// Dir is the absolute factor directory; sources are addressed relative to it.
	Dir      string
	Variants map[string]string
	Project  *Project
}

// ID returns the factor path.
func (f *Factor) ID() ID { return ID(f.Path) }

// Pair returns the factor's (domain, type).
func (f *Factor) Pair() Pair { return Pair{Domain: f.Domain, Type: f.Type} }

// Name is the final segment of the factor path.
func (f *Factor) Name() string {
	if i := strings.LastIndexByte(f.Path, '.'); i >= 0 {
		return f.Path[i+1:]
	}
	return f.Path
}

// Package is the factor path without its final segment.
func (f *Factor) Package() string {
	if i := strings.LastIndexByte(f.Path, '.'); i >= 0 {
		return f.Path[:i]
	}
	return ""
}

// QualifiedName prefixes the factor path with the project name.
func (f *Factor) QualifiedName() string {
	if f.Project == nil || f.Project.Name == "" {
		return f.Path
	}
	return f.Project.Name + "." + f.Path
}

// SourcePoint returns the source path relative to the factor directory.
// Sources outside of the directory are addressed by base name.
func (f *Factor) SourcePoint(source string) string {
	if f.Dir != "" {
		if rel, err := filepath.Rel(f.Dir, source); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(source)
}

func (f *Factor) String() string {
	return "(" + f.Domain + "." + f.Type + ") " + f.Path
}

// SystemFactor is an already-built external artifact. It has no requirements
// and the scheduler treats it as instantly complete.
type SystemFactor struct {
	Domain   string
	Type     string
	Name     string
	Integral string
}

// ID identifies the system factor by its pair and name.
func (s *SystemFactor) ID() ID {
	return ID("system:" + s.Domain + "/" + s.Type + "/" + s.Name + "@" + s.Integral)
}

// Pair returns the system factor's (domain, type).
func (s *SystemFactor) Pair() Pair { return Pair{Domain: s.Domain, Type: s.Type} }

func (s *SystemFactor) String() string {
	return "(" + s.Domain + "." + s.Type + ") " + s.Name
}
