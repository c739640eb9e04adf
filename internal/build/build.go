// Package build turns a selected factor into the instructions that produce
// its integral.
package build

import (
	"encoding/hex"
	"hash/fnv"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/construct/internal/buildcontext"
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/mechanism"
)

// Directory names used inside a factor directory.
const (
	CacheDir    = "__f_cache__"
	IntegralDir = "__f-int__"
)

// Parameter is a source define describing the factor being built.
type Parameter struct {
	Name  string
	Value string
}

// Locations are the filesystem paths of one (factor, variant) build.
type Locations struct {
	// Key is the sorted variant list the work directory is derived from.
	Key       string
	Work      string
	Log       string
	Output    string
	Libraries string
	Sources   string
	Integral  string
}

// Build carries everything an adapter needs to emit commands for one
// (factor, variant) combination.
type Build struct {
	Context      *buildcontext.Context
	Mechanism    *mechanism.Mechanism
	Factor       *factor.Factor
	Requirements map[factor.Pair][]factor.Node
	Dependents   []factor.Node
	Variants     map[string]string
	Locations    Locations
	Parameters   []Parameter
}

// Format is the output encoding of the build.
func (b *Build) Format() string {
	return b.Variants["format"]
}

// Requirement is a resolved dependency of a build.
type Requirement struct {
	Node factor.Node
	Name string
	// Path is the integral of a factor, or the directory of a system factor.
	Path string
}

// Required resolves the requirements of the given pair to their integrals.
func (b *Build) Required(domain, ftype string) []Requirement {
	nodes := b.Requirements[factor.Pair{Domain: domain, Type: ftype}]
	out := make([]Requirement, 0, len(nodes))
	for _, node := range nodes {
		switch n := node.(type) {
		case *factor.SystemFactor:
			out = append(out, Requirement{Node: n, Name: n.Name, Path: n.Integral})
		case *factor.Factor:
			out = append(out, Requirement{Node: n, Name: n.Name(), Path: b.integralOf(n)})
		}
	}
	return out
}

func (b *Build) integralOf(f *factor.Factor) string {
	if b.Context == nil {
		return ""
	}
	sel, ok := b.Context.Select(f.Domain)
	if !ok {
		return ""
	}
	variants := sel.Variants
	variants["name"] = f.Name()
	variants["format"] = sel.Mechanism.Formats(f.Type, []string{b.Factor.Type})[0]
	return Locate(f, variants, sel.Mechanism.Suffix(f.Type)).Integral
}

// VariantKey renders variants as a sorted "k=v;k=v" list.
func VariantKey(variants map[string]string) string {
	keys := make([]string, 0, len(variants))
	for k := range variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + variants[k]
	}
	return strings.Join(parts, ";")
}

// Locate derives the work directory and integral of a factor for variants.
// Work directories are addressed by a hash of the variant key.
func Locate(f *factor.Factor, variants map[string]string, suffix string) Locations {
	key := VariantKey(variants)
	sum := fnv.New64a()
	_, _ = sum.Write([]byte(key))
	digest := hex.EncodeToString(sum.Sum(nil))

	work := filepath.Join(f.Dir, CacheDir, digest[:2], digest)

	system := variants["system"]
	if system == "" {
		system = "void"
	}
	group := system
	if arch := variants["architecture"]; arch != "" {
		group += "-" + arch
	}
	name := f.Name()
	if f.Type == factor.TypePartial && variants["format"] != "" {
		name += "." + variants["format"]
	}

	return Locations{
		Key:       key,
		Work:      work,
		Log:       filepath.Join(work, "log"),
		Output:    filepath.Join(work, "xfd"),
		Libraries: filepath.Join(work, "lib"),
		Sources:   filepath.Join(work, "src"),
		Integral:  filepath.Join(filepath.Dir(f.Dir), IntegralDir, group, name+suffix),
	}
}

// SourceParameters are the defines describing the factor to its sources.
func SourceParameters(f *factor.Factor, variants map[string]string, intention string) []Parameter {
	system := variants["system"]
	if system == "" {
		system = "void"
	}
	params := []Parameter{
		{Name: "F_SYSTEM", Value: system},
		{Name: "F_INTENTION", Value: intention},
		{Name: "F_FACTOR_DOMAIN", Value: f.Domain},
		{Name: "F_FACTOR_TYPE", Value: f.Type},
		{Name: "FACTOR_QNAME", Value: f.QualifiedName()},
		{Name: "FACTOR_BASENAME", Value: f.Name()},
		{Name: "FACTOR_PACKAGE", Value: f.Package()},
	}
	if f.Project != nil {
		params = append(params, Parameter{Name: "FACTOR_PROJECT", Value: f.Project.Name})
		if f.Project.Revision != "" {
			params = append(params, Parameter{Name: "FACTOR_REVISION", Value: f.Project.Revision})
		}
	}
	return params
}
