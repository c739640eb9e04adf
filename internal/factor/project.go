package factor

import (
	"fmt"
	"sort"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// SymbolTree defines system factors as domain -> type -> integral directory -> names.
// An empty integral key declares names without a known location.
type SymbolTree map[string]map[string]map[string][]string

// Collect expands the tree into system factors in a stable order.
func (t SymbolTree) Collect() []*SystemFactor {
	var out []*SystemFactor
	for _, domain := range sortedKeys(t) {
		types := t[domain]
		for _, ftype := range sortedKeys(types) {
			integrals := types[ftype]
			for _, integral := range sortedKeys(integrals) {
				for _, name := range integrals[integral] {
					out = append(out, &SystemFactor{
						Domain:   domain,
						Type:     ftype,
						Integral: integral,
						Name:     name,
					})
				}
			}
		}
	}
	return out
}

// Project holds the factors of one build invocation and the symbol table used
// to resolve their requirements.
type Project struct {
	Name     string
	Root     string
	Revision string

	factors map[ID]*Factor
	systems map[ID]*SystemFactor
	symbols map[string][]ID
}

// NewProject creates an empty project rooted at root.
func NewProject(name, root string) *Project {
	return &Project{
		Name:    name,
		Root:    root,
		factors: make(map[ID]*Factor),
		systems: make(map[ID]*SystemFactor),
		symbols: make(map[string][]ID),
	}
}

// AddFactor registers a factor. Factor paths must be unique.
func (p *Project) AddFactor(f *Factor) error {
	if f == nil {
		return constructerrors.NewValidationError("factors", "factor cannot be nil", nil)
	}
	if _, exists := p.factors[f.ID()]; exists {
		return constructerrors.NewValidationError("factors", fmt.Sprintf("duplicate factor path %q", f.Path), nil)
	}
	f.Project = p
	p.factors[f.ID()] = f
	return nil
}

// DefineSymbol binds a symbol to the system factors described by tree.
// Redefinition replaces the previous binding.
func (p *Project) DefineSymbol(symbol string, tree SymbolTree) {
	ids := make([]ID, 0)
	for _, sf := range tree.Collect() {
		id := sf.ID()
		p.systems[id] = sf
		ids = append(ids, id)
	}
	p.symbols[symbol] = ids
}

// HasSymbol reports whether symbol resolves against the symbol table.
func (p *Project) HasSymbol(symbol string) bool {
	_, ok := p.symbols[symbol]
	return ok
}

// Node returns the graph node registered under id.
func (p *Project) Node(id ID) (Node, bool) {
	if f, ok := p.factors[id]; ok {
		return f, true
	}
	if sf, ok := p.systems[id]; ok {
		return sf, true
	}
	return nil, false
}

// Factor returns the project factor registered under id.
func (p *Project) Factor(id ID) (*Factor, bool) {
	f, ok := p.factors[id]
	return f, ok
}

// Factors returns every project factor ordered by path.
func (p *Project) Factors() []*Factor {
	out := make([]*Factor, 0, len(p.factors))
	for _, f := range p.factors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IDs returns every project factor id ordered by path.
func (p *Project) IDs() []ID {
	factors := p.Factors()
	out := make([]ID, len(factors))
	for i, f := range factors {
		out[i] = f.ID()
	}
	return out
}

// Requirements resolves the symbols of the node into graph nodes. Symbols are
// looked up in the symbol table first, then among project factor paths.
// System factors have no requirements.
func (p *Project) Requirements(id ID) ([]ID, error) {
	f, ok := p.factors[id]
	if !ok {
		return nil, nil
	}

	seen := make(map[ID]struct{}, len(f.Symbols))
	var out []ID
	add := func(dep ID) {
		if _, dup := seen[dep]; dup {
			return
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}

	for _, sym := range f.Symbols {
		if ids, ok := p.symbols[sym]; ok {
			for _, dep := range ids {
				add(dep)
			}
			continue
		}
		if _, ok := p.factors[ID(sym)]; ok {
			add(ID(sym))
			continue
		}
		return nil, constructerrors.NewValidationError(
			fmt.Sprintf("factors[%s].requires", f.Path),
			fmt.Sprintf("unresolved symbol %q", sym),
			nil,
		)
	}
	return out, nil
}

// Descend adapts Requirements for graph traversal. Unresolvable symbols are
// dropped; call Validate beforehand to surface them.
func (p *Project) Descend(id ID) []ID {
	deps, err := p.Requirements(id)
	if err != nil {
		return nil
	}
	return deps
}

// Validate checks that every factor requirement resolves.
func (p *Project) Validate() error {
	for _, f := range p.Factors() {
		if _, err := p.Requirements(f.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Group organizes nodes by their (domain, type) pair.
func (p *Project) Group(ids []ID) map[Pair][]Node {
	out := make(map[Pair][]Node)
	for _, id := range ids {
		node, ok := p.Node(id)
		if !ok {
			continue
		}
		out[node.Pair()] = append(out[node.Pair()], node)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
