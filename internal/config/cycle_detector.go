package config

import (
	"github.com/alexisbeaulieu97/construct/internal/factor"
	"github.com/alexisbeaulieu97/construct/internal/graph"
)

// detectCycle returns the factor paths participating in a requirement cycle
// between project factors, or nil if there is none. Requirements naming
// context symbols are not part of the graph.
func detectCycle(factors []FactorSpec) []string {
	requirements := make(map[factor.ID][]factor.ID, len(factors))
	for _, f := range factors {
		requirements[factor.ID(f.Path)] = nil
	}
	for _, f := range factors {
		id := factor.ID(f.Path)
		for _, req := range f.Requires {
			if _, local := requirements[factor.ID(req)]; local {
				requirements[id] = append(requirements[id], factor.ID(req))
			}
		}
	}

	cycle := graph.FindCycle(requirements)
	if len(cycle) == 0 {
		return nil
	}
	paths := make([]string, len(cycle))
	for i, id := range cycle {
		paths[i] = string(id)
	}
	return paths
}
