package graph

import "github.com/alexisbeaulieu97/construct/internal/factor"

// FindCycle returns the nodes participating in a dependency cycle with the
// first node repeated at the end, or nil if the graph is acyclic. Nodes are
// visited in id order so the reported cycle is stable.
func FindCycle(graph map[factor.ID][]factor.ID) []factor.ID {
	visiting := make(set, len(graph))
	visited := make(set, len(graph))
	var stack []factor.ID
	var cycle []factor.ID

	var dfs func(factor.ID) bool
	dfs = func(node factor.ID) bool {
		visiting[node] = struct{}{}
		stack = append(stack, node)

		for _, dep := range graph[node] {
			if _, done := visited[dep]; done {
				continue
			}
			if _, open := visiting[dep]; open {
				if idx := indexOf(stack, dep); idx >= 0 {
					cycle = append([]factor.ID{}, stack[idx:]...)
					cycle = append(cycle, dep)
				}
				return true
			}
			if dfs(dep) {
				return true
			}
		}

		delete(visiting, node)
		visited[node] = struct{}{}
		stack = stack[:len(stack)-1]
		return false
	}

	ids := make([]factor.ID, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sortIDs(ids)

	for _, id := range ids {
		if _, done := visited[id]; done {
			continue
		}
		if dfs(id) {
			break
		}
	}
	return cycle
}

func indexOf(stack []factor.ID, target factor.ID) int {
	for i, v := range stack {
		if v == target {
			return i
		}
	}
	return -1
}
