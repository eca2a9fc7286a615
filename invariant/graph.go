package invariant

import "fmt"

// topoSort orders invariant ids so that every id appears after everything
// it depends on, using Kahn's algorithm. It returns an error if the
// dependency graph is not acyclic (spec §4.2: "the dependency graph must
// be acyclic and is validated at startup").
func topoSort(invariants map[string]*Invariant) ([]string, error) {
	indegree := make(map[string]int, len(invariants))
	dependents := make(map[string][]string, len(invariants))

	for id, inv := range invariants {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range inv.DependsOn {
			if _, ok := invariants[dep]; !ok {
				return nil, fmt.Errorf("invariant %q depends on unknown invariant %q", id, dep)
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(invariants) {
		return nil, fmt.Errorf("invariant dependency graph contains a cycle")
	}
	return order, nil
}
