package synth

import "sort"

// depGraph maps a definition name to the names of definitions it references.
type depGraph map[string][]string

// orderGroups returns the emission order for closure entries as a list of
// groups: singleton groups for acyclic definitions, multi-member groups for
// strongly connected components (mutual recursion). Groups come out
// dependencies-first, so a definition referencing another is emitted after
// it, except within its own cyclic group. Members of a cyclic group are
// sorted by name so the order is stable for any group size.
//
// Tarjan's algorithm completes a component only after every component it
// references, so the natural pop order is already the emission order.
func orderGroups(graph depGraph) [][]string {
	sccs := tarjanSCC(graph)
	for _, scc := range sccs {
		sort.Strings(scc)
	}
	return sccs
}

// tarjanSCC finds strongly connected components with deterministic
// traversal: nodes and neighbors are visited in sorted order.
func tarjanSCC(graph depGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := make([]string, 0, len(graph[v]))
		for _, w := range graph[v] {
			if _, known := graph[w]; known {
				neighbors = append(neighbors, w)
			}
		}
		sort.Strings(neighbors)

		for _, w := range neighbors {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}
