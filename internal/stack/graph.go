// File: internal/stack/graph.go
// Brief: DAG validation and deterministic execution ordering.

package stack

import "sort"

// Order returns a topological order over defs: every stack appears after all
// of its dependencies. Ties among stacks whose dependencies are all satisfied
// are broken by declaration order, so the result is deterministic for a given
// manifest. Returns UnknownDependencyError for a dependsOn entry naming a
// stack outside the set and CycleError when the set is not a DAG.
func Order(defs []*Definition) ([]*Definition, error) {
	byName := make(map[string]*Definition, len(defs))
	declIndex := make(map[string]int, len(defs))
	for i, d := range defs {
		byName[d.Name] = d
		declIndex[d.Name] = i
	}

	inDegree := make(map[string]int, len(defs))
	dependents := map[string][]string{}
	for _, d := range defs {
		inDegree[d.Name] += 0
		for _, dep := range d.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, &UnknownDependencyError{Stack: d.Name, Dependency: dep}
			}
			inDegree[d.Name]++
			dependents[dep] = append(dependents[dep], d.Name)
		}
	}

	ready := make([]string, 0, len(defs))
	for _, d := range defs {
		if inDegree[d.Name] == 0 {
			ready = append(ready, d.Name)
		}
	}
	sortByDeclaration(ready, declIndex)

	out := make([]*Definition, 0, len(defs))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, byName[name])
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sortByDeclaration(ready, declIndex)
	}

	if len(out) != len(defs) {
		var stuck []string
		for _, d := range defs {
			if inDegree[d.Name] > 0 {
				stuck = append(stuck, d.Name)
			}
		}
		sortByDeclaration(stuck, declIndex)
		return nil, &CycleError{Path: findCyclePath(stuck, byName)}
	}
	return out, nil
}

// ReverseOrder returns the exact reverse of a previously computed forward
// order. Teardown must consume this rather than recomputing from the graph so
// the two sequences cannot diverge.
func ReverseOrder(forward []*Definition) []*Definition {
	out := make([]*Definition, len(forward))
	for i, d := range forward {
		out[len(forward)-1-i] = d
	}
	return out
}

func sortByDeclaration(names []string, declIndex map[string]int) {
	sort.SliceStable(names, func(i, j int) bool {
		return declIndex[names[i]] < declIndex[names[j]]
	})
}

// findCyclePath walks dependency edges among the stuck nodes to surface an
// actual cycle for the error message instead of the bare node list.
func findCyclePath(stuck []string, byName map[string]*Definition) []string {
	stuckSet := map[string]struct{}{}
	for _, name := range stuck {
		stuckSet[name] = struct{}{}
	}
	vis := map[string]bool{}
	onStack := map[string]bool{}
	var stack []string
	var cycle []string
	var dfs func(string) bool
	dfs = func(name string) bool {
		vis[name] = true
		onStack[name] = true
		stack = append(stack, name)
		for _, dep := range byName[name].DependsOn {
			if _, ok := stuckSet[dep]; !ok {
				continue
			}
			if !vis[dep] {
				if dfs(dep) {
					return true
				}
				continue
			}
			if onStack[dep] {
				idx := -1
				for i := range stack {
					if stack[i] == dep {
						idx = i
						break
					}
				}
				if idx >= 0 {
					cycle = append([]string(nil), stack[idx:]...)
				} else {
					cycle = []string{dep, name}
				}
				return true
			}
		}
		onStack[name] = false
		stack = stack[:len(stack)-1]
		return false
	}
	for _, name := range stuck {
		if vis[name] {
			continue
		}
		if dfs(name) {
			break
		}
	}
	if len(cycle) == 0 {
		cycle = stuck
	}
	return cycle
}
