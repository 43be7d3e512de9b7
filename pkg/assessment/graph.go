package assessment

// dependencyGraph is the section dependency graph of one assessment
type dependencyGraph struct {
	edges map[int64][]int64 // section id -> ids it depends on
}

func newDependencyGraph(sections []Section) *dependencyGraph {
	g := &dependencyGraph{edges: make(map[int64][]int64, len(sections))}
	for _, s := range sections {
		g.edges[s.ID] = append([]int64(nil), s.Dependencies...)
	}
	return g
}

// set replaces the dependencies of id
func (g *dependencyGraph) set(id int64, deps []int64) {
	g.edges[id] = append([]int64(nil), deps...)
}

// findCycle returns the path of a cycle reachable from start, or nil
func (g *dependencyGraph) findCycle(start int64) []int64 {
	path := make([]int64, 0)
	visited := make(map[int64]bool)
	recStack := make(map[int64]bool)

	var hasCycle func(int64) bool
	hasCycle = func(id int64) bool {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, dep := range g.edges[id] {
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				path = append(path, dep)
				return true
			}
		}

		recStack[id] = false
		path = path[:len(path)-1]
		return false
	}

	if hasCycle(start) {
		return path
	}
	return nil
}

// dependents returns the ids of sections that depend on id
func (g *dependencyGraph) dependents(id int64) []int64 {
	var out []int64
	for node, deps := range g.edges {
		for _, dep := range deps {
			if dep == id {
				out = append(out, node)
				break
			}
		}
	}
	return out
}
