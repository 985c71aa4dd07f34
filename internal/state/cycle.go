package state

// FindCycle reports the first Feature id found to participate in a
// dependsOn cycle, or "" if the dependency graph is acyclic. It is used by
// both Validate (rejecting corrupt on-disk state) and the scheduler's
// add_feature/set_dependencies operations (rejecting a cycle before it is
// ever persisted), so the graph-walk is written once here rather than
// duplicated at both call sites.
func FindCycle(features []*Feature) string {
	byID := make(map[string]*Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(features))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case done:
			return false
		case visiting:
			return true
		}
		state[id] = visiting
		f := byID[id]
		if f != nil {
			for _, dep := range f.DependsOn {
				if visit(dep) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, f := range features {
		if state[f.ID] == unvisited {
			if visit(f.ID) {
				return f.ID
			}
		}
	}
	return ""
}
