package orchestrator

import "slices"

// validate walks the prerequisite graph reachable from steps depth-first.
// A name met again while still on the current path closes a cycle.
func validate(tasks map[string]*Task, steps []Step) error {
	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[string]int)
	var path []string

	var visit func(name, parent string) error
	visit = func(name, parent string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(path, name)
			cycle := append(slices.Clone(path[start:]), name)
			return &CyclicDependencyError{Path: cycle}
		}

		t, ok := tasks[name]
		if !ok {
			return &UnknownTaskError{Name: name, ReferencedBy: parent}
		}

		state[name] = visiting
		path = append(path, name)
		for _, pre := range t.Prerequisites {
			for _, dep := range pre.names {
				if err := visit(dep, name); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = visited
		return nil
	}

	for _, step := range steps {
		for _, name := range step.names {
			if err := visit(name, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
