package orchestrator

import "strings"

// Step is one element of a run sequence or prerequisite list: either a single
// task or a group of tasks with no ordering among them.
type Step struct {
	names []string
	group bool
}

// One returns a step that runs a single task.
func One(name string) Step {
	return Step{names: []string{name}}
}

// Group returns a step that runs all named tasks concurrently and completes
// when every one of them has finished.
func Group(names ...string) Step {
	return Step{names: append([]string(nil), names...), group: true}
}

// Names flattens the task names of steps, in order.
func Names(steps ...Step) []string {
	var out []string
	for _, s := range steps {
		out = append(out, s.names...)
	}
	return out
}

// Names returns the task names in the step.
func (s Step) Names() []string {
	return append([]string(nil), s.names...)
}

// IsGroup reports whether the step runs its tasks concurrently.
func (s Step) IsGroup() bool {
	return s.group
}

// String renders a single step as its name and a group as "(a, b)".
func (s Step) String() string {
	if !s.group {
		if len(s.names) == 0 {
			return ""
		}
		return s.names[0]
	}
	return "(" + strings.Join(s.names, ", ") + ")"
}

// FormatSteps renders a sequence as "clean, (html, js)".
func FormatSteps(steps []Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

// ParseStep turns a CLI argument into a step: "a,b,c" is a group, anything
// else a single task.
func ParseStep(arg string) Step {
	if !strings.Contains(arg, ",") {
		return One(strings.TrimSpace(arg))
	}
	var names []string
	for _, part := range strings.Split(arg, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return Group(names...)
}
