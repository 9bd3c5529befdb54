package workspace

import "go.trai.ch/kiln/internal/core/domain"

// plan lists the registered tasks reachable from targets in post-order, with their dependencies.
// Names that are not registered yet are left out; the walk itself reports them.
func (w *Workspace) plan(targets []string) ([]string, map[string][]string) {
	var order []string
	deps := make(map[string][]string)
	seen := make(map[domain.InternedString]bool)

	var walk func(name domain.InternedString)
	walk = func(name domain.InternedString) {
		if seen[name] {
			return
		}
		seen[name] = true
		task, ok := w.tasks[name]
		if !ok {
			return
		}
		for _, dep := range task.Dependencies {
			walk(dep)
		}
		order = append(order, name.String())
		if len(task.Dependencies) > 0 {
			deps[name.String()] = domain.NewTaskHandle(task).Dependencies()
		}
	}

	for _, t := range targets {
		walk(domain.NewInternedString(t))
	}
	return order, deps
}

// Plan returns the tasks a session over targets may visit, in the order they would run.
func (w *Workspace) Plan(targets ...string) []string {
	normalized := make([]string, len(targets))
	for i, t := range targets {
		normalized[i] = domain.NormalizeTaskName(t)
	}
	order, _ := w.plan(normalized)
	return order
}
