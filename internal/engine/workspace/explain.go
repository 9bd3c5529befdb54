package workspace

import (
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// verdict is the dry-run counterpart of record.
type verdict struct {
	visiting bool
	changes  bool
	newest   time.Time
	err      error
}

// Explain reports whether name would run and why, without running anything.
// Dependencies that would be rebuilt count as newer than any existing output.
func (w *Workspace) Explain(name string) (*domain.Explanation, error) {
	if w.running.Load() {
		return nil, zerr.With(zerr.Wrap(domain.ErrWorkspaceBusy, "run already in progress"), "task", name)
	}

	name = domain.NormalizeTaskName(name)
	key := domain.NewInternedString(name)
	task, ok := w.tasks[key]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrMissingTask, "task is not registered"), "task", name)
	}

	e := &explainer{w: w, verdicts: make(map[domain.InternedString]*verdict)}
	depChanged, cause, newest, err := e.dependencies(task, []domain.InternedString{key})
	if err != nil {
		return nil, err
	}

	out := &domain.Explanation{Task: name, Kind: task.Kind, Newest: newest}

	switch task.Kind {
	case domain.KindCommand:
		out.Stale = true
		out.Reason = domain.ReasonAlwaysRuns
		return out, nil
	case domain.KindSource:
		return out, nil
	}

	if w.store != nil {
		if info, err := w.store.Get(w.root, name); err == nil {
			out.LastBuilt = info
		}
	}

	st, err := w.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	out.OutputMod = st.ModTime

	switch {
	case !st.Exists:
		out.Stale, out.Reason = true, domain.ReasonOutputMissing
	case depChanged:
		out.Stale, out.Reason, out.Cause = true, domain.ReasonDependencyStale, cause
	case newest.After(st.ModTime):
		out.Stale, out.Reason, out.Cause = true, domain.ReasonDependencyNewer, e.newestDep(task)
	default:
		out.Reason = domain.ReasonUpToDate
	}
	return out, nil
}

type explainer struct {
	w        *Workspace
	verdicts map[domain.InternedString]*verdict
}

// dependencies evaluates every dependency of task. It returns whether any would change,
// the first one that would, and the newest artifact time among them.
func (e *explainer) dependencies(task *domain.Task, stack []domain.InternedString) (bool, string, time.Time, error) {
	var (
		changed bool
		cause   string
		newest  time.Time
	)
	for _, dep := range task.Dependencies {
		v, err := e.eval(dep, task, stack)
		if err != nil {
			return false, "", time.Time{}, err
		}
		if v.changes && !changed {
			changed, cause = true, dep.String()
		}
		if v.newest.After(newest) {
			newest = v.newest
		}
	}
	return changed, cause, newest, nil
}

func (e *explainer) eval(name domain.InternedString, parent *domain.Task, stack []domain.InternedString) (*verdict, error) {
	if v, ok := e.verdicts[name]; ok {
		if v.visiting {
			return nil, cycleError(stack, name)
		}
		return v, v.err
	}

	v := &verdict{visiting: true}
	e.verdicts[name] = v
	defer func() { v.visiting = false }()

	task, ok := e.w.tasks[name]
	if !ok {
		// Unregistered dependencies are only looked at, never registered, during a dry run.
		st, err := e.w.fs.Stat(name.String())
		if err != nil {
			v.err = err
			return nil, err
		}
		if !st.Exists {
			v.err = zerr.With(
				zerr.With(zerr.Wrap(domain.ErrMissingTask, "task is not registered"), "task", name.String()),
				"dependency_of", parent.Name.String(),
			)
			return nil, v.err
		}
		v.newest = st.ModTime
		return v, nil
	}

	if task.Kind == domain.KindSource {
		st, err := e.w.fs.Stat(name.String())
		if err != nil {
			v.err = err
			return nil, err
		}
		v.newest = st.ModTime
		return v, nil
	}

	changed, _, newest, err := e.dependencies(task, append(stack, name))
	if err != nil {
		v.err = err
		return nil, err
	}
	v.newest = newest

	if task.Kind == domain.KindCommand {
		v.changes = changed || task.Action != nil
		return v, nil
	}

	st, err := e.w.fs.Stat(name.String())
	if err != nil {
		v.err = err
		return nil, err
	}
	v.changes = !st.Exists || changed || newest.After(st.ModTime)
	if st.ModTime.After(v.newest) || !v.changes {
		v.newest = st.ModTime
	}
	return v, nil
}

// newestDep names the dependency with the latest artifact time.
func (e *explainer) newestDep(task *domain.Task) string {
	var (
		name   string
		newest time.Time
	)
	for _, dep := range task.Dependencies {
		if v, ok := e.verdicts[dep]; ok && v.newest.After(newest) {
			name, newest = dep.String(), v.newest
		}
	}
	return name
}
