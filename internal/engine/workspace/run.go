package workspace

import (
	"context"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Run brings name up to date, running its dependencies first in declared order.
// Without an open session Run opens and closes one around itself.
// Errors from actions are returned unchanged.
func (w *Workspace) Run(ctx context.Context, name string) error {
	if !w.running.CompareAndSwap(false, true) {
		return zerr.With(zerr.Wrap(domain.ErrWorkspaceBusy, "run already in progress"), "task", name)
	}

	transient := w.session == nil
	if transient {
		w.openSession()
	}

	err := w.runLocked(ctx, name)

	w.running.Store(false)
	if transient {
		w.EndSession()
	}
	return err
}

func (w *Workspace) runLocked(ctx context.Context, name string) error {
	name = domain.NormalizeTaskName(name)
	s := w.session
	s.targets = append(s.targets, name)

	task, err := w.lookup(domain.NewInternedString(name), nil)
	if err == nil {
		_, err = w.visit(ctx, task, nil)
	}
	if err != nil && s.err == nil {
		s.err = err
	}
	return err
}

// visit is the depth-first post-order walk. stack holds the tasks being resolved above task.
func (w *Workspace) visit(ctx context.Context, task *domain.Task, stack []domain.InternedString) (*record, error) {
	s := w.session
	if rec, ok := s.records[task.Name]; ok {
		if rec.state == domain.StateVisiting {
			return nil, cycleError(stack, task.Name)
		}
		return rec, rec.err
	}

	rec := &record{state: domain.StateVisiting}
	s.records[task.Name] = rec
	started := w.clock.Now()
	stack = append(stack, task.Name)

	fail := func(err error) (*record, error) {
		rec.state = domain.StateFailed
		rec.err = err
		rec.duration = w.clock.Since(started)
		s.finish(task, rec)
		return rec, err
	}

	if task.Kind == domain.KindSource {
		st, err := w.fs.Stat(task.Name.String())
		if err != nil {
			return fail(err)
		}
		if !st.Exists {
			return fail(zerr.With(zerr.Wrap(domain.ErrMissingTask, "source file disappeared"), "task", task.Name.String()))
		}
		rec.state = domain.StateSkipped
		rec.newest = st.ModTime
		s.finish(task, rec)
		return rec, nil
	}

	depChanged := false
	for _, depName := range task.Dependencies {
		dep, err := w.lookup(depName, task)
		if err != nil {
			return fail(err)
		}
		depRec, err := w.visit(ctx, dep, stack)
		if err != nil {
			return fail(err)
		}
		depChanged = depChanged || depRec.changed
		if depRec.newest.After(rec.newest) {
			rec.newest = depRec.newest
		}
	}

	var err error
	if task.Kind == domain.KindFile {
		err = w.runFileTask(ctx, task, rec, depChanged)
	} else {
		err = w.runCommandTask(ctx, task, rec, depChanged)
	}
	if err != nil {
		return fail(err)
	}

	rec.duration = w.clock.Since(started)
	s.finish(task, rec)
	return rec, nil
}

func (w *Workspace) runFileTask(ctx context.Context, task *domain.Task, rec *record, depChanged bool) error {
	name := task.Name.String()

	st, err := w.fs.Stat(name)
	if err != nil {
		return err
	}
	if st.Exists && !depChanged && !rec.newest.After(st.ModTime) {
		rec.state = domain.StateSkipped
		rec.newest = st.ModTime
		w.logger.Info("skipped", "task", name)
		return nil
	}

	started := w.clock.Now()
	if err := w.execute(ctx, task); err != nil {
		return err
	}

	st, err = w.fs.Stat(name)
	if err != nil {
		return err
	}
	if !st.Exists {
		return zerr.With(zerr.Wrap(domain.ErrTaskFailedToProduceOutput, "output missing after action"), "task", name)
	}

	rec.state = domain.StateExecuted
	rec.changed = true
	rec.newest = st.ModTime
	w.recordBuild(name, w.clock.Since(started))
	return nil
}

// runCommandTask runs the action every session. A grouping task with no action still
// opens a span but only passes on whether its dependencies changed.
func (w *Workspace) runCommandTask(ctx context.Context, task *domain.Task, rec *record, depChanged bool) error {
	if err := w.execute(ctx, task); err != nil {
		return err
	}
	rec.changed = depChanged || task.Action != nil
	rec.state = domain.StateExecuted
	return nil
}

// execute runs the task's action inside a span whose writer receives the task output.
func (w *Workspace) execute(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := w.tracer.Start(ctx, task.Name.String(), ports.WithAttribute("kiln.kind", task.Kind.String()))
	defer span.End()

	if task.Action == nil {
		return nil
	}
	if err := task.Action(domain.WithTaskOutput(ctx, span)); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// recordBuild is best effort; a broken store must not fail the build.
func (w *Workspace) recordBuild(name string, elapsed time.Duration) {
	if w.store == nil {
		return
	}
	info := domain.BuildInfo{
		TaskName:  name,
		Timestamp: w.clock.Now(),
		Duration:  elapsed,
	}
	if hash, err := w.fs.Hash(name); err == nil {
		info.OutputHash = hash
	}
	if err := w.store.Put(w.root, info); err != nil {
		w.logger.Warn("could not record build info", "task", name, "reason", err.Error())
	}
}

func cycleError(stack []domain.InternedString, name domain.InternedString) error {
	start := 0
	for i, n := range stack {
		if n == name {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		path = append(path, n.String())
	}
	path = append(path, name.String())
	return zerr.With(
		zerr.With(zerr.Wrap(domain.ErrCycleDetected, "dependency cycle"), "task", name.String()),
		"cycle", strings.Join(path, " -> "),
	)
}
