package workspace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// record is what a session remembers about one task.
type record struct {
	state domain.TaskState
	// changed is true when the task's work ran in this session, directly or through a dependency.
	changed bool
	// newest is the artifact time dependents compare their output against.
	newest   time.Time
	err      error
	duration time.Duration
}

type session struct {
	id       string
	started  time.Time
	targets  []string
	records  map[domain.InternedString]*record
	outcomes []domain.TaskOutcome
	err      error
}

// StartSession opens a session. Tasks run at most once until EndSession.
func (w *Workspace) StartSession() error {
	if w.running.Load() {
		return domain.ErrWorkspaceBusy
	}
	if w.session != nil {
		return zerr.With(zerr.Wrap(domain.ErrSessionActive, "a session is already open"), "session", w.session.id)
	}
	w.openSession()
	return nil
}

func (w *Workspace) openSession() {
	w.session = &session{
		id:      uuid.NewString(),
		started: w.clock.Now(),
		records: make(map[domain.InternedString]*record),
	}
}

// EndSession discards the session memo and returns what happened in it.
// It returns nil when no session is open or a run is still in progress.
func (w *Workspace) EndSession() *domain.SessionSummary {
	if w.session == nil || w.running.Load() {
		return nil
	}
	s := w.session
	w.session = nil

	summary := &domain.SessionSummary{
		ID:        s.id,
		Targets:   s.targets,
		StartedAt: s.started,
		EndedAt:   w.clock.Now(),
		Outcomes:  s.outcomes,
	}
	if s.err != nil {
		summary.Error = s.err.Error()
	}
	return summary
}

// RunAll runs names in order inside a fresh session and stops at the first failure.
// The plan is announced to the tracer first and the summary is journaled afterwards.
func (w *Workspace) RunAll(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return domain.ErrNoTargetsSpecified
	}
	if err := w.StartSession(); err != nil {
		return err
	}

	targets := make([]string, len(names))
	for i, name := range names {
		targets[i] = domain.NormalizeTaskName(name)
	}

	tasks, deps := w.plan(targets)
	w.tracer.EmitPlan(ctx, tasks, deps, targets)

	var runErr error
	for _, name := range targets {
		if runErr = w.Run(ctx, name); runErr != nil {
			break
		}
	}

	summary := w.EndSession()
	if w.journal != nil && summary != nil {
		if err := w.journal.Record(ctx, summary); err != nil {
			w.logger.Warn("could not record session", "session", summary.ID, "reason", err.Error())
		}
	}
	return runErr
}

func (s *session) finish(task *domain.Task, rec *record) {
	o := domain.TaskOutcome{
		Task:     task.Name.String(),
		Kind:     task.Kind,
		State:    rec.state,
		Duration: rec.duration,
	}
	if rec.err != nil {
		o.Error = rec.err.Error()
	}
	s.outcomes = append(s.outcomes, o)
}
