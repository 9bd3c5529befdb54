// Package workspace implements the incremental task graph.
// Tasks are registered explicitly and run depth-first, at most once per session,
// skipping file tasks whose output is newer than everything they depend on.
package workspace

import (
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Registry = (*Workspace)(nil)

// Workspace owns the task registry and the current session.
// It is not safe for concurrent use; overlapping runs fail with domain.ErrWorkspaceBusy.
type Workspace struct {
	fs      ports.FileSystem
	logger  ports.Logger
	tracer  ports.Tracer
	store   ports.BuildInfoStore
	journal ports.Journal
	clock   clockwork.Clock
	root    string

	tasks map[domain.InternedString]*domain.Task

	running atomic.Bool
	session *session
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithStore records every executed file task in store.
func WithStore(store ports.BuildInfoStore) Option {
	return func(w *Workspace) {
		w.store = store
	}
}

// WithJournal records the summary of every RunAll session in journal.
func WithJournal(journal ports.Journal) Option {
	return func(w *Workspace) {
		w.journal = journal
	}
}

// WithClock replaces the wall clock used for session timestamps and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Workspace) {
		w.clock = clock
	}
}

// WithRoot sets the project root passed to the build info store.
func WithRoot(root string) Option {
	return func(w *Workspace) {
		w.root = root
	}
}

// New creates an empty workspace.
func New(fsys ports.FileSystem, logger ports.Logger, tracer ports.Tracer, opts ...Option) *Workspace {
	w := &Workspace{
		fs:     fsys,
		logger: logger,
		tracer: tracer,
		clock:  clockwork.NewRealClock(),
		tasks:  make(map[domain.InternedString]*domain.Task),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateFileTask registers a task whose action produces the file at outputPath.
// The normalised path doubles as the task name.
func (w *Workspace) CreateFileTask(outputPath string, deps []string, action domain.Action) (domain.TaskHandle, error) {
	return w.register(outputPath, domain.KindFile, deps, action)
}

// CreateCommandTask registers a task with no output file. A nil action is a no-op.
func (w *Workspace) CreateCommandTask(name string, deps []string, action domain.Action) (domain.TaskHandle, error) {
	return w.register(name, domain.KindCommand, deps, action)
}

func (w *Workspace) register(name string, kind domain.TaskKind, deps []string, action domain.Action) (domain.TaskHandle, error) {
	name = domain.NormalizeTaskName(name)
	if err := domain.ValidateTaskName(name); err != nil {
		return domain.TaskHandle{}, err
	}

	key := domain.NewInternedString(name)
	if existing, ok := w.tasks[key]; ok && existing.Kind != domain.KindSource {
		return domain.TaskHandle{}, zerr.With(
			zerr.With(zerr.Wrap(domain.ErrDuplicateTask, "task already registered"), "task", name),
			"kind", existing.Kind.String(),
		)
	}

	depNames := make([]string, len(deps))
	for i, dep := range deps {
		dep = domain.NormalizeTaskName(dep)
		if err := domain.ValidateTaskName(dep); err != nil {
			return domain.TaskHandle{}, zerr.With(err, "dependency_of", name)
		}
		depNames[i] = dep
	}

	task := &domain.Task{
		Name:         key,
		Kind:         kind,
		Dependencies: domain.NewInternedStrings(depNames),
		Action:       action,
	}
	w.tasks[key] = task
	return domain.NewTaskHandle(task), nil
}

// Task returns the handle of a registered task.
func (w *Workspace) Task(name string) (domain.TaskHandle, bool) {
	task, ok := w.tasks[domain.NewInternedString(domain.NormalizeTaskName(name))]
	if !ok {
		return domain.TaskHandle{}, false
	}
	return domain.NewTaskHandle(task), true
}

// Names returns the sorted names of registered tasks that start with prefix.
// Implicit source tasks are left out.
func (w *Workspace) Names(prefix string) []string {
	prefix = namePrefix(prefix)
	names := make([]string, 0, len(w.tasks))
	for key, task := range w.tasks {
		if task.Kind == domain.KindSource {
			continue
		}
		if name := key.String(); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// namePrefix normalises a listing prefix but keeps a trailing "/" so "out/" does not match "output.txt".
func namePrefix(prefix string) string {
	dir := strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, string(os.PathSeparator))
	prefix = domain.NormalizeTaskName(prefix)
	switch {
	case prefix == ".":
		return ""
	case dir && prefix != "/":
		return prefix + "/"
	}
	return prefix
}

// Len returns the number of explicitly registered tasks.
func (w *Workspace) Len() int {
	n := 0
	for _, task := range w.tasks {
		if task.Kind != domain.KindSource {
			n++
		}
	}
	return n
}

// State returns the state of name in the current session.
func (w *Workspace) State(name string) domain.TaskState {
	if w.session == nil {
		return domain.StateUnvisited
	}
	rec, ok := w.session.records[domain.NewInternedString(domain.NormalizeTaskName(name))]
	if !ok {
		return domain.StateUnvisited
	}
	return rec.state
}

// lookup resolves name to a task. A name nobody registered that exists on disk
// becomes an implicit source task, but only when it is reached as a dependency.
func (w *Workspace) lookup(name domain.InternedString, parent *domain.Task) (*domain.Task, error) {
	if task, ok := w.tasks[name]; ok {
		return task, nil
	}

	if parent != nil {
		st, err := w.fs.Stat(name.String())
		if err != nil {
			return nil, err
		}
		if st.Exists {
			task := &domain.Task{Name: name, Kind: domain.KindSource}
			w.tasks[name] = task
			return task, nil
		}
	}

	err := zerr.With(zerr.Wrap(domain.ErrMissingTask, "task is not registered"), "task", name.String())
	if parent != nil {
		err = zerr.With(err, "dependency_of", parent.Name.String())
	}
	return nil, err
}
