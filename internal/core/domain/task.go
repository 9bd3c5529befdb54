// Package domain contains the core domain models of the task workspace.
package domain

import (
	"context"
	"slices"

	"go.trai.ch/zerr"
)

// TaskKind distinguishes how a task relates to the file system.
type TaskKind uint8

const (
	// KindFile is a task whose action produces the file named by the task.
	KindFile TaskKind = iota
	// KindCommand is a task with no associated file. It groups dependencies
	// or wraps an imperative action.
	KindCommand
	// KindSource is an implicit leaf for an existing file that no task produces.
	KindSource
)

// String returns the lowercase name of the kind.
func (k TaskKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindCommand:
		return "command"
	case KindSource:
		return "source"
	default:
		return "unknown"
	}
}

// Action is the side effect a task performs when it runs.
// A nil Action is a no-op.
type Action func(ctx context.Context) error

// Task represents a unit of work in the workspace.
// It uses InternedString for names since the same names appear in many dependency lists.
type Task struct {
	Name         InternedString
	Kind         TaskKind
	Dependencies []InternedString
	Action       Action
}

// TaskHandle is the read-only view of a registered task returned to callers.
type TaskHandle struct {
	task *Task
}

// NewTaskHandle wraps a registered task.
func NewTaskHandle(t *Task) TaskHandle {
	return TaskHandle{task: t}
}

// Name returns the task name.
func (h TaskHandle) Name() string {
	if h.task == nil {
		return ""
	}
	return h.task.Name.String()
}

// Kind returns the task kind.
func (h TaskHandle) Kind() TaskKind {
	if h.task == nil {
		return KindCommand
	}
	return h.task.Kind
}

// Dependencies returns a copy of the declared dependency names in order.
func (h TaskHandle) Dependencies() []string {
	if h.task == nil {
		return nil
	}
	deps := make([]string, len(h.task.Dependencies))
	for i, d := range h.task.Dependencies {
		deps[i] = d.String()
	}
	return deps
}

// IsZero reports whether the handle refers to no task.
func (h TaskHandle) IsZero() bool {
	return h.task == nil
}

// Command is an external process invocation used by shell-backed actions.
type Command struct {
	// Name labels the command in logs, usually the owning task name.
	Name        string
	Args        []string
	Environment map[string]string
	WorkingDir  string
}

// Clone returns a deep copy of the command so generated actions never share state.
func (c Command) Clone() Command {
	out := c
	out.Args = slices.Clone(c.Args)
	if c.Environment != nil {
		out.Environment = make(map[string]string, len(c.Environment))
		for k, v := range c.Environment {
			out.Environment[k] = v
		}
	}
	return out
}

// ParseTaskKind converts a kind name into a TaskKind.
// The empty string means a file task.
func ParseTaskKind(s string) (TaskKind, bool) {
	switch s {
	case "", "file":
		return KindFile, true
	case "command":
		return KindCommand, true
	case "source":
		return KindSource, true
	default:
		return KindFile, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TaskKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TaskKind) UnmarshalText(text []byte) error {
	kind, ok := ParseTaskKind(string(text))
	if !ok {
		return zerr.With(zerr.Wrap(ErrInvalidTaskKind, "unknown task kind"), "kind", string(text))
	}
	*k = kind
	return nil
}
