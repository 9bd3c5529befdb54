package domain

import (
	"strings"
	"time"
)

// TaskState is the per-session lifecycle state of a task.
type TaskState uint8

const (
	// StateUnvisited means the task has not been reached in this session.
	StateUnvisited TaskState = iota
	// StateVisiting means the task's dependencies are being resolved.
	StateVisiting
	// StateSkipped means the task's output was up to date.
	StateSkipped
	// StateExecuted means the task's action ran successfully.
	StateExecuted
	// StateFailed means the task or one of its dependencies failed.
	StateFailed
)

// String returns the lowercase name of the state.
func (s TaskState) String() string {
	switch s {
	case StateUnvisited:
		return "unvisited"
	case StateVisiting:
		return "visiting"
	case StateSkipped:
		return "skipped"
	case StateExecuted:
		return "executed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is final for the session.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateSkipped, StateExecuted, StateFailed:
		return true
	default:
		return false
	}
}

// ParseTaskState converts a stored state name back into a TaskState.
// Unknown names map to StateUnvisited.
func ParseTaskState(s string) TaskState {
	switch strings.ToLower(s) {
	case "visiting":
		return StateVisiting
	case "skipped":
		return StateSkipped
	case "executed":
		return StateExecuted
	case "failed":
		return StateFailed
	default:
		return StateUnvisited
	}
}

// TaskOutcome records how a single task finished within a session.
type TaskOutcome struct {
	Task     string        `json:"task"`
	Kind     TaskKind      `json:"kind"`
	State    TaskState     `json:"state"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitzero"`
}

// SessionSummary is what a session leaves behind once it ends.
type SessionSummary struct {
	ID        string        `json:"id"`
	Targets   []string      `json:"targets"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Outcomes  []TaskOutcome `json:"outcomes"`
	Error     string        `json:"error,omitzero"`
}

// Count returns how many outcomes ended in the given state.
func (s *SessionSummary) Count(state TaskState) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Succeeded reports whether the session finished without error.
func (s *SessionSummary) Succeeded() bool {
	return s.Error == ""
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TaskState) UnmarshalText(text []byte) error {
	*s = ParseTaskState(string(text))
	return nil
}
