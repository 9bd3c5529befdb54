package tui

import "time"

// MsgPlan resets the task list to the tasks a session may visit.
type MsgPlan struct {
	Tasks        []string
	Dependencies map[string][]string
	Targets      []string
}

// MsgTaskStart marks a task as running under a new span.
type MsgTaskStart struct {
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
}

// MsgTaskLog carries a chunk of a task's output.
type MsgTaskLog struct {
	SpanID string
	Data   []byte
}

// MsgTaskComplete ends a span.
type MsgTaskComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
}

// MsgFinish is sent once the session is over, just before the program quits.
type MsgFinish struct{}
