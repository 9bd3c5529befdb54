// Package tui renders a session as an interactive task list with a live log
// pane for the selected task.
package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/ui/output"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer drives a bubbletea program from workspace span events.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a renderer drawing to w. Extra options are passed to the
// program, which tests use to replace the terminal.
func NewRenderer(w io.Writer, opts ...tea.ProgramOption) *Renderer {
	lipgloss.SetColorProfile(output.ColorProfile())

	model := NewModel()
	opts = append([]tea.ProgramOption{tea.WithOutput(w)}, opts...)
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start runs the program in the background.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		if err == nil && r.model.Interrupted {
			err = domain.ErrInterrupted
		}
		r.errCh <- err
	}()
	return nil
}

// Stop settles the task list and quits the program. The final view stays on screen.
func (r *Renderer) Stop() error {
	r.program.Send(MsgFinish{})
	r.program.Quit()
	return nil
}

// Wait blocks until the program has exited. It returns domain.ErrInterrupted
// when the user quit before the session finished.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// Model returns the program's model. Read it only after Wait returns.
func (r *Renderer) Model() *Model {
	return r.model
}

// OnPlanEmit resets the task list.
func (r *Renderer) OnPlanEmit(tasks []string, deps map[string][]string, targets []string) {
	r.program.Send(MsgPlan{Tasks: tasks, Dependencies: deps, Targets: targets})
}

// OnTaskStart marks a task as running.
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.program.Send(MsgTaskStart{SpanID: spanID, ParentID: parentID, Name: name, StartTime: startTime})
}

// OnTaskLog appends output to the task's pane.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	// The caller may reuse data after returning.
	r.program.Send(MsgTaskLog{SpanID: spanID, Data: append([]byte(nil), data...)})
}

// OnTaskComplete marks a task as done or failed.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.program.Send(MsgTaskComplete{SpanID: spanID, EndTime: endTime, Err: err})
}
