package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/kiln/internal/ui/style"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Planning..."
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.taskList(),
		m.logPane(),
	)
}

func (m *Model) taskList() string {
	var s strings.Builder

	done, failed, upToDate := m.Counts()
	title := titleStyle
	if failed > 0 {
		title = failureTitleStyle
	}
	s.WriteString(title.Render(fmt.Sprintf("TASKS %d/%d", done+failed+upToDate, len(m.Tasks))) + "\n\n")

	end := min(m.ListOffset+m.ListHeight, len(m.Tasks))
	start := min(m.ListOffset, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderTaskRow(i, m.Tasks[i]) + "\n")
	}

	return listStyle.Render(s.String())
}

func (m *Model) renderTaskRow(index int, task *TaskNode) string {
	rowStyle := statusStyle(task.Status)

	cursor := "  "
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		if task.Status == StatusPending || task.Status == StatusRunning {
			rowStyle = selectedStyle
		}
	}

	content := statusIcon(task.Status) + " " + task.Name
	if d := task.Elapsed(); d > 0 {
		content += " " + d.Round(time.Millisecond).String()
	}
	return cursor + rowStyle.Render(content)
}

func statusIcon(s TaskStatus) string {
	switch s {
	case StatusRunning:
		return style.Dot
	case StatusDone:
		return style.Check
	case StatusError:
		return style.Cross
	case StatusUpToDate:
		return style.Tilde
	default:
		return "○"
	}
}

func statusStyle(s TaskStatus) lipgloss.Style {
	switch s {
	case StatusRunning:
		return taskRunningStyle
	case StatusDone:
		return taskDoneStyle
	case StatusError:
		return taskErrorStyle
	case StatusUpToDate:
		return taskUpToDateStyle
	default:
		return taskPendingStyle
	}
}

func (m *Model) logPane() string {
	node := m.activeNode()
	if node == nil {
		return logStyle.Render(titleStyle.Render("LOGS (waiting)"))
	}

	mode := "following"
	if !m.FollowMode {
		mode = "manual"
	}
	header := titleStyle.Render(fmt.Sprintf("LOGS %s (%s)", node.Name, mode))

	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, node.Term.View()))
}
