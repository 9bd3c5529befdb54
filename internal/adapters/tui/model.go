package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	taskListWidthRatio = 0.3
	logPaneBorderWidth = 4
)

// TaskStatus is the display state of a planned task.
type TaskStatus string

const (
	// StatusPending means the task has not been reached yet.
	StatusPending TaskStatus = "Pending"
	// StatusRunning means the task's action is executing.
	StatusRunning TaskStatus = "Running"
	// StatusDone means the task ran and succeeded.
	StatusDone TaskStatus = "Done"
	// StatusError means the task failed.
	StatusError TaskStatus = "Error"
	// StatusUpToDate means the session finished without running the task.
	StatusUpToDate TaskStatus = "UpToDate"
)

// TaskNode is one row of the task list.
type TaskNode struct {
	Name      string
	Status    TaskStatus
	Term      *Vterm
	StartTime time.Time
	EndTime   time.Time
}

// Elapsed returns how long the task ran, or zero if it never started.
func (n *TaskNode) Elapsed() time.Duration {
	if n.StartTime.IsZero() || n.EndTime.IsZero() {
		return 0
	}
	return n.EndTime.Sub(n.StartTime)
}

// Model is the bubbletea model of a session: a task list on the left and the
// selected task's output on the right.
type Model struct {
	Tasks   []*TaskNode
	TaskMap map[string]*TaskNode
	SpanMap map[string]*TaskNode
	Targets []string

	ActiveTaskName string
	SelectedIdx    int
	ListOffset     int
	ListHeight     int
	LogWidth       int
	LogHeight      int
	// FollowMode moves the selection to whichever task started last.
	FollowMode bool

	Finished    bool
	Interrupted bool
}

// NewModel returns an empty model that follows running tasks.
func NewModel() *Model {
	return &Model{
		TaskMap:    make(map[string]*TaskNode),
		SpanMap:    make(map[string]*TaskNode),
		FollowMode: true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
//
//nolint:cyclop // one case per message type
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case MsgPlan:
		m.plan(msg)

	case MsgTaskStart:
		node, ok := m.TaskMap[msg.Name]
		if !ok {
			return m, nil
		}
		node.Status = StatusRunning
		node.StartTime = msg.StartTime
		m.SpanMap[msg.SpanID] = node
		if m.FollowMode {
			m.selectTask(msg.Name)
		}

	case MsgTaskLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Term.Write(msg.Data)
		}

	case MsgTaskComplete:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			node.EndTime = msg.EndTime
			node.Status = StatusDone
			if msg.Err != nil {
				node.Status = StatusError
			}
		}

	case MsgFinish:
		m.finish()
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		if !m.Finished {
			m.Interrupted = true
		}
		return tea.Quit
	case "k", "up":
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
			m.FollowMode = false
			m.updateActiveView()
		}
	case "j", "down":
		if m.SelectedIdx < len(m.Tasks)-1 {
			m.SelectedIdx++
			m.FollowMode = false
			m.updateActiveView()
		}
	case "esc":
		m.FollowMode = true
		for _, t := range m.Tasks {
			if t.Status == StatusRunning {
				m.selectTask(t.Name)
				break
			}
		}
	default:
		if node := m.activeNode(); node != nil {
			scroll(node.Term, msg.String())
		}
	}
	return nil
}

func scroll(term *Vterm, key string) {
	switch key {
	case "pgup":
		term.ScrollBy(-term.Height)
	case "pgdown":
		term.ScrollBy(term.Height)
	case "home":
		term.ScrollToTop()
	case "end":
		term.ScrollToBottom()
	}
}

func (m *Model) resize(width, height int) {
	listWidth := int(float64(width) * taskListWidthRatio)
	m.LogWidth = max(width-listWidth-logPaneBorderWidth, 1)

	headerHeight := lipgloss.Height(titleStyle.Render("LOGS"))
	m.LogHeight = max(height-headerHeight, 1)

	listHeader := lipgloss.Height(titleStyle.Render("TASKS") + "\n\n")
	m.ListHeight = max(height-listHeader, 1)

	for _, node := range m.Tasks {
		node.Term.SetSize(m.LogWidth, m.LogHeight)
	}
	m.ensureVisible()
}

func (m *Model) plan(msg MsgPlan) {
	m.Tasks = make([]*TaskNode, len(msg.Tasks))
	m.TaskMap = make(map[string]*TaskNode, len(msg.Tasks))
	m.SpanMap = make(map[string]*TaskNode)
	m.Targets = msg.Targets
	m.SelectedIdx, m.ListOffset = 0, 0
	m.ActiveTaskName = ""
	m.Finished = false

	for i, name := range msg.Tasks {
		term := NewVterm()
		if m.LogWidth > 0 && m.LogHeight > 0 {
			term.SetSize(m.LogWidth, m.LogHeight)
		}
		m.Tasks[i] = &TaskNode{Name: name, Status: StatusPending, Term: term}
		m.TaskMap[name] = m.Tasks[i]
	}
}

// finish settles the tasks the session never started. Without a failure every
// planned task was visited, so those were already up to date.
func (m *Model) finish() {
	m.Finished = true
	if m.Failed() {
		return
	}
	for _, node := range m.Tasks {
		if node.Status == StatusPending {
			node.Status = StatusUpToDate
		}
	}
}

// Failed reports whether any task failed.
func (m *Model) Failed() bool {
	for _, node := range m.Tasks {
		if node.Status == StatusError {
			return true
		}
	}
	return false
}

// Counts returns how many tasks ran, failed and were up to date.
func (m *Model) Counts() (done, failed, upToDate int) {
	for _, node := range m.Tasks {
		switch node.Status {
		case StatusDone:
			done++
		case StatusError:
			failed++
		case StatusUpToDate:
			upToDate++
		case StatusPending, StatusRunning:
		}
	}
	return done, failed, upToDate
}

func (m *Model) selectTask(name string) {
	for i, t := range m.Tasks {
		if t.Name == name {
			m.SelectedIdx = i
			break
		}
	}
	m.updateActiveView()
}

func (m *Model) activeNode() *TaskNode {
	return m.TaskMap[m.ActiveTaskName]
}

func (m *Model) updateActiveView() {
	m.ensureVisible()
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.Tasks) {
		return
	}
	node := m.Tasks[m.SelectedIdx]
	m.ActiveTaskName = node.Name
	if m.FollowMode {
		node.Term.ScrollToBottom()
	}
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}
