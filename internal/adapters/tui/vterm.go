package tui

import (
	"bytes"
	"sync"

	"github.com/vito/midterm"
)

// Vterm keeps one task's output in a virtual terminal so progress bars and
// cursor movement from tools like ffmpeg render the way they would on a tty.
type Vterm struct {
	mu      sync.Mutex
	vt      *midterm.Terminal
	viewBuf bytes.Buffer

	// Offset is the first buffer row shown.
	Offset int
	Height int
	Width  int
}

// NewVterm creates an empty terminal one row high.
func NewVterm() *Vterm {
	return &Vterm{
		vt:     midterm.NewAutoResizingTerminal(),
		Height: 1,
	}
}

// Write feeds task output into the terminal. A view that was following the
// bottom keeps following it.
func (v *Vterm) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.Offset >= v.maxOffset()
	n, err := v.vt.Write(p)
	if follow {
		v.Offset = v.maxOffset()
	}
	return n, err
}

// SetSize resizes the visible window.
func (v *Vterm) SetSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.Offset >= v.maxOffset()
	v.Width = max(width, 1)
	v.Height = max(height, 1)
	v.vt.ResizeX(v.Width)
	if follow {
		v.Offset = v.maxOffset()
	}
	v.clamp()
}

// UsedHeight returns the number of rows written so far.
func (v *Vterm) UsedHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vt.UsedHeight()
}

// ScrollBy moves the window by n rows, negative towards the top.
func (v *Vterm) ScrollBy(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset += n
	v.clamp()
}

// ScrollToTop shows the first row.
func (v *Vterm) ScrollToTop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset = 0
}

// ScrollToBottom shows the last rows and resumes following new output.
func (v *Vterm) ScrollToBottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset = v.maxOffset()
}

// View renders the visible rows.
func (v *Vterm) View() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clamp()
	v.viewBuf.Reset()
	for i := 0; i < v.Height; i++ {
		row := v.Offset + i
		if row >= v.vt.UsedHeight() {
			break
		}
		if i > 0 {
			_ = v.viewBuf.WriteByte('\n')
		}
		_ = v.vt.RenderLine(&v.viewBuf, row)
	}
	return v.viewBuf.String()
}

func (v *Vterm) clamp() {
	v.Offset = min(max(v.Offset, 0), v.maxOffset())
}

func (v *Vterm) maxOffset() int {
	return max(v.vt.UsedHeight()-v.Height, 0)
}
