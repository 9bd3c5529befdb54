package recipes

import (
	"context"
	"fmt"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/plot"
)

// FrameRenderer writes frame index of a sequence as a PNG. t runs from 0 to 1 across the sequence.
type FrameRenderer func(ctx context.Context, index int, t float64, w io.Writer) error

// FrameTasks renders a numbered frame sequence behind a single done file.
type FrameTasks struct {
	Prefix       string
	Name         string
	Count        int
	Render       FrameRenderer
	Dependencies []string
	// Video, when set, encodes the frames once they are done.
	// An empty Video.Prefix means the frames' prefix.
	Video *VideoTasks
}

// DoneName is the file marking the whole sequence as rendered.
func (f FrameTasks) DoneName() string { return domain.DoneFileName(f.Prefix, f.Name) }

// Pattern is the printf pattern of the frame files.
func (f FrameTasks) Pattern() string { return domain.FramePattern(f.Prefix, f.Name) }

// Frames registers the done file task and, when requested, the video tasks that consume it.
// Frames already on disk are kept, so an interrupted render resumes where it stopped.
func (t *Toolbox) Frames(reg ports.Registry, f FrameTasks) (domain.TaskHandle, error) {
	if f.Name == "" {
		return domain.TaskHandle{}, invalid("frames", "name is required")
	}
	if f.Count <= 0 {
		return domain.TaskHandle{}, invalid("frames", "frame count must be positive")
	}
	if f.Render == nil {
		return domain.TaskHandle{}, invalid("frames", "renderer is required")
	}

	done := f.DoneName()
	pattern := f.Pattern()
	count := f.Count
	render := f.Render

	action := func(ctx context.Context) error {
		for i := range count {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame := fmt.Sprintf(pattern, i)
			st, err := t.fs.Stat(frame)
			if err != nil {
				return err
			}
			if st.Exists {
				continue
			}
			tm := plot.FrameTime(i, count)
			if err := t.fs.WriteFile(frame, func(w io.Writer) error {
				return render(ctx, i, tm, w)
			}); err != nil {
				return err
			}
		}
		return t.fs.WriteFile(done, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%d frames\n", count)
			return err
		})
	}

	handle, err := reg.CreateFileTask(done, withDeps(f.Dependencies), action)
	if err != nil || f.Video == nil {
		return handle, err
	}

	v := *f.Video
	if v.Prefix == "" {
		v.Prefix = f.Prefix
	}
	v.FramePattern = pattern
	v.Dependencies = withDeps(v.Dependencies, done)
	if _, err := t.Video(reg, v); err != nil {
		return domain.TaskHandle{}, err
	}
	return handle, nil
}

// GaussianPathFrames renders each frame as a heatmap of the Gaussian at that point on path.
// The grid has n x n cells over b.
func GaussianPathFrames(path plot.GaussianPath, b plot.Bounds, n int, s plot.Scale) FrameRenderer {
	return func(_ context.Context, _ int, t float64, w io.Writer) error {
		mu, sigma := path.At(t)
		return plot.Heatmap(w, plot.CenteredGrid(plot.Gaussian(mu.X, mu.Y, sigma), b, n), s)
	}
}
