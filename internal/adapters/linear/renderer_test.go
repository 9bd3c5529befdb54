package linear_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/linear"
	"go.trai.ch/kiln/internal/ui/output"
)

func newPlainRenderer() (*linear.Renderer, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, linear.WithProfile(output.ColorProfileASCII))
	return r, &stdout, &stderr
}

func TestRenderer_TaskLifecycle(t *testing.T) {
	r, stdout, stderr := newPlainRenderer()

	require.NoError(t, r.Start(context.Background()))

	r.OnPlanEmit([]string{"data/frames_done.txt", "data/video.mp4"}, map[string][]string{
		"data/video.mp4": {"data/frames_done.txt"},
	}, []string{"data/video.mp4"})
	assert.Equal(t, "● Planning 2 task(s) for data/video.mp4\n", stderr.String())

	start := time.Date(2024, 7, 29, 12, 0, 0, 0, time.UTC)
	r.OnTaskStart("span1", "", "data/video.mp4", start)
	assert.Contains(t, stderr.String(), "[data/video.mp4] Starting...\n")

	r.OnTaskLog("span1", []byte("frame=  10\n"))
	r.OnTaskLog("span1", []byte("frame=  20\n"))
	assert.Equal(t, "[data/video.mp4] frame=  10\n[data/video.mp4] frame=  20\n", stdout.String())

	r.OnTaskComplete("span1", start.Add(1500*time.Millisecond), nil)
	assert.Contains(t, stderr.String(), "[data/video.mp4] ✓ Completed in 1.5s\n")

	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())
}

func TestRenderer_PartialLines(t *testing.T) {
	r, stdout, _ := newPlainRenderer()

	start := time.Now()
	r.OnTaskStart("span1", "", "task1", start)

	r.OnTaskLog("span1", []byte("partial"))
	assert.Empty(t, stdout.String())

	r.OnTaskLog("span1", []byte(" line\n"))
	assert.Equal(t, "[task1] partial line\n", stdout.String())

	r.OnTaskLog("span1", []byte("unflushed"))
	r.OnTaskComplete("span1", start.Add(50*time.Millisecond), nil)
	assert.Equal(t, "[task1] partial line\n[task1] unflushed\n", stdout.String())
}

func TestRenderer_TaskError(t *testing.T) {
	r, _, stderr := newPlainRenderer()

	start := time.Now()
	r.OnTaskStart("span1", "", "failing", start)
	r.OnTaskComplete("span1", start.Add(50*time.Millisecond), errors.New("exit status 1"))

	assert.Contains(t, stderr.String(), "[failing] ✗ Failed after 50ms: exit status 1\n")
}

func TestRenderer_InterleavedTasks(t *testing.T) {
	r, stdout, _ := newPlainRenderer()

	start := time.Now()
	r.OnTaskStart("span1", "", "all", start)
	r.OnTaskStart("span2", "span1", "out/a.txt", start)

	r.OnTaskLog("span2", []byte("a\n"))
	r.OnTaskLog("span1", []byte("b\n"))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{"[out/a.txt] a", "[all] b"}, lines)
}

func TestRenderer_ColorOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, linear.WithProfile(func() termenv.Profile { return termenv.ANSI }))

	start := time.Now()
	r.OnTaskStart("span1", "", "task1", start)
	r.OnTaskComplete("span1", start, nil)

	assert.Contains(t, stderr.String(), "\x1b[")
}

func TestRenderer_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	start := time.Now()
	r.OnTaskStart("span1", "", "task1", start)
	r.OnTaskComplete("span1", start.Add(50*time.Millisecond), nil)

	assert.NotContains(t, stderr.String(), "\x1b[")
}

func TestRenderer_UnknownSpan(t *testing.T) {
	r, stdout, stderr := newPlainRenderer()

	r.OnTaskLog("unknown", []byte("ignored\n"))
	r.OnTaskComplete("unknown", time.Now(), nil)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_EmptyLines(t *testing.T) {
	r, stdout, _ := newPlainRenderer()

	r.OnTaskStart("span1", "", "task1", time.Now())
	r.OnTaskLog("span1", []byte("\n"))
	r.OnTaskLog("span1", []byte("\r\n"))

	assert.Empty(t, stdout.String())
}

func TestRenderer_StopFlushesBuffers(t *testing.T) {
	r, stdout, _ := newPlainRenderer()

	start := time.Now()
	r.OnTaskStart("span1", "", "task1", start)
	r.OnTaskStart("span2", "", "task2", start)
	r.OnTaskLog("span1", []byte("partial1"))
	r.OnTaskLog("span2", []byte("partial2"))

	require.NoError(t, r.Stop())

	assert.Contains(t, stdout.String(), "[task1] partial1\n")
	assert.Contains(t, stdout.String(), "[task2] partial2\n")
}
