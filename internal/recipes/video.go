package recipes

import (
	"strconv"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// DefaultFrameRate is used when VideoTasks.FrameRate is not set.
const DefaultFrameRate = 30

// VideoTasks encodes a numbered frame sequence into a lossless video and a web friendly copy.
type VideoTasks struct {
	Prefix string
	// FramePattern is the printf style input pattern, such as "frames/%08d.png".
	FramePattern string
	FrameRate    int
	Dependencies []string
	// FFmpeg is the executable to run. It defaults to "ffmpeg".
	FFmpeg string
}

// VideoName is the lossless video.
func (v VideoTasks) VideoName() string { return domain.JoinTaskName(v.Prefix, "video.mp4") }

// WebVideoName is the re-encoded video browsers can play.
func (v VideoTasks) WebVideoName() string { return domain.JoinTaskName(v.Prefix, "video_for_web.mp4") }

// AllName groups both videos.
func (v VideoTasks) AllName() string { return domain.JoinTaskName(v.Prefix, AllTaskName) }

// Video registers the video tasks and returns the grouping task.
func (t *Toolbox) Video(reg ports.Registry, v VideoTasks) (domain.TaskHandle, error) {
	if v.FramePattern == "" {
		return domain.TaskHandle{}, invalid("video", "frame pattern is required")
	}
	if v.FrameRate <= 0 {
		v.FrameRate = DefaultFrameRate
	}
	if v.FFmpeg == "" {
		v.FFmpeg = "ffmpeg"
	}
	rate := strconv.Itoa(v.FrameRate)

	video := v.VideoName()
	partial := partialName(video)
	encode := domain.Command{
		Name: video,
		Args: []string{
			v.FFmpeg, "-y",
			"-framerate", rate,
			"-i", v.FramePattern,
			"-c:v", "libx264rgb", "-crf", "0",
			"-r", rate,
			partial,
		},
	}
	if _, err := reg.CreateFileTask(video, withDeps(v.Dependencies), t.produce(video, partial, encode)); err != nil {
		return domain.TaskHandle{}, err
	}

	web := v.WebVideoName()
	partial = partialName(web)
	reencode := domain.Command{
		Name: web,
		Args: []string{
			v.FFmpeg, "-y",
			"-i", video,
			"-vcodec", "libx264", "-pix_fmt", "yuv420p",
			"-acodec", "aac", "-strict", "-2", "-ac", "2", "-ab", "160k",
			"-preset", "slow",
			"-f", "mp4",
			partial,
		},
	}
	if _, err := reg.CreateFileTask(web, []string{video}, t.produce(web, partial, reencode)); err != nil {
		return domain.TaskHandle{}, err
	}

	return reg.CreateCommandTask(v.AllName(), []string{video, web}, nil)
}
