package domain

import "time"

// BuildInfo records the last successful execution of a file task.
type BuildInfo struct {
	TaskName   string        `json:"task_name,omitzero"`
	OutputHash string        `json:"output_hash,omitzero"`
	Timestamp  time.Time     `json:"timestamp,omitzero"`
	Duration   time.Duration `json:"duration,omitzero"`
}

// FileStat is the subset of file metadata the workspace needs to decide staleness.
type FileStat struct {
	Exists  bool
	ModTime time.Time
}
