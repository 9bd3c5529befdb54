package domain

import "time"

// StaleReason explains why a file task would or would not run.
type StaleReason uint8

const (
	// ReasonUpToDate means the output exists and is newer than every dependency.
	ReasonUpToDate StaleReason = iota
	// ReasonOutputMissing means the output file does not exist.
	ReasonOutputMissing
	// ReasonDependencyNewer means a dependency artifact is newer than the output.
	ReasonDependencyNewer
	// ReasonDependencyStale means a dependency would itself be rebuilt.
	ReasonDependencyStale
	// ReasonAlwaysRuns marks command tasks, which carry no freshness.
	ReasonAlwaysRuns
)

// String returns a short human readable description.
func (r StaleReason) String() string {
	switch r {
	case ReasonUpToDate:
		return "up to date"
	case ReasonOutputMissing:
		return "output missing"
	case ReasonDependencyNewer:
		return "dependency newer than output"
	case ReasonDependencyStale:
		return "dependency will be rebuilt"
	case ReasonAlwaysRuns:
		return "command tasks always run"
	default:
		return "unknown"
	}
}

// Explanation is the dry-run verdict for a single task.
type Explanation struct {
	Task   string
	Kind   TaskKind
	Stale  bool
	Reason StaleReason
	// Cause names the dependency behind ReasonDependencyNewer or ReasonDependencyStale.
	Cause     string
	OutputMod time.Time
	Newest    time.Time
	LastBuilt *BuildInfo
}
