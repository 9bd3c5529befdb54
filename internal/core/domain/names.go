package domain

import (
	"os"
	"path"
	"strings"

	"go.trai.ch/zerr"
)

// NormalizeTaskName converts OS path separators in name to "/" and cleans the result,
// so "./data//all" and "data/all" name the same task. A leading "/" is kept.
func NormalizeTaskName(name string) string {
	if os.PathSeparator != '/' {
		name = strings.ReplaceAll(name, string(os.PathSeparator), "/")
	}
	if name == "" {
		return name
	}
	return path.Clean(name)
}

// JoinTaskName joins name elements with "/" and cleans the result.
// Empty elements are ignored, so an empty prefix leaves the name untouched.
func JoinTaskName(elem ...string) string {
	return path.Join(elem...)
}

// ValidateTaskName reports whether name can identify a task.
func ValidateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return zerr.With(zerr.Wrap(ErrInvalidTaskName, "task name is empty"), "task", name)
	}
	if strings.ContainsRune(name, 0) {
		return zerr.With(zerr.Wrap(ErrInvalidTaskName, "task name contains a NUL byte"), "task", name)
	}
	return nil
}
