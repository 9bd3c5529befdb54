package ports

import "go.trai.ch/kiln/internal/core/domain"

// Registry is the registration half of a workspace.
// Task definitions receive it explicitly instead of reaching for a global table.
//
//go:generate mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type Registry interface {
	// CreateFileTask registers a task whose action produces the file at outputPath.
	// outputPath is also the task name.
	CreateFileTask(outputPath string, deps []string, action domain.Action) (domain.TaskHandle, error)

	// CreateCommandTask registers a task with no output file.
	// A nil action only ensures the dependencies ran.
	CreateCommandTask(name string, deps []string, action domain.Action) (domain.TaskHandle, error)
}
