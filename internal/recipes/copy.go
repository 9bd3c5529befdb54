package recipes

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Copy registers dest as a copy of src. The copy is written to a temporary file and renamed.
func (t *Toolbox) Copy(reg ports.Registry, dest, src string) (domain.TaskHandle, error) {
	dest = domain.NormalizeTaskName(dest)
	src = domain.NormalizeTaskName(src)
	return reg.CreateFileTask(dest, []string{src}, func(context.Context) error {
		return t.fs.CopyFile(dest, src)
	})
}
