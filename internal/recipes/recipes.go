// Package recipes defines families of related tasks on a registry.
//
// Every helper copies its parameters when it is called, so the actions it
// registers never observe later changes made by the caller.
package recipes

import (
	"context"
	"path"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// AllTaskName is the name of the command task that groups a recipe's outputs.
const AllTaskName = "all"

// Toolbox holds the side-effecting ports recipe actions use.
// Commands run in dir unless they name their own working directory.
type Toolbox struct {
	fs   ports.FileSystem
	exec ports.Executor
	dir  string
}

// New creates a Toolbox. dir should be the root relative task names resolve against.
func New(fsys ports.FileSystem, exec ports.Executor, dir string) *Toolbox {
	return &Toolbox{fs: fsys, exec: exec, dir: dir}
}

// Action returns an action that runs cmd with the task output as its stdout.
func (t *Toolbox) Action(cmd domain.Command) domain.Action {
	cmd = cmd.Clone()
	if cmd.WorkingDir == "" {
		cmd.WorkingDir = t.dir
	}
	return func(ctx context.Context) error {
		c := cmd.Clone()
		return t.exec.Execute(ctx, &c, domain.TaskOutput(ctx), nil)
	}
}

// produce returns an action that runs cmd, which writes partial, and then renames partial over out.
func (t *Toolbox) produce(out, partial string, cmd domain.Command) domain.Action {
	run := t.Action(cmd)
	return func(ctx context.Context) error {
		if err := run(ctx); err != nil {
			return err
		}
		return t.fs.Rename(partial, out)
	}
}

// PartialPrefix marks files a tool is still writing before they are renamed into place.
const PartialPrefix = ".partial-"

// partialName keeps the extension so tools that infer a format from it still work.
func partialName(out string) string {
	return path.Join(path.Dir(out), PartialPrefix+path.Base(out))
}

func invalid(recipe, reason string) error {
	return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, reason), "recipe", recipe)
}

func withDeps(deps []string, extra ...string) []string {
	out := slices.Clone(deps)
	return append(out, extra...)
}

func cloneEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
