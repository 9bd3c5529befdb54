package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.trai.ch/kiln/internal/adapters/watcher"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/workspace"
	"go.trai.ch/kiln/internal/recipes"
)

// Watch runs targets once and again after every settled batch of file changes.
// Each rebuild reloads the configuration and opens a fresh session.
// Failed rebuilds are logged and watching continues until ctx is cancelled.
func (a *App) Watch(ctx context.Context, targets []string, opts RunOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}

	root, configPath, err := a.locate(opts.ConfigPath)
	if err != nil {
		return err
	}

	journal := a.openJournal(ctx, root)
	if journal != nil {
		defer func() {
			_ = journal.Close()
		}()
	}

	ws, err := a.build(ctx, root, configPath, targets, opts.OutputMode, journal)
	if ws == nil {
		// The configuration never loaded. There is nothing to watch for.
		return err
	}
	if err != nil {
		a.logger.Error(err)
	}

	var outputs atomic.Pointer[map[string]struct{}]
	initial := fileOutputs(root, ws)
	outputs.Store(&initial)

	if err := a.watcher.Start(ctx, root); err != nil {
		return err
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	trigger := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(a.debounce, func(paths []string) {
		select {
		case trigger <- paths:
		default:
			// A rebuild is already queued and will see these changes.
		}
	})
	defer debouncer.Stop()

	// Writes made by a rebuild must not schedule another one.
	var building atomic.Bool
	go func() {
		for ev := range a.watcher.Events() {
			if building.Load() || ignoreChange(ev.Path, *outputs.Load()) {
				continue
			}
			debouncer.Add(ev.Path)
		}
	}()

	rebuild := func() {
		building.Store(true)
		defer func() {
			debouncer.Stop()
			building.Store(false)
		}()

		ws, err := a.build(ctx, root, configPath, targets, opts.OutputMode, journal)
		if err != nil {
			a.logger.Error(err)
		}
		if ws != nil {
			o := fileOutputs(root, ws)
			outputs.Store(&o)
		}
	}

	a.logger.Info("watching for changes", "root", root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-trigger:
			a.logger.Info("change detected", "paths", len(paths), "first", paths[0])
			rebuild()
		}
	}
}

// fileOutputs returns the absolute output paths of every file task in ws.
func fileOutputs(root string, ws *workspace.Workspace) map[string]struct{} {
	out := make(map[string]struct{})
	for _, name := range ws.Names("") {
		h, ok := ws.Task(name)
		if !ok || h.Kind() != domain.KindFile {
			continue
		}
		p := filepath.FromSlash(name)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out[p] = struct{}{}
	}
	return out
}

// ignoreChange drops events caused by the build itself.
func ignoreChange(path string, outputs map[string]struct{}) bool {
	if watcher.Ignored(path) {
		return true
	}
	if strings.HasPrefix(filepath.Base(path), recipes.PartialPrefix) {
		return true
	}
	_, ok := outputs[filepath.Clean(path)]
	return ok
}
