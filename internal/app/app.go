// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sahilm/fuzzy"
	"go.trai.ch/kiln/internal/adapters/detector"
	"go.trai.ch/kiln/internal/adapters/linear"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/adapters/tui"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/workspace"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	loader   ports.ConfigLoader
	files    ports.FileSystem
	logger   ports.Logger
	store    ports.BuildInfoStore
	journals ports.JournalOpener
	watcher  ports.Watcher

	stdout   io.Writer
	stderr   io.Writer
	clock    clockwork.Clock
	detect   func() detector.OutputMode
	debounce time.Duration
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	files ports.FileSystem,
	log ports.Logger,
	store ports.BuildInfoStore,
	journals ports.JournalOpener,
	watcher ports.Watcher,
) *App {
	return &App{
		loader:   loader,
		files:    files,
		logger:   log,
		store:    store,
		journals: journals,
		watcher:  watcher,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		clock:    clockwork.NewRealClock(),
		detect:   detector.DetectEnvironment,
	}
}

// WithOutput redirects task output and progress lines.
// This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithClock replaces the clock handed to every workspace.
func (a *App) WithClock(clock clockwork.Clock) *App {
	a.clock = clock
	return a
}

// WithDebounce sets how long Watch waits for a burst of changes to settle.
func (a *App) WithDebounce(window time.Duration) *App {
	a.debounce = window
	return a
}

// RunOptions configuration for the Run, Watch, List, Plan and Explain methods.
type RunOptions struct {
	// ConfigPath is a kiln.yaml file or a directory to discover one from.
	// Empty means the working directory.
	ConfigPath string
	OutputMode string
}

// Run executes the given targets in one session.
func (a *App) Run(ctx context.Context, targets []string, opts RunOptions) error {
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

	_, err = a.build(ctx, root, configPath, targets, opts.OutputMode, journal)
	return err
}

// List returns the registered tasks whose names start with prefix.
func (a *App) List(_ context.Context, prefix string, opts RunOptions) ([]domain.TaskHandle, error) {
	ws, err := a.load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	names := ws.Names(prefix)
	handles := make([]domain.TaskHandle, 0, len(names))
	for _, name := range names {
		if h, ok := ws.Task(name); ok {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

// Plan returns the registered tasks a session over targets would visit, in run order.
// Dependencies that are only files on disk are left out.
func (a *App) Plan(_ context.Context, targets []string, opts RunOptions) ([]domain.TaskHandle, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}

	ws, err := a.load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	for _, target := range targets {
		if _, ok := ws.Task(target); !ok {
			err := zerr.With(zerr.Wrap(domain.ErrMissingTask, "task is not registered"), "task", domain.NormalizeTaskName(target))
			return nil, withSuggestion(err, ws, targets)
		}
	}

	names := ws.Plan(targets...)
	handles := make([]domain.TaskHandle, 0, len(names))
	for _, name := range names {
		if h, ok := ws.Task(name); ok {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

// Explain reports whether name would run and why, without running anything.
func (a *App) Explain(_ context.Context, name string, opts RunOptions) (*domain.Explanation, error) {
	ws, err := a.load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	exp, err := ws.Explain(name)
	if err != nil {
		return nil, withSuggestion(err, ws, []string{name})
	}
	return exp, nil
}

// History returns up to limit recorded sessions, newest first.
func (a *App) History(ctx context.Context, limit int, opts RunOptions) ([]domain.SessionSummary, error) {
	root, _, err := a.locate(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	journal, err := a.journals.Open(ctx, root)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = journal.Close()
	}()

	return journal.Recent(ctx, limit)
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	ConfigPath string
	// Journal also removes the session history.
	Journal bool
}

// Clean removes kiln's own state under the project root. Task outputs are left alone.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	root, _, err := a.locate(options.ConfigPath)
	if err != nil {
		return err
	}

	var errs error

	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := a.files.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	remove(filepath.Join(root, domain.DefaultStorePath()), "build info store")

	if options.Journal {
		journal := filepath.Join(root, domain.DefaultJournalPath())
		remove(journal, "session journal")
		// SQLite keeps WAL side files next to the database.
		for _, suffix := range []string{"-wal", "-shm"} {
			if err := a.files.RemoveAll(journal + suffix); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}

	return errs
}

// locate resolves the project root and the path handed to the loader.
func (a *App) locate(configPath string) (root, path string, err error) {
	if configPath == "" {
		configPath = "."
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", "", zerr.With(zerr.Wrap(err, "failed to resolve config path"), "path", configPath)
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		return filepath.Dir(abs), abs, nil
	}

	root, err = a.loader.DiscoverRoot(abs)
	if err != nil {
		return "", "", err
	}
	return root, root, nil
}

// load registers the project's tasks into a workspace without running anything.
func (a *App) load(configPath string) (*workspace.Workspace, error) {
	root, path, err := a.locate(configPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(root); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to enter project root"), "root", root)
	}

	ws := a.newWorkspace(root, telemetry.NewNoOpTracer(), nil)
	if _, err := a.loader.Load(path, ws); err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return ws, nil
}

// build loads the configuration into a fresh workspace and runs targets in one session.
// The workspace is returned even when the run fails so callers can inspect it.
func (a *App) build(
	ctx context.Context,
	root, configPath string,
	targets []string,
	outputMode string,
	journal ports.Journal,
) (*workspace.Workspace, error) {
	// Task names are relative to the project root.
	if err := os.Chdir(root); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to enter project root"), "root", root)
	}

	renderer, tracer, shutdown := a.output(outputMode)
	defer shutdown()

	ws := a.newWorkspace(root, tracer, journal)
	if _, err := a.loader.Load(configPath, ws); err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	run := func(ctx context.Context) error {
		if err := ws.RunAll(ctx, targets); err != nil {
			return errors.Join(domain.ErrBuildExecutionFailed, withSuggestion(err, ws, targets))
		}
		return nil
	}

	if renderer == nil {
		return ws, run(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		return run(ctx)
	})

	return ws, g.Wait()
}

func (a *App) newWorkspace(root string, tracer ports.Tracer, journal ports.Journal) *workspace.Workspace {
	opts := []workspace.Option{
		workspace.WithRoot(root),
		workspace.WithStore(a.store),
		workspace.WithClock(a.clock),
	}
	if journal != nil {
		opts = append(opts, workspace.WithJournal(journal))
	}
	return workspace.New(a.files, a.logger, tracer, opts...)
}

// output picks the renderer and tracer for a run. Quiet mode has no renderer.
// Pretty mode is the interactive task list; linear mode prints one line per event.
func (a *App) output(flag string) (ports.Renderer, ports.Tracer, func()) {
	var renderer ports.Renderer
	switch detector.ResolveMode(a.detect(), flag) {
	case detector.ModeQuiet:
		return nil, telemetry.NewNoOpTracer(), func() {}
	case detector.ModePretty:
		renderer = tui.NewRenderer(a.stderr)
	default:
		renderer = linear.NewRenderer(a.stdout, a.stderr, linear.WithProfile(output.ColorProfileANSI))
	}

	tp := telemetry.NewTracerProvider(renderer)
	tracer := telemetry.NewOTelTracer(
		telemetry.WithTracerProvider(tp),
		telemetry.WithRenderer(renderer),
	)
	return renderer, tracer, func() {
		_ = tp.Shutdown(context.Background())
	}
}

// openJournal opens the session journal. History is best effort, so a failure only warns.
func (a *App) openJournal(ctx context.Context, root string) ports.Journal {
	journal, err := a.journals.Open(ctx, root)
	if err != nil {
		a.logger.Warn("session history disabled", "reason", err.Error())
		return nil
	}
	return journal
}

// withSuggestion attaches the closest registered name when a target is missing.
func withSuggestion(err error, ws *workspace.Workspace, targets []string) error {
	if !errors.Is(err, domain.ErrMissingTask) {
		return err
	}
	names := ws.Names("")
	for _, target := range targets {
		if _, ok := ws.Task(target); ok {
			continue
		}
		if matches := fuzzy.Find(domain.NormalizeTaskName(target), names); len(matches) > 0 {
			return zerr.With(err, "did_you_mean", matches[0].Str)
		}
	}
	return err
}
