package app_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type harness struct {
	root     string
	config   string
	loader   *mocks.MockConfigLoader
	files    *mocks.MockFileSystem
	logger   *mocks.MockLogger
	store    *mocks.MockBuildInfoStore
	journals *mocks.MockJournalOpener
	watcher  *mocks.MockWatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	root := t.TempDir()
	return &harness{
		root:     root,
		config:   filepath.Join(root, domain.ConfigFileName),
		loader:   mocks.NewMockConfigLoader(ctrl),
		files:    mocks.NewMockFileSystem(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
		store:    mocks.NewMockBuildInfoStore(ctrl),
		journals: mocks.NewMockJournalOpener(ctrl),
		watcher:  mocks.NewMockWatcher(ctrl),
	}
}

// app uses the real file system so tasks can check their outputs.
func (h *harness) app() *app.App {
	return app.New(h.loader, fs.New(""), h.logger, h.store, h.journals, h.watcher)
}

func (h *harness) quietLogs() {
	h.logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	h.logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	h.logger.EXPECT().Error(gomock.Any()).AnyTimes()
}

func (h *harness) noJournal() {
	h.journals.EXPECT().Open(gomock.Any(), h.root).Return(nil, errors.New("read-only file system")).AnyTimes()
}

// register makes the mocked loader register tasks on every Load.
func (h *harness) register(fn func(reg ports.Registry) error) {
	h.loader.EXPECT().Load(h.config, gomock.Any()).DoAndReturn(
		func(_ string, reg ports.Registry) (*domain.Project, error) {
			if err := fn(reg); err != nil {
				return nil, err
			}
			return &domain.Project{Root: h.root, ConfigFiles: []string{h.config}}, nil
		},
	).AnyTimes()
}

func quiet(h *harness) app.RunOptions {
	return app.RunOptions{ConfigPath: h.config, OutputMode: "quiet"}
}

func TestApp_Run_NoTargets(t *testing.T) {
	h := newHarness(t)

	err := h.app().Run(context.Background(), nil, quiet(h))
	require.ErrorIs(t, err, domain.ErrNoTargetsSpecified)
}

func TestApp_Run(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()

	journal := mocks.NewMockJournal(gomock.NewController(t))
	h.journals.EXPECT().Open(gomock.Any(), h.root).Return(journal, nil)
	journal.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *domain.SessionSummary) error {
			assert.Equal(t, []string{"all"}, s.Targets)
			assert.Equal(t, 1, s.Count(domain.StateExecuted))
			assert.Equal(t, 1, s.Count(domain.StateSkipped))
			return nil
		},
	)
	journal.EXPECT().Close().Return(nil)

	// The output already exists, so only the command task runs.
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "out.txt"), []byte("x"), 0o600))

	var commands int
	h.register(func(reg ports.Registry) error {
		if _, err := reg.CreateFileTask("out.txt", nil, func(context.Context) error {
			t.Error("up to date output was rebuilt")
			return nil
		}); err != nil {
			return err
		}
		_, err := reg.CreateCommandTask("all", []string{"out.txt"}, func(context.Context) error {
			commands++
			return nil
		})
		return err
	})

	err := h.app().Run(context.Background(), []string{"all"}, quiet(h))
	require.NoError(t, err)
	assert.Equal(t, 1, commands)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, h.root, cwd, "tasks run from the project root")
}

func TestApp_Run_BuildsAndRecords(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	h.store.EXPECT().Put(h.root, gomock.Any()).DoAndReturn(func(_ string, info domain.BuildInfo) error {
		assert.Equal(t, "out.txt", info.TaskName)
		assert.NotEmpty(t, info.OutputHash)
		return nil
	})

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateFileTask("out.txt", nil, func(context.Context) error {
			return os.WriteFile("out.txt", []byte("built"), 0o600)
		})
		return err
	})

	require.NoError(t, h.app().Run(context.Background(), []string{"out.txt"}, quiet(h)))
	assert.FileExists(t, filepath.Join(h.root, "out.txt"))
}

func TestApp_Run_LinearOutput(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateCommandTask("greet", nil, func(ctx context.Context) error {
			_, err := domain.TaskOutput(ctx).Write([]byte("hello\n"))
			return err
		})
		return err
	})

	var stdout, stderr bytes.Buffer
	a := h.app().WithOutput(&stdout, &stderr)

	err := a.Run(context.Background(), []string{"greet"}, app.RunOptions{ConfigPath: h.config, OutputMode: "linear"})
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "Planning 1 task(s) for greet")
	assert.Contains(t, stderr.String(), "[greet]")
	assert.Contains(t, stderr.String(), "Completed in")
}

func TestApp_Run_MissingTaskSuggestsName(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateCommandTask("data/train", nil, nil)
		return err
	})

	err := h.app().Run(context.Background(), []string{"data/tran"}, quiet(h))
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.ErrorIs(t, err, domain.ErrMissingTask)

	var joined interface{ Unwrap() []error }
	require.ErrorAs(t, err, &joined)
	var zErr *zerr.Error
	require.ErrorAs(t, joined.Unwrap()[1], &zErr)
	assert.Equal(t, "data/train", zErr.Metadata()["did_you_mean"])
}

func TestApp_Run_LoadError(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	h.loader.EXPECT().Load(h.config, gomock.Any()).Return(nil, domain.ErrConfigParseFailed)

	err := h.app().Run(context.Background(), []string{"all"}, quiet(h))
	require.ErrorIs(t, err, domain.ErrConfigParseFailed)
	assert.NotErrorIs(t, err, domain.ErrBuildExecutionFailed)
}

func TestApp_Run_JournalUnavailableWarns(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	h.logger.EXPECT().Warn("session history disabled", "reason", "read-only file system")
	h.noJournal()

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateCommandTask("all", nil, nil)
		return err
	})

	require.NoError(t, h.app().Run(context.Background(), []string{"all"}, quiet(h)))
}

func TestApp_Run_DiscoversRoot(t *testing.T) {
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	sub := filepath.Join(h.root, "data", "paths")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	h.loader.EXPECT().DiscoverRoot(sub).Return(h.root, nil)
	h.loader.EXPECT().Load(h.root, gomock.Any()).DoAndReturn(
		func(_ string, reg ports.Registry) (*domain.Project, error) {
			_, err := reg.CreateCommandTask("all", nil, nil)
			return &domain.Project{Root: h.root}, err
		},
	)

	err := h.app().Run(context.Background(), []string{"all"}, app.RunOptions{OutputMode: "quiet"})
	require.NoError(t, err)
}

func TestApp_Run_ConfigNotFound(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	h := newHarness(t)

	h.loader.EXPECT().DiscoverRoot(dir).Return("", domain.ErrConfigNotFound)

	err := h.app().Run(context.Background(), []string{"all"}, app.RunOptions{})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestApp_List(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)

	h.register(func(reg ports.Registry) error {
		for _, name := range []string{"data/b.txt", "data/a.txt", "other.txt"} {
			if _, err := reg.CreateFileTask(name, nil, nil); err != nil {
				return err
			}
		}
		_, err := reg.CreateCommandTask("data/all", []string{"data/a.txt", "data/b.txt"}, nil)
		return err
	})

	handles, err := h.app().List(context.Background(), "data/", quiet(h))
	require.NoError(t, err)

	var names []string
	for _, handle := range handles {
		names = append(names, handle.Name())
	}
	assert.Equal(t, []string{"data/a.txt", "data/all", "data/b.txt"}, names)
	assert.Equal(t, domain.KindCommand, handles[1].Kind())
	assert.Equal(t, []string{"data/a.txt", "data/b.txt"}, handles[1].Dependencies())
}

func TestApp_Plan(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)

	h.register(func(reg ports.Registry) error {
		if _, err := reg.CreateFileTask("data/train.pt", []string{"data/raw.bin"}, nil); err != nil {
			return err
		}
		if _, err := reg.CreateFileTask("plot/loss.png", []string{"data/train.pt"}, nil); err != nil {
			return err
		}
		if _, err := reg.CreateFileTask("unrelated.txt", nil, nil); err != nil {
			return err
		}
		_, err := reg.CreateCommandTask("all", []string{"plot/loss.png", "data/train.pt"}, nil)
		return err
	})

	handles, err := h.app().Plan(context.Background(), []string{"./all"}, quiet(h))
	require.NoError(t, err)

	var names []string
	for _, handle := range handles {
		names = append(names, handle.Name())
	}
	assert.Equal(t, []string{"data/train.pt", "plot/loss.png", "all"}, names, "post-order, sources on disk left out")
}

func TestApp_PlanMissingTarget(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateFileTask("data/train.pt", nil, nil)
		return err
	})

	_, err := h.app().Plan(context.Background(), []string{"data/tran.pt"}, quiet(h))
	require.ErrorIs(t, err, domain.ErrMissingTask)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "data/train.pt", zErr.Metadata()["did_you_mean"])
	assert.Equal(t, "data/tran.pt", zErr.Metadata()["task"])
}

func TestApp_Explain(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)

	last := &domain.BuildInfo{TaskName: "out.txt", OutputHash: "abc"}
	h.store.EXPECT().Get(h.root, "out.txt").Return(last, nil)

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateFileTask("out.txt", nil, nil)
		return err
	})

	exp, err := h.app().Explain(context.Background(), "out.txt", quiet(h))
	require.NoError(t, err)
	assert.True(t, exp.Stale)
	assert.Equal(t, domain.ReasonOutputMissing, exp.Reason)
	assert.Same(t, last, exp.LastBuilt)
}

func TestApp_Explain_MissingTaskSuggestsName(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)

	h.register(func(reg ports.Registry) error {
		_, err := reg.CreateCommandTask("render", nil, nil)
		return err
	})

	_, err := h.app().Explain(context.Background(), "rendr", quiet(h))
	require.ErrorIs(t, err, domain.ErrMissingTask)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "render", zErr.Metadata()["did_you_mean"])
}

func TestApp_History(t *testing.T) {
	h := newHarness(t)

	journal := mocks.NewMockJournal(gomock.NewController(t))
	sessions := []domain.SessionSummary{{ID: "b"}, {ID: "a"}}
	h.journals.EXPECT().Open(gomock.Any(), h.root).Return(journal, nil)
	journal.EXPECT().Recent(gomock.Any(), 5).Return(sessions, nil)
	journal.EXPECT().Close().Return(nil)

	got, err := h.app().History(context.Background(), 5, quiet(h))
	require.NoError(t, err)
	assert.Equal(t, sessions, got)
}

func TestApp_History_OpenFails(t *testing.T) {
	h := newHarness(t)
	h.journals.EXPECT().Open(gomock.Any(), h.root).Return(nil, domain.ErrJournalOpenFailed)

	_, err := h.app().History(context.Background(), 5, quiet(h))
	require.ErrorIs(t, err, domain.ErrJournalOpenFailed)
}

func TestApp_Clean(t *testing.T) {
	tests := []struct {
		name    string
		journal bool
		removed []string
	}{
		{
			name:    "StoreOnly",
			removed: []string{".kiln/store"},
		},
		{
			name:    "WithJournal",
			journal: true,
			removed: []string{".kiln/store", ".kiln/journal.db", ".kiln/journal.db-wal", ".kiln/journal.db-shm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.logger.EXPECT().Info(gomock.Any()).AnyTimes()
			for _, p := range tt.removed {
				h.files.EXPECT().RemoveAll(filepath.Join(h.root, filepath.FromSlash(p))).Return(nil)
			}

			a := app.New(h.loader, h.files, h.logger, h.store, h.journals, h.watcher)
			err := a.Clean(context.Background(), app.CleanOptions{ConfigPath: h.config, Journal: tt.journal})
			require.NoError(t, err)
		})
	}
}

func TestApp_Clean_ReportsFailures(t *testing.T) {
	h := newHarness(t)
	h.logger.EXPECT().Info("removing build info store...")
	h.files.EXPECT().RemoveAll(filepath.Join(h.root, ".kiln", "store")).Return(errors.New("permission denied"))

	a := app.New(h.loader, h.files, h.logger, h.store, h.journals, h.watcher)
	err := a.Clean(context.Background(), app.CleanOptions{ConfigPath: h.config})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove build info store")
}

// events returns a watcher stream that yields evs once.
func events(evs ...ports.WatchEvent) iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for _, ev := range evs {
			if !yield(ev) {
				return
			}
		}
	}
}

func TestApp_Watch(t *testing.T) {
	t.Chdir(t.TempDir())
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.quietLogs()
		h.noJournal()

		var builds atomic.Int32
		h.register(func(reg ports.Registry) error {
			if _, err := reg.CreateFileTask("out.txt", nil, nil); err != nil {
				return err
			}
			_, err := reg.CreateCommandTask("build", nil, func(context.Context) error {
				builds.Add(1)
				return nil
			})
			return err
		})

		h.watcher.EXPECT().Start(gomock.Any(), h.root).Return(nil)
		h.watcher.EXPECT().Events().Return(events(
			ports.WatchEvent{Path: filepath.Join(h.root, "out.txt"), Operation: ports.OpWrite},
			ports.WatchEvent{Path: filepath.Join(h.root, ".partial-video.mp4"), Operation: ports.OpCreate},
			ports.WatchEvent{Path: filepath.Join(h.root, "src", "scene.json"), Operation: ports.OpWrite},
			ports.WatchEvent{Path: filepath.Join(h.root, "src", "scene.json"), Operation: ports.OpWrite},
		))
		h.watcher.EXPECT().Stop().Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		a := h.app().WithDebounce(50 * time.Millisecond)
		go func() {
			done <- a.Watch(ctx, []string{"build"}, quiet(h))
		}()

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, int32(2), builds.Load(), "one initial build and one rebuild")

		cancel()
		require.NoError(t, <-done)
	})
}

func TestApp_Watch_IgnoresOnlyOutputs(t *testing.T) {
	t.Chdir(t.TempDir())
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.quietLogs()
		h.noJournal()

		var builds atomic.Int32
		h.register(func(reg ports.Registry) error {
			if _, err := reg.CreateFileTask("out.txt", nil, nil); err != nil {
				return err
			}
			_, err := reg.CreateCommandTask("build", nil, func(context.Context) error {
				builds.Add(1)
				return nil
			})
			return err
		})

		h.watcher.EXPECT().Start(gomock.Any(), h.root).Return(nil)
		h.watcher.EXPECT().Events().Return(events(
			ports.WatchEvent{Path: filepath.Join(h.root, "out.txt"), Operation: ports.OpWrite},
			ports.WatchEvent{Path: filepath.Join(h.root, ".kiln", "journal.db"), Operation: ports.OpWrite},
		))
		h.watcher.EXPECT().Stop().Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- h.app().Watch(ctx, []string{"build"}, quiet(h))
		}()

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, int32(1), builds.Load())

		cancel()
		require.NoError(t, <-done)
	})
}

func TestApp_Watch_LoadFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	h := newHarness(t)
	h.quietLogs()
	h.noJournal()

	h.loader.EXPECT().Load(h.config, gomock.Any()).Return(nil, domain.ErrConfigParseFailed)

	err := h.app().Watch(context.Background(), []string{"build"}, quiet(h))
	require.ErrorIs(t, err, domain.ErrConfigParseFailed)
}
