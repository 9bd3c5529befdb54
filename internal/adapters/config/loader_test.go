package config_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/workspace"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	root   string
	loader *config.Loader
	ws     *workspace.Workspace
	exec   *mocks.MockExecutor
	log    *mocks.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	exec := mocks.NewMockExecutor(ctrl)

	root := t.TempDir()
	files := fs.New(root)
	return &fixture{
		root:   root,
		loader: config.NewLoader(log, files, exec),
		ws:     workspace.New(files, log, telemetry.NewNoOpTracer(), workspace.WithRoot(root)),
		exec:   exec,
		log:    log,
	}
}

func createFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	return path
}

func deps(t *testing.T, ws *workspace.Workspace, name string) []string {
	t.Helper()
	task, ok := ws.Task(name)
	require.True(t, ok, "task %s not registered", name)
	return task.Dependencies()
}

func TestLoad_TasksPrefixesAndIncludes(t *testing.T) {
	f := newFixture(t)
	createFile(t, f.root, "kiln.yaml", `
version: "1"
include: [data/kiln.yaml]
tasks:
  out/x.txt:
    cmd: ["sh", "-c", "echo hi > out/x.txt"]
    dependsOn: [input.txt]
  all:
    kind: command
    dependsOn: [out/x.txt, data/20240729/all]
`)
	createFile(t, f.root, "data/kiln.yaml", `
prefix: data/20240729
tasks:
  plot.png:
    dependsOn: [/tmp/shared.bin, ../../out/x.txt]
  all:
    kind: command
    dependsOn: [plot.png]
`)

	project, err := f.loader.Load(filepath.Join(f.root, "kiln.yaml"), f.ws)
	require.NoError(t, err)

	assert.Equal(t, f.root, project.Root)
	assert.Equal(t, []string{
		filepath.Join(f.root, "kiln.yaml"),
		filepath.Join(f.root, "data", "kiln.yaml"),
	}, project.ConfigFiles)
	assert.Equal(t, 4, project.Tasks)

	assert.Equal(t, []string{"input.txt"}, deps(t, f.ws, "out/x.txt"))
	assert.Equal(t, []string{"out/x.txt", "data/20240729/all"}, deps(t, f.ws, "all"))
	assert.Equal(t, []string{"/tmp/shared.bin", "out/x.txt"}, deps(t, f.ws, "data/20240729/plot.png"))

	task, _ := f.ws.Task("data/20240729/all")
	assert.Equal(t, domain.KindCommand, task.Kind())
}

func TestLoad_CommandString(t *testing.T) {
	f := newFixture(t)
	createFile(t, f.root, "kiln.yaml", `
environment:
  MODE: fast
  SEED: "1"
tasks:
  greet:
    kind: command
    cmd: sh -c 'echo "hi there"'
    environment:
      SEED: "2"
  sub:
    kind: command
    cmd: [pwd]
    workingDir: scripts
`)
	_, err := f.loader.Load(f.root, f.ws)
	require.NoError(t, err)

	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "greet", cmd.Name)
			assert.Equal(t, []string{"sh", "-c", `echo "hi there"`}, cmd.Args)
			assert.Equal(t, map[string]string{"MODE": "fast", "SEED": "2"}, cmd.Environment)
			assert.Equal(t, f.root, cmd.WorkingDir)
			return nil
		})
	require.NoError(t, f.ws.Run(context.Background(), "greet"))

	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, filepath.Join(f.root, "scripts"), cmd.WorkingDir)
			return nil
		})
	require.NoError(t, f.ws.Run(context.Background(), "sub"))
}

func TestLoad_Recipes(t *testing.T) {
	f := newFixture(t)
	createFile(t, f.root, "kiln.yaml", `
prefix: data/20240802
videos:
  - prefix: paths
    frames: paths/frames/%08d.png
frames:
  - prefix: viz
    name: gaussian_viz_frames
    count: 10
    video: true
    gaussian:
      from: [-1, 0]
      to: [1, 0]
      sigmaFrom: 0.5
      sigmaTo: 1
      ease: InOutCubic
copies:
  - from: /slides/talk.pdf
    to: public/talk.pdf
training:
  - prefix: runs/a
    script: train.py
    nodes: 2
    procsPerNode: 4
standalone:
  - prefix: runs/b
    script: train.py
    procsPerNode: 1
    checkpoints: [100]
    modules: [generator]
    rendezvous: {id: 1, port: 29500}
datasets:
  - prefix: two_dim
    mixture:
      circle: {count: 3, radius: 1, variance: 0.1}
densities:
  - output: probdist/gaussian.png
    gaussian: {x: 0, y: 0, sigma: 0.5}
  - output: probdist/uniform.png
    uniform: [0, 1, 0, 1]
`)
	project, err := f.loader.Load(f.root, f.ws)
	require.NoError(t, err)

	for _, name := range []string{
		"data/20240802/paths/video.mp4",
		"data/20240802/paths/video_for_web.mp4",
		"data/20240802/paths/all",
		"data/20240802/viz/gaussian_viz_frames_done.txt",
		"data/20240802/viz/video.mp4",
		"data/20240802/viz/all",
		"data/20240802/public/talk.pdf",
		"data/20240802/runs/a/train_node_000000",
		"data/20240802/runs/a/train_node_000001",
		"data/20240802/runs/a/all",
		"data/20240802/runs/b/checkpoint_0000/train_standalone",
		"data/20240802/runs/b/checkpoint_0001/train_standalone",
		"data/20240802/runs/b/checkpoint_0000/module_generator.pt",
		"data/20240802/runs/b/checkpoint_0001/module_generator.pt",
		"data/20240802/runs/b/train_standalone",
		"data/20240802/two_dim/heatmap.png",
		"data/20240802/two_dim/dataset.bin",
		"data/20240802/two_dim/scatter_plot.png",
		"data/20240802/two_dim/all",
		"data/20240802/probdist/gaussian.png",
		"data/20240802/probdist/uniform.png",
	} {
		_, ok := f.ws.Task(name)
		assert.True(t, ok, name)
	}
	assert.Equal(t, f.ws.Len(), project.Tasks)
	assert.Equal(t, []string{"/slides/talk.pdf"}, deps(t, f.ws, "data/20240802/public/talk.pdf"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantIs  error
		wantMsg string
	}{
		{
			name:    "UnknownField",
			files:   map[string]string{"kiln.yaml": "tasks:\n  a:\n    command: [ls]\n"},
			wantMsg: domain.ErrConfigParseFailed.Error(),
		},
		{
			name:    "BadCommandString",
			files:   map[string]string{"kiln.yaml": "tasks:\n  a:\n    cmd: \"echo 'unterminated\"\n"},
			wantMsg: domain.ErrConfigParseFailed.Error(),
		},
		{
			name:   "InvalidKind",
			files:  map[string]string{"kiln.yaml": "tasks:\n  a:\n    kind: service\n"},
			wantIs: domain.ErrInvalidTaskKind,
		},
		{
			name:   "SourceKind",
			files:  map[string]string{"kiln.yaml": "tasks:\n  a:\n    kind: source\n"},
			wantIs: domain.ErrInvalidTaskKind,
		},
		{
			name: "DuplicateAcrossFiles",
			files: map[string]string{
				"kiln.yaml":     "include: [sub/kiln.yaml]\ntasks:\n  sub/a:\n    kind: command\n",
				"sub/kiln.yaml": "prefix: sub\ntasks:\n  a:\n    kind: command\n",
			},
			wantIs: domain.ErrDuplicateTask,
		},
		{
			name: "IncludeCycle",
			files: map[string]string{
				"kiln.yaml":   "include: [a/kiln.yaml]\n",
				"a/kiln.yaml": "include: [../kiln.yaml]\n",
			},
			wantIs: domain.ErrConfigIncludeCycle,
		},
		{
			name:    "MissingInclude",
			files:   map[string]string{"kiln.yaml": "include: [nope/kiln.yaml]\n"},
			wantMsg: domain.ErrConfigReadFailed.Error(),
		},
		{
			name:   "UnknownEase",
			files:  map[string]string{"kiln.yaml": "frames:\n  - name: f\n    count: 2\n    gaussian: {sigmaFrom: 1, sigmaTo: 1, ease: wobble}\n"},
			wantIs: domain.ErrInvalidRecipe,
		},
		{
			name:   "BadBounds",
			files:  map[string]string{"kiln.yaml": "densities:\n  - output: a.png\n    bounds: [0, 1]\n    uniform: [0, 1, 0, 1]\n"},
			wantIs: domain.ErrInvalidRecipe,
		},
		{
			name:   "DensityWithTwoShapes",
			files:  map[string]string{"kiln.yaml": "densities:\n  - output: a.png\n    gaussian: {sigma: 1}\n    uniform: [0, 1, 0, 1]\n"},
			wantIs: domain.ErrInvalidRecipe,
		},
		{
			name:   "CopyWithoutSource",
			files:  map[string]string{"kiln.yaml": "copies:\n  - to: a.pdf\n"},
			wantIs: domain.ErrInvalidRecipe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for name, content := range tt.files {
				createFile(t, f.root, name, content)
			}

			_, err := f.loader.Load(f.root, f.ws)
			require.Error(t, err)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}

			var zErr *zerr.Error
			require.ErrorAs(t, err, &zErr)
			assert.NotEmpty(t, zErr.Metadata()["file"])
		})
	}
}

func TestLoad_UnsupportedVersionWarns(t *testing.T) {
	f := newFixture(t)
	createFile(t, f.root, "kiln.yaml", "version: \"2\"\n")
	f.log.EXPECT().Warn(gomock.Any())

	_, err := f.loader.Load(f.root, f.ws)
	require.NoError(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	f := newFixture(t)
	createFile(t, f.root, "kiln.yaml", "")

	project, err := f.loader.Load(f.root, f.ws)
	require.NoError(t, err)
	assert.Zero(t, project.Tasks)
}

func TestDiscoverRoot(t *testing.T) {
	mapFS := fstest.MapFS{
		"kiln.yaml":       {Data: []byte("tasks: {}\n")},
		"data/a/notes.md": {Data: []byte("x")},
	}
	loader := config.NewLoader(nil, nil, nil)
	loader.FS = config.NewMapFSAdapter("/work", mapFS)

	root, err := loader.DiscoverRoot("/work/data/a")
	require.NoError(t, err)
	assert.Equal(t, "/work", root)

	_, err = loader.DiscoverRoot("/elsewhere")
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestLoad_GlobInclude(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	reg := mocks.NewMockRegistry(ctrl)

	mapFS := fstest.MapFS{
		"kiln.yaml":           {Data: []byte("include: [\"data/*/kiln.yaml\", \"none/*/kiln.yaml\"]\n")},
		"data/b/kiln.yaml":    {Data: []byte("prefix: data/b\ntasks:\n  all: {kind: command}\n")},
		"data/a/kiln.yaml":    {Data: []byte("prefix: data/a\ntasks:\n  all: {kind: command}\n")},
		"data/a/ignored.yaml": {Data: []byte("nonsense: [")},
	}
	loader := config.NewLoader(log, nil, nil)
	loader.FS = config.NewMapFSAdapter("/work", mapFS)

	log.EXPECT().Warn("include pattern none/*/kiln.yaml matched no files")
	gomock.InOrder(
		reg.EXPECT().CreateCommandTask("data/a/all", nil, nil),
		reg.EXPECT().CreateCommandTask("data/b/all", nil, nil),
	)

	project, err := loader.Load("/work/kiln.yaml", reg)
	require.NoError(t, err)
	assert.Equal(t, 2, project.Tasks)
	assert.Equal(t, []string{"/work/kiln.yaml", "/work/data/a/kiln.yaml", "/work/data/b/kiln.yaml"}, project.ConfigFiles)
}
