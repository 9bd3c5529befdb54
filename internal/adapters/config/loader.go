// Package config loads kiln.yaml files into a task registry.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/plot"
	"go.trai.ch/kiln/internal/recipes"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only config version this loader understands.
const SupportedVersion = "1"

// DefaultFrameGridSize is the heatmap resolution of rendered frames.
const DefaultFrameGridSize = 400

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
	files  ports.FileSystem
	exec   ports.Executor
}

var _ ports.ConfigLoader = (*Loader)(nil)

// NewLoader creates a new Loader. files and exec back the actions of the loaded tasks.
func NewLoader(logger ports.Logger, files ports.FileSystem, exec ports.Executor) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS(), files: files, exec: exec}
}

// DiscoverRoot walks up from cwd to the first directory holding kiln.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir := cwd
	for {
		if _, err := l.FS.Stat(filepath.Join(currentDir, domain.ConfigFileName)); err == nil {
			return currentDir, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "no kiln.yaml in any parent directory"), "cwd", cwd)
}

// Load registers every task declared by the configuration at path into reg.
// path may be a config file or a directory to discover one from.
func (l *Loader) Load(path string, reg ports.Registry) (*domain.Project, error) {
	configPath, err := l.resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)
	counter := &countingRegistry{Registry: reg}
	ld := &load{
		loader:  l,
		reg:     counter,
		root:    root,
		tools:   recipes.New(l.files, l.exec, root),
		project: &domain.Project{Root: root},
	}
	if err := ld.file(configPath, "", nil, nil); err != nil {
		return nil, err
	}
	ld.project.Tasks = counter.n
	return ld.project, nil
}

func (l *Loader) resolveConfigPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "file", path)
	}
	info, err := l.FS.Stat(abs)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "file", path)
	}
	if !info.IsDir() {
		return abs, nil
	}
	root, err := l.DiscoverRoot(abs)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, domain.ConfigFileName), nil
}

// countingRegistry counts the tasks a load registers.
type countingRegistry struct {
	ports.Registry
	n int
}

func (c *countingRegistry) CreateFileTask(outputPath string, deps []string, action domain.Action) (domain.TaskHandle, error) {
	h, err := c.Registry.CreateFileTask(outputPath, deps, action)
	if err == nil {
		c.n++
	}
	return h, err
}

func (c *countingRegistry) CreateCommandTask(name string, deps []string, action domain.Action) (domain.TaskHandle, error) {
	h, err := c.Registry.CreateCommandTask(name, deps, action)
	if err == nil {
		c.n++
	}
	return h, err
}

// load is the state of a single Load call.
type load struct {
	loader  *Loader
	reg     ports.Registry
	root    string
	tools   *recipes.Toolbox
	project *domain.Project
}

// file loads one config file and its includes. stack holds the files including it.
func (ld *load) file(path, parentPrefix string, parentEnv map[string]string, stack []string) error {
	if i := slices.Index(stack, path); i >= 0 {
		cycle := append(slices.Clone(stack[i:]), path)
		return zerr.With(
			zerr.With(zerr.Wrap(domain.ErrConfigIncludeCycle, "config files include each other"), "file", path),
			"cycle", strings.Join(cycle, " -> "),
		)
	}

	var kf Kilnfile
	if err := ld.loader.readAndUnmarshalYAML(path, &kf); err != nil {
		return err
	}
	if kf.Version != "" && kf.Version != SupportedVersion {
		ld.loader.Logger.Warn(fmt.Sprintf("unsupported version %q in %s, reading it as version %s", kf.Version, path, SupportedVersion))
	}
	ld.project.ConfigFiles = append(ld.project.ConfigFiles, path)

	s := &scope{
		load:   ld,
		path:   path,
		dir:    filepath.Dir(path),
		prefix: joinName(parentPrefix, kf.Prefix),
		env:    mergeEnv(parentEnv, kf.Environment),
	}
	if err := s.register(&kf); err != nil {
		return zerr.With(err, "file", path)
	}

	stack = append(stack, path)
	for _, pattern := range kf.Include {
		includes, err := ld.loader.expandInclude(s.dir, pattern)
		if err != nil {
			return zerr.With(err, "file", path)
		}
		for _, include := range includes {
			if err := ld.file(include, s.prefix, s.env, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandInclude resolves pattern against dir. Patterns without glob characters must name an existing file.
func (l *Loader) expandInclude(dir, pattern string) ([]string, error) {
	abs := filepath.Join(dir, filepath.FromSlash(pattern))
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{abs}, nil
	}
	matches, err := l.FS.Glob(abs)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "glob pattern failed"), "include", pattern)
	}
	if len(matches) == 0 {
		l.Logger.Warn(fmt.Sprintf("include pattern %s matched no files", pattern))
	}
	return matches, nil
}

// readAndUnmarshalYAML reads a YAML file strictly: unknown keys are errors.
func (l *Loader) readAndUnmarshalYAML(path string, target *Kilnfile) error {
	data, err := l.FS.ReadFile(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "file", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "file", path)
	}
	return nil
}

// scope is what names and commands in one file resolve against.
type scope struct {
	*load
	path   string
	dir    string
	prefix string
	env    map[string]string
}

// name joins n with the file's prefix. Names starting with "/" are used as they are.
func (s *scope) name(n string) string {
	return joinName(s.prefix, n)
}

func (s *scope) names(ns []string) []string {
	if len(ns) == 0 {
		return nil
	}
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = s.name(n)
	}
	return out
}

func joinName(prefix, n string) string {
	n = domain.NormalizeTaskName(n)
	if strings.HasPrefix(n, "/") || prefix == "" {
		return n
	}
	if n == "" {
		return prefix
	}
	return domain.JoinTaskName(prefix, n)
}

func (s *scope) register(kf *Kilnfile) error {
	steps := []func(*Kilnfile) error{
		s.registerTasks,
		s.registerVideos,
		s.registerFrames,
		s.registerCopies,
		s.registerTraining,
		s.registerDatasets,
		s.registerDensities,
	}
	for _, step := range steps {
		if err := step(kf); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerTasks(kf *Kilnfile) error {
	names := make([]string, 0, len(kf.Tasks))
	for name := range kf.Tasks {
		names = append(names, name)
	}
	// Map order is random; registration order shows up in errors and listings.
	slices.Sort(names)

	for _, key := range names {
		dto := kf.Tasks[key]
		if dto == nil {
			dto = &TaskDTO{}
		}
		if err := domain.ValidateTaskName(key); err != nil {
			return err
		}
		name := s.name(key)

		kind, ok := domain.ParseTaskKind(dto.Kind)
		if !ok || kind == domain.KindSource {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidTaskKind, "unsupported task kind"), "task", name), "kind", dto.Kind)
		}

		var action domain.Action
		if len(dto.Cmd) > 0 {
			action = s.tools.Action(domain.Command{
				Name:        name,
				Args:        dto.Cmd,
				Environment: mergeEnv(s.env, dto.Environment),
				WorkingDir:  resolveTaskWorkingDir(s.root, s.dir, dto.WorkingDir),
			})
		}

		var err error
		if kind == domain.KindFile {
			_, err = s.reg.CreateFileTask(name, s.names(dto.DependsOn), action)
		} else {
			_, err = s.reg.CreateCommandTask(name, s.names(dto.DependsOn), action)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerVideos(kf *Kilnfile) error {
	for _, v := range kf.Videos {
		if _, err := s.tools.Video(s.reg, recipes.VideoTasks{
			Prefix:       s.name(v.Prefix),
			FramePattern: s.name(v.Frames),
			FrameRate:    v.FrameRate,
			Dependencies: s.names(v.DependsOn),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerFrames(kf *Kilnfile) error {
	for _, f := range kf.Frames {
		ease, ok := plot.EaseByName(f.Gaussian.Ease)
		if !ok {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "unknown easing"), "ease", f.Gaussian.Ease),
				"known", strings.Join(plot.EaseNames(), ", "))
		}
		bounds, err := parseBounds(f.Bounds)
		if err != nil {
			return err
		}
		if bounds == (plot.Bounds{}) {
			bounds = plot.DefaultBounds
		}
		grid := f.GridSize
		if grid <= 0 {
			grid = DefaultFrameGridSize
		}
		scale := plot.Scale{Auto: true}
		if f.Scale != nil {
			scale = *f.Scale
		}
		path := plot.GaussianPath{
			From:      plot.Point{X: f.Gaussian.From[0], Y: f.Gaussian.From[1]},
			To:        plot.Point{X: f.Gaussian.To[0], Y: f.Gaussian.To[1]},
			SigmaFrom: f.Gaussian.SigmaFrom,
			SigmaTo:   f.Gaussian.SigmaTo,
			Ease:      ease,
		}
		if path.SigmaFrom <= 0 || path.SigmaTo <= 0 {
			return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "gaussian sigmas must be positive"), "frames", f.Name)
		}

		def := recipes.FrameTasks{
			Prefix:       s.name(f.Prefix),
			Name:         f.Name,
			Count:        f.Count,
			Render:       recipes.GaussianPathFrames(path, bounds, grid, scale),
			Dependencies: s.names(f.DependsOn),
		}
		if f.Video {
			def.Video = &recipes.VideoTasks{FrameRate: f.FrameRate}
		}
		if _, err := s.tools.Frames(s.reg, def); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerCopies(kf *Kilnfile) error {
	for _, c := range kf.Copies {
		if c.From == "" || c.To == "" {
			return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "copies need both from and to"), "to", c.To)
		}
		if _, err := s.tools.Copy(s.reg, s.name(c.To), s.name(c.From)); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerTraining(kf *Kilnfile) error {
	for _, t := range kf.Training {
		if _, err := s.tools.DistributedTrainingTasks(s.reg, recipes.DistributedTraining{
			Prefix:       s.name(t.Prefix),
			Script:       t.Script,
			Nodes:        t.Nodes,
			ProcsPerNode: t.ProcsPerNode,
			MasterAddr:   t.MasterAddr,
			MasterPort:   t.MasterPort,
			Dependencies: s.names(t.DependsOn),
			Environment:  mergeEnv(s.env, t.Environment),
		}); err != nil {
			return err
		}
	}
	for _, t := range kf.Standalone {
		def := recipes.StandaloneTraining{
			Prefix:       s.name(t.Prefix),
			Script:       t.Script,
			ProcsPerNode: t.ProcsPerNode,
			Checkpoints:  t.Checkpoints,
			Modules:      t.Modules,
			Accumulators: t.Accumulators,
			Dependencies: s.names(t.DependsOn),
			Environment:  mergeEnv(s.env, t.Environment),
		}
		if t.Rendezvous != nil {
			def.Rendezvous = &recipes.Rendezvous{ID: t.Rendezvous.ID, Port: t.Rendezvous.Port}
		}
		if _, err := s.tools.StandaloneTrainingTasks(s.reg, def); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerDatasets(kf *Kilnfile) error {
	for _, d := range kf.Datasets {
		bounds, err := parseBounds(d.Bounds)
		if err != nil {
			return err
		}
		def := recipes.TwoDimDataset{
			Prefix:        s.name(d.Prefix),
			Samples:       d.Samples,
			Seed:          d.Seed,
			GridSize:      d.GridSize,
			Bounds:        bounds,
			ScatterPoints: d.ScatterPoints,
		}
		if d.Scale != nil {
			def.Scale = *d.Scale
		}
		if m := d.Mixture; m != nil {
			switch {
			case m.Circle != nil && len(m.Components) > 0:
				return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "mixture takes components or circle, not both"), "dataset", def.Prefix)
			case m.Circle != nil:
				def.Mixture = plot.CircleMixture(m.Circle.Count, m.Circle.Radius, m.Circle.Variance)
			default:
				def.Mixture = plot.Mixture{Components: m.Components}
			}
		}
		if _, err := s.tools.TwoDimDatasetTasks(s.reg, def); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) registerDensities(kf *Kilnfile) error {
	for _, d := range kf.Densities {
		bounds, err := parseBounds(d.Bounds)
		if err != nil {
			return err
		}
		def := recipes.DensityPlot{
			Output:       s.name(d.Output),
			Bounds:       bounds,
			Resolution:   d.Resolution,
			Dependencies: s.names(d.DependsOn),
		}

		switch {
		case d.Gaussian != nil && d.Uniform != nil:
			return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "density takes gaussian or uniform, not both"), "output", def.Output)
		case d.Gaussian != nil:
			if d.Gaussian.Sigma <= 0 {
				return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "gaussian sigma must be positive"), "output", def.Output)
			}
			def.Density = plot.Gaussian(d.Gaussian.X, d.Gaussian.Y, d.Gaussian.Sigma)
			def.Scale = plot.Scale{VMax: 1 / (2 * math.Pi * 0.5)}
		case d.Uniform != nil:
			support, err := parseBounds(d.Uniform)
			if err != nil {
				return err
			}
			if !support.Valid() {
				return zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "uniform support is empty"), "output", def.Output)
			}
			def.Density = plot.Uniform(support)
			def.Scale = plot.Scale{VMax: 1}
		}
		if d.Scale != nil {
			def.Scale = *d.Scale
		}

		if _, err := s.tools.DensityPlotTask(s.reg, def); err != nil {
			return err
		}
	}
	return nil
}

// parseBounds reads [xmin, xmax, ymin, ymax]. An empty list yields the zero Bounds.
func parseBounds(v []float64) (plot.Bounds, error) {
	switch len(v) {
	case 0:
		return plot.Bounds{}, nil
	case 4:
		return plot.Bounds{XMin: v[0], XMax: v[1], YMin: v[2], YMax: v[3]}, nil
	default:
		return plot.Bounds{}, zerr.With(zerr.Wrap(domain.ErrInvalidRecipe, "bounds must be [xmin, xmax, ymin, ymax]"), "bounds", v)
	}
}

// mergeEnv returns base overridden by over. Neither input is modified.
func mergeEnv(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	result := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range over {
		result[k] = v
	}
	return result
}

// resolveTaskWorkingDir resolves the working directory for a command.
// An empty value means the project root, since task names are relative to it.
// Relative values are joined with the directory of the declaring file.
func resolveTaskWorkingDir(root, fileDir, configured string) string {
	if configured == "" {
		return root
	}
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(fileDir, configured))
}
