package recipes

import (
	"context"
	"io"
	"math"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/plot"
)

// Defaults of the two dimensional toy dataset.
const (
	DefaultSamples       = 1_000_000
	DefaultGridSize      = 800
	DefaultScatterPoints = 10_000
)

// TwoDimDataset samples a Gaussian mixture and plots its density and a scatter of the samples.
type TwoDimDataset struct {
	Prefix string
	// Mixture defaults to five normals on a circle of radius 2 with variance 0.25.
	Mixture       plot.Mixture
	Samples       int
	Seed          uint64
	GridSize      int
	Bounds        plot.Bounds
	Scale         plot.Scale
	ScatterPoints int
}

// HeatmapName is the density plot.
func (d TwoDimDataset) HeatmapName() string { return domain.JoinTaskName(d.Prefix, "heatmap.png") }

// DatasetName is the binary sample file.
func (d TwoDimDataset) DatasetName() string { return domain.JoinTaskName(d.Prefix, "dataset.bin") }

// ScatterName is the scatter plot of the first samples.
func (d TwoDimDataset) ScatterName() string {
	return domain.JoinTaskName(d.Prefix, "scatter_plot.png")
}

func (d TwoDimDataset) withDefaults() TwoDimDataset {
	if len(d.Mixture.Components) == 0 {
		d.Mixture = plot.CircleMixture(5, 2, 0.25)
	} else {
		d.Mixture = plot.Mixture{Components: append([]plot.Component(nil), d.Mixture.Components...)}
	}
	if d.Samples <= 0 {
		d.Samples = DefaultSamples
	}
	if d.GridSize <= 0 {
		d.GridSize = DefaultGridSize
	}
	if d.Bounds == (plot.Bounds{}) {
		d.Bounds = plot.DefaultBounds
	}
	if d.Scale == (plot.Scale{}) {
		d.Scale = plot.Scale{VMax: 0.2 / (2 * math.Pi * 0.5)}
	}
	if d.ScatterPoints <= 0 {
		d.ScatterPoints = DefaultScatterPoints
	}
	return d
}

// TwoDimDatasetTasks registers the heatmap, dataset and scatter tasks plus a grouping task.
func (t *Toolbox) TwoDimDatasetTasks(reg ports.Registry, d TwoDimDataset) (domain.TaskHandle, error) {
	d = d.withDefaults()
	if !d.Mixture.Valid() {
		return domain.TaskHandle{}, invalid("dataset", "mixture weights and variances must be positive")
	}
	if !d.Bounds.Valid() {
		return domain.TaskHandle{}, invalid("dataset", "bounds are empty")
	}

	heatmap, dataset, scatter := d.HeatmapName(), d.DatasetName(), d.ScatterName()

	if _, err := reg.CreateFileTask(heatmap, nil, func(context.Context) error {
		g := plot.CenteredGrid(d.Mixture.Density(), d.Bounds, d.GridSize)
		return t.fs.WriteFile(heatmap, func(w io.Writer) error { return plot.Heatmap(w, g, d.Scale) })
	}); err != nil {
		return domain.TaskHandle{}, err
	}

	if _, err := reg.CreateFileTask(dataset, nil, func(context.Context) error {
		points := d.Mixture.Sample(d.Samples, d.Seed)
		return t.fs.WriteFile(dataset, func(w io.Writer) error { return plot.WriteDataset(w, points) })
	}); err != nil {
		return domain.TaskHandle{}, err
	}

	if _, err := reg.CreateFileTask(scatter, []string{dataset}, func(context.Context) error {
		rc, err := t.fs.Open(dataset)
		if err != nil {
			return err
		}
		points, err := plot.ReadDataset(rc, d.ScatterPoints)
		_ = rc.Close()
		if err != nil {
			return err
		}
		return t.fs.WriteFile(scatter, func(w io.Writer) error {
			return plot.Scatter(w, points, d.Bounds, plot.DefaultScatterOptions)
		})
	}); err != nil {
		return domain.TaskHandle{}, err
	}

	return reg.CreateCommandTask(domain.JoinTaskName(d.Prefix, AllTaskName), []string{heatmap, dataset, scatter}, nil)
}

// DefaultResolution is the number of lattice steps per axis of a density plot.
const DefaultResolution = 1800

// DensityPlot renders a density over a regular lattice as a heatmap.
type DensityPlot struct {
	Output  string
	Density plot.Density
	// Bounds defaults to [-3,3] on both axes.
	Bounds       plot.Bounds
	Resolution   int
	Scale        plot.Scale
	Dependencies []string
}

// DensityPlotTask registers the plot as a file task.
func (t *Toolbox) DensityPlotTask(reg ports.Registry, p DensityPlot) (domain.TaskHandle, error) {
	if p.Output == "" {
		return domain.TaskHandle{}, invalid("density", "output is required")
	}
	if p.Density == nil {
		return domain.TaskHandle{}, invalid("density", "density is required")
	}
	if p.Bounds == (plot.Bounds{}) {
		p.Bounds = plot.DefaultBounds
	}
	if !p.Bounds.Valid() {
		return domain.TaskHandle{}, invalid("density", "bounds are empty")
	}
	if p.Resolution <= 0 {
		p.Resolution = DefaultResolution
	}

	out := domain.NormalizeTaskName(p.Output)
	return reg.CreateFileTask(out, withDeps(p.Dependencies), func(context.Context) error {
		g := p.grid()
		return t.fs.WriteFile(out, func(w io.Writer) error { return plot.Heatmap(w, g, p.Scale) })
	})
}

// grid samples the density. The defaults are the shared probability distribution lattice.
func (p DensityPlot) grid() *plot.Grid {
	b := p.Bounds
	if b == plot.DefaultBounds && p.Resolution == DefaultResolution {
		return plot.ProbDistGrid(p.Density)
	}
	xs := plot.Arange(b.XMin, b.XMax, b.Width()/float64(p.Resolution))
	ys := plot.Arange(b.YMin, b.YMax, b.Height()/float64(p.Resolution))
	return plot.Evaluate(p.Density, xs, ys, b)
}
