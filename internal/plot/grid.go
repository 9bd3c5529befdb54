// Package plot computes densities on grids and rasterizes them to PNG.
package plot

import "math"

// Bounds is an axis-aligned rectangle in the plane.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// DefaultBounds is the [-3,3]x[-3,3] window every density plot uses unless told otherwise.
var DefaultBounds = Bounds{XMin: -3, XMax: 3, YMin: -3, YMax: 3}

// Width returns XMax-XMin.
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax-YMin.
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// Contains reports whether (x, y) lies inside b, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// Valid reports whether b has positive area.
func (b Bounds) Valid() bool {
	return b.XMax > b.XMin && b.YMax > b.YMin
}

// Arange returns min, min+step, ... for every value strictly below max.
func Arange(lo, hi, step float64) []float64 {
	if step <= 0 || hi <= lo {
		return nil
	}
	// Trim rounding noise so 6/(6/1800) counts as 1800.
	n := int(math.Ceil((hi-lo)/step - 1e-9))
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Centers splits [lo, hi] into n equal cells and returns their midpoints.
func Centers(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	dx := (hi - lo) / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + dx/2 + float64(i)*dx
	}
	return out
}

// Grid holds density values sampled on a rectangular lattice.
// Row 0 is the lowest y, so the grid reads like a plot with its origin at the bottom.
type Grid struct {
	Xs     []float64
	Ys     []float64
	Values []float64
	Bounds Bounds
}

// Width returns the number of columns.
func (g *Grid) Width() int { return len(g.Xs) }

// Height returns the number of rows.
func (g *Grid) Height() int { return len(g.Ys) }

// At returns the value at column i, row j.
func (g *Grid) At(i, j int) float64 {
	return g.Values[j*len(g.Xs)+i]
}

// MinMax returns the smallest and largest finite value.
func (g *Grid) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// Evaluate samples d at every (x, y) pair of the axes.
func Evaluate(d Density, xs, ys []float64, b Bounds) *Grid {
	g := &Grid{
		Xs:     xs,
		Ys:     ys,
		Values: make([]float64, len(xs)*len(ys)),
		Bounds: b,
	}
	for j, y := range ys {
		row := g.Values[j*len(xs) : (j+1)*len(xs)]
		for i, x := range xs {
			row[i] = d(x, y)
		}
	}
	return g
}

// ProbDistDelta is the lattice spacing of the 1800x1800 density grid over [-3,3).
const ProbDistDelta = 6.0 / 1800

// ProbDistGrid samples d on the fixed lattice used by the probability distribution plots.
func ProbDistGrid(d Density) *Grid {
	axis := Arange(-3, 3, ProbDistDelta)
	return Evaluate(d, axis, axis, DefaultBounds)
}

// CenteredGrid samples d at the centers of an n x n partition of b.
func CenteredGrid(d Density, b Bounds, n int) *Grid {
	return Evaluate(d, Centers(b.XMin, b.XMax, n), Centers(b.YMin, b.YMax, n), b)
}
