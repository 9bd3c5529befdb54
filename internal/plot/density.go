package plot

import (
	"math"
	"math/rand/v2"
)

// Density is a function of the plane, usually a probability density.
type Density func(x, y float64) float64

// Gaussian returns the isotropic bump centred at (mx, my) used by the probability plots.
// Its normaliser is 2*pi*sigma, so it only integrates to one for sigma == 1.
func Gaussian(mx, my, sigma float64) Density {
	twoSigma2 := 2 * sigma * sigma
	norm := 2 * math.Pi * sigma
	return func(x, y float64) float64 {
		dx, dy := x-mx, y-my
		return math.Exp(-(dx*dx+dy*dy)/twoSigma2) / norm
	}
}

// Uniform returns the normalised uniform density on b.
func Uniform(b Bounds) Density {
	p := 1 / (b.Width() * b.Height())
	return func(x, y float64) float64 {
		if b.Contains(x, y) {
			return p
		}
		return 0
	}
}

// StandardUniform is uniform on the unit square.
func StandardUniform() Density {
	return Uniform(Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1})
}

// LargerUniform is uniform on [-1,1]x[-1,1], so its value is 1/4.
func LargerUniform() Density {
	return Uniform(Bounds{XMin: -1, XMax: 1, YMin: -1, YMax: 1})
}

// Point is a location in the plane.
type Point struct {
	X, Y float64
}

// Component is one isotropic normal in a Mixture.
type Component struct {
	Weight   float64 `yaml:"weight"`
	MeanX    float64 `yaml:"x"`
	MeanY    float64 `yaml:"y"`
	Variance float64 `yaml:"variance"`
}

// Mixture is a weighted sum of isotropic bivariate normals.
type Mixture struct {
	Components []Component
}

// CircleMixture places k equally weighted normals evenly on a circle around the origin.
func CircleMixture(k int, radius, variance float64) Mixture {
	comps := make([]Component, k)
	for i := range comps {
		theta := 2 * math.Pi * float64(i) / float64(k)
		comps[i] = Component{
			Weight:   1 / float64(k),
			MeanX:    radius * math.Cos(theta),
			MeanY:    radius * math.Sin(theta),
			Variance: variance,
		}
	}
	return Mixture{Components: comps}
}

// Density returns the normalised mixture density.
func (m Mixture) Density() Density {
	total := m.totalWeight()
	comps := append([]Component(nil), m.Components...)
	return func(x, y float64) float64 {
		var p float64
		for _, c := range comps {
			dx, dy := x-c.MeanX, y-c.MeanY
			p += c.Weight / total * math.Exp(-(dx*dx+dy*dy)/(2*c.Variance)) / (2 * math.Pi * c.Variance)
		}
		return p
	}
}

// Sample draws n points from the mixture using a PCG stream seeded with seed.
func (m Mixture) Sample(n int, seed uint64) []Point {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible data, not secrets

	cum := make([]float64, len(m.Components))
	var acc float64
	for i, c := range m.Components {
		acc += c.Weight
		cum[i] = acc
	}

	out := make([]Point, n)
	for i := range out {
		u := rng.Float64() * acc
		k := 0
		for k < len(cum)-1 && u >= cum[k] {
			k++
		}
		c := m.Components[k]
		sd := math.Sqrt(c.Variance)
		out[i] = Point{
			X: c.MeanX + sd*rng.NormFloat64(),
			Y: c.MeanY + sd*rng.NormFloat64(),
		}
	}
	return out
}

// Valid reports whether the mixture can be evaluated and sampled.
func (m Mixture) Valid() bool {
	if len(m.Components) == 0 {
		return false
	}
	for _, c := range m.Components {
		if c.Weight < 0 || c.Variance <= 0 {
			return false
		}
	}
	return m.totalWeight() > 0
}

func (m Mixture) totalWeight() float64 {
	var w float64
	for _, c := range m.Components {
		w += c.Weight
	}
	return w
}
