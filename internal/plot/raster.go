package plot

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// viridis control points, darkest first.
var viridisStops = []colorful.Color{
	mustHex("#440154"),
	mustHex("#482878"),
	mustHex("#3E4A89"),
	mustHex("#31688E"),
	mustHex("#26828E"),
	mustHex("#1F9E89"),
	mustHex("#35B779"),
	mustHex("#6DCD59"),
	mustHex("#B4DE2C"),
	mustHex("#FDE725"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Viridis maps v in [0,1] onto the viridis colormap, blending neighbouring stops in Lab space.
// Values outside the range are clamped.
func Viridis(v float64) color.Color {
	if math.IsNaN(v) {
		v = 0
	}
	v = min(max(v, 0), 1)
	pos := v * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		return viridisStops[len(viridisStops)-1].Clamped()
	}
	return viridisStops[i].BlendLab(viridisStops[i+1], pos-float64(i)).Clamped()
}

// Scale fixes the value range mapped onto the colormap.
// When Auto is set the grid's own minimum and maximum are used.
type Scale struct {
	VMin float64 `yaml:"vmin"`
	VMax float64 `yaml:"vmax"`
	Auto bool    `yaml:"auto"`
}

// Heatmap renders g as a PNG with one pixel per grid cell and the lowest row at the bottom.
func Heatmap(w io.Writer, g *Grid, s Scale) error {
	lo, hi := s.VMin, s.VMax
	if s.Auto {
		lo, hi = g.MinMax()
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	width, height := g.Width(), g.Height()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for j := range height {
		y := height - 1 - j
		for i := range width {
			img.Set(i, y, Viridis((g.At(i, j)-lo)/span))
		}
	}
	return png.Encode(w, img)
}

// ScatterOptions controls scatter plot rasterization.
type ScatterOptions struct {
	Size  int
	Alpha float64
	Color colorful.Color
}

// DefaultScatterOptions draws faint blue dots on a 600 pixel canvas.
var DefaultScatterOptions = ScatterOptions{
	Size:  600,
	Alpha: 0.01,
	Color: mustHex("#1F77B4"),
}

// Scatter renders points inside b onto a white square canvas, compositing each dot over the last.
// Points outside b are dropped.
func Scatter(w io.Writer, points []Point, b Bounds, opts ScatterOptions) error {
	if opts.Size <= 0 {
		opts.Size = DefaultScatterOptions.Size
	}
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = DefaultScatterOptions.Alpha
	}

	n := opts.Size
	canvas := make([]colorful.Color, n*n)
	for i := range canvas {
		canvas[i] = colorful.Color{R: 1, G: 1, B: 1}
	}

	for _, p := range points {
		if !b.Contains(p.X, p.Y) {
			continue
		}
		px := min(int((p.X-b.XMin)/b.Width()*float64(n)), n-1)
		py := n - 1 - min(int((p.Y-b.YMin)/b.Height()*float64(n)), n-1)
		c := &canvas[py*n+px]
		c.R += (opts.Color.R - c.R) * opts.Alpha
		c.G += (opts.Color.G - c.G) * opts.Alpha
		c.B += (opts.Color.B - c.B) * opts.Alpha
	}

	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for i, c := range canvas {
		r, g, bl := c.Clamped().RGB255()
		img.Set(i%n, i/n, color.RGBA{R: r, G: g, B: bl, A: 0xff})
	}
	return png.Encode(w, img)
}
