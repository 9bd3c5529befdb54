package plot

import (
	"slices"
	"strings"

	"github.com/fogleman/ease"
)

// EaseFunc maps progress in [0,1] to eased progress.
type EaseFunc func(t float64) float64

var easings = map[string]EaseFunc{
	"linear":     ease.Linear,
	"inquad":     ease.InQuad,
	"outquad":    ease.OutQuad,
	"inoutquad":  ease.InOutQuad,
	"incubic":    ease.InCubic,
	"outcubic":   ease.OutCubic,
	"inoutcubic": ease.InOutCubic,
	"insine":     ease.InSine,
	"outsine":    ease.OutSine,
	"inoutsine":  ease.InOutSine,
}

// EaseByName looks up an easing curve. Names are case-insensitive; empty means linear.
func EaseByName(name string) (EaseFunc, bool) {
	if name == "" {
		return ease.Linear, true
	}
	fn, ok := easings[strings.ToLower(name)]
	return fn, ok
}

// EaseNames returns the known easing names in order.
func EaseNames() []string {
	names := make([]string, 0, len(easings))
	for k := range easings {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// GaussianPath moves a Gaussian from one mean and width to another as t goes from 0 to 1.
type GaussianPath struct {
	From, To           Point
	SigmaFrom, SigmaTo float64
	Ease               EaseFunc
}

// At returns the mean and sigma at time t.
func (p GaussianPath) At(t float64) (Point, float64) {
	s := t
	if p.Ease != nil {
		s = p.Ease(t)
	}
	mu := Point{
		X: p.From.X + (p.To.X-p.From.X)*s,
		Y: p.From.Y + (p.To.Y-p.From.Y)*s,
	}
	return mu, p.SigmaFrom + (p.SigmaTo-p.SigmaFrom)*s
}

// FrameTime returns the time of frame i out of n, spanning [0,1] inclusive.
func FrameTime(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
