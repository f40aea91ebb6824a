// Package interp turns sampled (x, y) data into a continuous function of x.
package interp

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	ginterp "gonum.org/v1/gonum/interp"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// DerivativeStep is the central-difference step used by Derivative.
const DerivativeStep = 1e-5

// Kind selects the interpolation scheme.
type Kind string

const (
	// Cubic is a natural cubic spline.
	Cubic Kind = "cubic"
	// Piecewise joins neighbouring samples with straight lines.
	Piecewise Kind = "piecewise"
)

// ParseKind maps a name to a Kind. The empty string selects Cubic.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cubic", "spline", "cubic-spline":
		return Cubic, nil
	case "piecewise", "linear", "piecewise-linear":
		return Piecewise, nil
	}
	return "", optimization.Errorf(optimization.KindValidation, "unknown interpolation kind %q", s).
		WithComponent("interp")
}

// Point is a single sample.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dataset is an unordered collection of samples.
type Dataset []Point

type predictor interface {
	Predict(x float64) float64
}

// Function is an interpolated function. It is immutable after Build.
type Function struct {
	kind Kind
	xs   []float64
	ys   []float64
	pred predictor
}

// Build sorts the samples by x, keeps the first y for duplicate x values and
// fits the requested interpolant. At least two samples are required.
func Build(ds Dataset, kind Kind) (*Function, error) {
	if len(ds) < 2 {
		return nil, optimization.Errorf(optimization.KindValidation, "need at least 2 data points, got %d", len(ds)).
			WithOperation("Build").WithComponent("interp")
	}
	if kind != Cubic && kind != Piecewise {
		return nil, optimization.Errorf(optimization.KindValidation, "unknown interpolation kind %q", kind).
			WithOperation("Build").WithComponent("interp")
	}

	pts := make(Dataset, len(ds))
	copy(pts, ds)
	for i, p := range pts {
		if !optimization.IsFinite(p.X) || !optimization.IsFinite(p.Y) {
			return nil, optimization.Errorf(optimization.KindValidation, "data point %d is not finite", i).
				WithOperation("Build").WithComponent("interp")
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })

	f := &Function{kind: kind}
	for i, p := range pts {
		if i > 0 && p.X == pts[i-1].X {
			continue
		}
		f.xs = append(f.xs, p.X)
		f.ys = append(f.ys, p.Y)
	}

	switch {
	case len(f.xs) == 1:
		// Degenerate: defined only at the single sample.
		return f, nil
	case kind == Cubic && len(f.xs) > 2:
		var nc ginterp.NaturalCubic
		if err := nc.Fit(f.xs, f.ys); err != nil {
			return nil, optimization.WrapError(optimization.KindValidation, err, "cubic spline fit failed")
		}
		f.pred = &nc
	default:
		// A natural spline through two points is their chord.
		var pl ginterp.PiecewiseLinear
		if err := pl.Fit(f.xs, f.ys); err != nil {
			return nil, optimization.WrapError(optimization.KindValidation, err, "piecewise linear fit failed")
		}
		f.pred = &pl
	}
	return f, nil
}

// Evaluate returns f(x). It is NaN outside [min x, max x] and exactly y_i at
// each sample x_i.
func (f *Function) Evaluate(x float64) float64 {
	lo, hi := f.Domain()
	if math.IsNaN(x) || x < lo || x > hi {
		return math.NaN()
	}
	i := sort.SearchFloat64s(f.xs, x)
	if i < len(f.xs) && f.xs[i] == x {
		return f.ys[i]
	}
	return f.pred.Predict(x)
}

// Func adapts Evaluate to the solver function type.
func (f *Function) Func() optimization.Func {
	return func(x float64) (float64, error) {
		return f.Evaluate(x), nil
	}
}

// Derivative estimates f'(x) with a central difference of step DerivativeStep.
// Near the domain edges the estimate is NaN.
func (f *Function) Derivative(x float64) float64 {
	return fd.Derivative(f.Evaluate, x, &fd.Settings{
		Formula: fd.Central,
		Step:    DerivativeStep,
	})
}

// DerivativeFunc adapts Derivative to the solver function type.
func (f *Function) DerivativeFunc() optimization.Func {
	return func(x float64) (float64, error) {
		return f.Derivative(x), nil
	}
}

// Domain returns the smallest and largest sample x.
func (f *Function) Domain() (float64, float64) {
	return f.xs[0], f.xs[len(f.xs)-1]
}

// Kind returns the interpolation scheme.
func (f *Function) Kind() Kind { return f.kind }

// Len returns the number of distinct samples.
func (f *Function) Len() int { return len(f.xs) }

// Sample returns n evenly spaced points across the domain, endpoints included.
func (f *Function) Sample(n int) []Point {
	if n < 1 {
		return nil
	}
	lo, hi := f.Domain()
	if n == 1 || lo == hi {
		return []Point{{X: lo, Y: f.Evaluate(lo)}}
	}
	pts := make([]Point, n)
	step := (hi - lo) / float64(n-1)
	for i := range pts {
		x := lo + float64(i)*step
		if i == n-1 {
			x = hi
		}
		pts[i] = Point{X: x, Y: f.Evaluate(x)}
	}
	return pts
}
