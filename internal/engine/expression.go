package engine

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/stepwise/internal/expr"
	"github.com/copyleftdev/stepwise/internal/interp"
	"github.com/copyleftdev/stepwise/internal/metrics"
	"github.com/copyleftdev/stepwise/internal/optimization"
)

const (
	// DefaultSurfaceResolution is the grid size per axis of a surface.
	DefaultSurfaceResolution = 30
	// MaxSurfaceResolution bounds the grid size per axis.
	MaxSurfaceResolution = 500
	// DefaultSamples is the number of points an interpolation request
	// without explicit xs is sampled at.
	DefaultSamples = 100
)

// Number is a float64 that encodes NaN and ±Inf as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// DifferentiateRequest asks for the symbolic derivative of Expression.
// An empty Variable selects the expression's only variable, or x.
type DifferentiateRequest struct {
	Expression string `json:"expression" yaml:"expression"`
	Variable   string `json:"variable,omitempty" yaml:"variable,omitempty"`
	// At optionally evaluates the derivative at a point.
	At expr.Bindings `json:"at,omitempty" yaml:"at,omitempty"`
}

// DifferentiateResponse holds the simplified derivative.
type DifferentiateResponse struct {
	Expression string  `json:"expression"`
	Variable   string  `json:"variable"`
	Derivative string  `json:"derivative"`
	Value      *Number `json:"value,omitempty"`
}

// Differentiate differentiates the request's expression.
func (e *Engine) Differentiate(ctx context.Context, req DifferentiateRequest) (*DifferentiateResponse, error) {
	const op = "Differentiate"
	if strings.TrimSpace(req.Expression) == "" {
		return nil, validationf(op, "expression is required")
	}

	var resp *DifferentiateResponse
	err := e.run(ctx, MethodDerivative, func() (string, int, error) {
		ex, err := expr.Parse(req.Expression)
		if err != nil {
			return "", 0, err
		}
		v := req.Variable
		if v == "" {
			if v, err = singleVariable(op, ex); err != nil {
				return "", 0, err
			}
		}
		d := ex.Derivative(v)
		resp = &DifferentiateResponse{Expression: ex.String(), Variable: v, Derivative: d.String()}
		if req.At != nil {
			val, err := d.Eval(req.At)
			if err != nil {
				return "", 0, err
			}
			n := Number(val)
			resp.Value = &n
		}
		return metrics.OutcomeCompleted, -1, nil
	})
	return resp, err
}

// InterpolateRequest evaluates the interpolant of Data at Xs, or at
// Samples evenly spaced points across the domain when Xs is empty.
type InterpolateRequest struct {
	Data          interp.Dataset `json:"data" yaml:"data"`
	Interpolation string         `json:"interpolation,omitempty" yaml:"interpolation,omitempty"`
	Xs            []float64      `json:"xs,omitempty" yaml:"xs,omitempty"`
	Samples       int            `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// InterpolatedPoint is the interpolant and its central-difference
// derivative at X. Both are null outside the domain.
type InterpolatedPoint struct {
	X          float64 `json:"x"`
	Y          Number  `json:"y"`
	Derivative Number  `json:"derivative"`
}

// InterpolateResponse is the evaluated interpolant.
type InterpolateResponse struct {
	Kind   interp.Kind         `json:"kind"`
	Domain [2]float64          `json:"domain"`
	Points []InterpolatedPoint `json:"points"`
}

// Interpolate builds the interpolant of the request's dataset and
// evaluates it.
func (e *Engine) Interpolate(ctx context.Context, req InterpolateRequest) (*InterpolateResponse, error) {
	const op = "Interpolate"
	if req.Samples < 0 {
		return nil, validationf(op, "samples must be non-negative, got %d", req.Samples)
	}
	if len(req.Xs) > e.cfg.MaxDataPoints || req.Samples > e.cfg.MaxDataPoints {
		return nil, validationf(op, "at most %d evaluation points are allowed", e.cfg.MaxDataPoints)
	}

	var resp *InterpolateResponse
	err := e.run(ctx, MethodInterpolate, func() (string, int, error) {
		if len(req.Data) > e.cfg.MaxDataPoints {
			return "", 0, validationf(op, "dataset has %d points, the limit is %d", len(req.Data), e.cfg.MaxDataPoints)
		}
		name := req.Interpolation
		if name == "" {
			name = e.cfg.Interpolation
		}
		kind, err := interp.ParseKind(name)
		if err != nil {
			return "", 0, err
		}
		fn, err := interp.Build(req.Data, kind)
		if err != nil {
			return "", 0, err
		}

		xs := req.Xs
		if len(xs) == 0 {
			n := req.Samples
			if n == 0 {
				n = DefaultSamples
			}
			for _, p := range fn.Sample(n) {
				xs = append(xs, p.X)
			}
		}

		lo, hi := fn.Domain()
		resp = &InterpolateResponse{Kind: fn.Kind(), Domain: [2]float64{lo, hi}, Points: make([]InterpolatedPoint, len(xs))}
		for i, x := range xs {
			resp.Points[i] = InterpolatedPoint{X: x, Y: Number(fn.Evaluate(x)), Derivative: Number(fn.Derivative(x))}
		}
		return metrics.OutcomeCompleted, -1, nil
	})
	return resp, err
}

// SurfaceRequest samples Expression over a 2-D slice of R^n for contour
// plots. Coordinates XAxis and YAxis vary; the others are held at Fixed
// (zero when Fixed is shorter than n). n is len(Fixed), or 2 when Fixed is
// empty. Ranges default to the bounding box of Path padded by 1, or
// [-5, 5] without a path.
type SurfaceRequest struct {
	Expression string      `json:"expression" yaml:"expression"`
	Dimensions int         `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	XAxis      int         `json:"x_axis,omitempty" yaml:"x_axis,omitempty"`
	YAxis      int         `json:"y_axis,omitempty" yaml:"y_axis,omitempty"`
	Fixed      []float64   `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	XRange     []float64   `json:"x_range,omitempty" yaml:"x_range,omitempty"`
	YRange     []float64   `json:"y_range,omitempty" yaml:"y_range,omitempty"`
	Path       [][]float64 `json:"path,omitempty" yaml:"path,omitempty"`
	Resolution int         `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// SurfaceResponse is the sampled grid; Z[j][i] is f at (X[i], Y[j]).
// Points where f is undefined are null.
type SurfaceResponse struct {
	XVariable string     `json:"x_variable"`
	YVariable string     `json:"y_variable"`
	X         []float64  `json:"x"`
	Y         []float64  `json:"y"`
	Z         [][]Number `json:"z"`
}

// Surface samples the request's expression on a grid.
func (e *Engine) Surface(ctx context.Context, req SurfaceRequest) (*SurfaceResponse, error) {
	const op = "Surface"
	if strings.TrimSpace(req.Expression) == "" {
		return nil, validationf(op, "expression is required")
	}
	n := req.Dimensions
	if n == 0 {
		n = max(2, len(req.Fixed))
	}
	xAxis, yAxis := req.XAxis, req.YAxis
	if xAxis == 0 && yAxis == 0 {
		yAxis = 1
	}
	switch {
	case n < 2:
		return nil, validationf(op, "a surface needs at least 2 dimensions, got %d", n)
	case len(req.Fixed) > n:
		return nil, validationf(op, "fixed has %d values for %d dimensions", len(req.Fixed), n)
	case xAxis < 0 || xAxis >= n || yAxis < 0 || yAxis >= n || xAxis == yAxis:
		return nil, validationf(op, "axes (%d, %d) must be distinct indices below %d", xAxis, yAxis, n)
	}
	res := req.Resolution
	if res == 0 {
		res = DefaultSurfaceResolution
	}
	if res < 2 || res > MaxSurfaceResolution {
		return nil, validationf(op, "resolution must be in [2, %d], got %d", MaxSurfaceResolution, res)
	}
	xr, err := axisRange(op, "x_range", req.XRange, req.Path, xAxis)
	if err != nil {
		return nil, err
	}
	yr, err := axisRange(op, "y_range", req.YRange, req.Path, yAxis)
	if err != nil {
		return nil, err
	}

	var resp *SurfaceResponse
	err = e.run(ctx, MethodSurface, func() (string, int, error) {
		f, err := expr.Parse(req.Expression)
		if err != nil {
			return "", 0, err
		}
		names := expr.VariablesFor(f, n)
		resp = &SurfaceResponse{
			XVariable: names[xAxis],
			YVariable: names[yAxis],
			X:         floats.Span(make([]float64, res), xr[0], xr[1]),
			Y:         floats.Span(make([]float64, res), yr[0], yr[1]),
			Z:         make([][]Number, res),
		}

		point := make([]float64, n)
		copy(point, req.Fixed)
		for j, y := range resp.Y {
			row := make([]Number, res)
			for i, x := range resp.X {
				point[xAxis], point[yAxis] = x, y
				v, err := f.Eval(expr.VectorBindings(point))
				if err != nil {
					v = math.NaN()
				}
				row[i] = Number(v)
			}
			resp.Z[j] = row
		}
		return metrics.OutcomeCompleted, -1, nil
	})
	return resp, err
}

// axisRange picks the sampling interval for one axis.
func axisRange(op, name string, explicit []float64, path [][]float64, axis int) ([2]float64, error) {
	if len(explicit) > 0 {
		if len(explicit) != 2 || !(explicit[0] < explicit[1]) || math.IsInf(explicit[0], 0) || math.IsInf(explicit[1], 0) {
			return [2]float64{}, validationf(op, "%s must be two finite increasing values, got %v", name, explicit)
		}
		return [2]float64{explicit[0], explicit[1]}, nil
	}
	if len(path) > 1 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range path {
			if axis >= len(p) {
				return [2]float64{}, validationf(op, "path point %v has no coordinate %d", p, axis)
			}
			lo, hi = math.Min(lo, p[axis]), math.Max(hi, p[axis])
		}
		if optimization.IsFinite(lo) && optimization.IsFinite(hi) {
			return [2]float64{lo - 1, hi + 1}, nil
		}
	}
	return [2]float64{-5, 5}, nil
}
