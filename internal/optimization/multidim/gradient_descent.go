package multidim

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// GradientDescentParams configures GradientDescent.
type GradientDescentParams struct {
	StepSize float64
	// Adaptive recomputes the step size each iteration with the
	// Barzilai-Borwein rule |Δx·Δg| / ‖Δg‖².
	Adaptive bool
	Tol      float64
	MaxIter  int
}

// GradientDescent minimises p.Func from x0 by steepest descent.
//
// Each iteration first checks ‖∇f(x)‖ < Tol, then steps to x - α∇f(x) and
// checks the relative objective change |f1 - f0| <= Tol(|f1| + |f0|). A
// non-finite objective is a divergence error. Reaching MaxIter returns the
// last iterate with Converged false. x0 is not modified.
func GradientDescent(p Problem, x0 []float64, params GradientDescentParams, opts ...Option) (*Result, error) {
	const op = "GradientDescent"
	o := newOptions(opts)

	if err := validateStart(op, p, x0, params.Tol, params.MaxIter); err != nil {
		return nil, err
	}
	if !(params.StepSize > 0) || math.IsInf(params.StepSize, 0) {
		return nil, errorf(optimization.KindValidation, op, "step size must be positive and finite, got %v", params.StepSize)
	}

	x := clone(x0)
	f0, err := evalFunc(op, p.Func, x)
	if err != nil {
		return nil, err
	}
	if !optimization.IsFinite(f0) {
		return nil, errorf(optimization.KindDivergence, op, "objective is not finite at the initial point")
	}
	g0, err := evalGrad(op, p.Grad, x)
	if err != nil {
		return nil, err
	}

	res := &Result{
		StepSize: params.StepSize,
		Path:     [][]float64{x},
		Values:   []float64{f0},
	}
	finish := func(converged bool, iter int) *Result {
		res.XMin = res.Path[len(res.Path)-1]
		res.FMin = res.Values[len(res.Values)-1]
		res.Gradient = g0
		res.Converged = converged
		res.Iterations = iter
		o.logger.Debug("Gradient descent finished",
			zap.Bool("converged", converged),
			zap.Int("iterations", iter),
			zap.Float64("fmin", res.FMin),
			zap.Float64("step_size", res.StepSize))
		return res
	}

	if norm(g0) < params.Tol {
		return finish(true, 0), nil
	}

	o.logger.Debug("Starting gradient descent",
		zap.Int("dimensions", len(x0)),
		zap.Float64("step_size", params.StepSize),
		zap.Bool("adaptive", params.Adaptive),
		zap.Float64("tol", params.Tol),
		zap.Int("max_iter", params.MaxIter))

	alpha := params.StepSize
	for iter := 1; iter <= params.MaxIter; iter++ {
		if norm(g0) < params.Tol {
			return finish(true, iter), nil
		}

		next := clone(x)
		floats.AddScaled(next, -alpha, g0)
		f1, err := evalFunc(op, p.Func, next)
		if err != nil {
			return nil, err
		}
		if !optimization.IsFinite(f1) {
			return nil, errorf(optimization.KindDivergence, op,
				"objective diverged at iteration %d; try a smaller step size or another starting point", iter)
		}
		g1, err := evalGrad(op, p.Grad, next)
		if err != nil {
			return nil, err
		}

		res.Path = append(res.Path, next)
		res.Values = append(res.Values, f1)

		if math.Abs(f1-f0) <= params.Tol*(math.Abs(f1)+math.Abs(f0)) {
			g0 = g1
			return finish(true, iter), nil
		}

		if params.Adaptive {
			dx := make([]float64, len(x))
			floats.SubTo(dx, next, x)
			dg := make([]float64, len(x))
			floats.SubTo(dg, g1, g0)
			if dgSq := floats.Dot(dg, dg); dgSq > 0 {
				alpha = math.Abs(floats.Dot(dx, dg)) / dgSq
				res.StepSize = alpha
			}
		}

		x, f0, g0 = next, f1, g1
	}

	return finish(false, params.MaxIter), nil
}
