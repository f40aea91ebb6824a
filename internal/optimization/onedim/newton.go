package onedim

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// NewtonRaphsonParams configures NewtonRaphson.
type NewtonRaphsonParams struct {
	X0      float64
	Tol     float64
	MaxIter int
}

// NewtonRaphsonStep is one update x0 -> x1.
type NewtonRaphsonStep struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
}

// CentralDifference returns f' estimated by a central difference with
// step 1e-5. The first error f returns aborts the estimate.
func CentralDifference(f optimization.Func) optimization.Func {
	settings := &fd.Settings{Formula: fd.Central, Step: centralStep}
	return func(x float64) (float64, error) {
		var evalErr error
		d := fd.Derivative(func(x float64) float64 {
			v, err := f(x)
			if err != nil && evalErr == nil {
				evalErr = err
			}
			return v
		}, x, settings)
		if evalErr != nil {
			return math.NaN(), evalErr
		}
		return d, nil
	}
}

// NewtonRaphson finds a root of f from X0 using the derivative df. A nil df
// is replaced by CentralDifference(f).
//
// When |f'(x0)| < 1e-15, or the next estimate is not finite (f left its
// domain), the step {x0, x0} is emitted and the run stops; this is a silent
// early termination, not an error. Convergence is |x1 - x0| < Tol.
func NewtonRaphson(f, df optimization.Func, p NewtonRaphsonParams, opts ...Option) ([]NewtonRaphsonStep, error) {
	const op = "NewtonRaphson"
	o := newOptions(opts)

	if err := optimization.ValidateIterationParams(op, p.Tol, p.MaxIter); err != nil {
		return nil, tagComponent(err)
	}
	if err := optimization.ValidateFinite(op, []string{"x0"}, p.X0); err != nil {
		return nil, tagComponent(err)
	}
	if df == nil {
		df = CentralDifference(f)
	}

	o.logger.Debug("Starting Newton-Raphson",
		zap.Float64("x0", p.X0),
		zap.Float64("tol", p.Tol),
		zap.Int("max_iter", p.MaxIter))

	var steps []NewtonRaphsonStep
	reason := "max_iter"
	x0 := p.X0
	for i := 0; i < p.MaxIter; i++ {
		fx, err := f.Eval(op, x0)
		if err != nil {
			return nil, tagComponent(err)
		}
		dfx, err := df.Eval(op, x0)
		if err != nil {
			return nil, tagComponent(err)
		}

		if math.Abs(dfx) < degenerateSlope {
			steps = append(steps, NewtonRaphsonStep{X0: x0, X1: x0})
			reason = "zero_derivative"
			break
		}

		x1 := x0 - fx/dfx
		if !optimization.IsFinite(x1) {
			steps = append(steps, NewtonRaphsonStep{X0: x0, X1: x0})
			reason = "non_finite"
			break
		}
		steps = append(steps, NewtonRaphsonStep{X0: x0, X1: x1})
		if math.Abs(x1-x0) < p.Tol {
			reason = "tolerance"
			break
		}
		x0 = x1
	}

	o.logger.Debug("Newton-Raphson finished",
		zap.String("reason", reason),
		zap.Int("steps", len(steps)),
		zap.Float64("root", NewtonRaphsonRoot(steps)))
	return steps, nil
}

// NewtonRaphsonRoot returns the last estimate of a trace, or NaN for an empty trace.
func NewtonRaphsonRoot(steps []NewtonRaphsonStep) float64 {
	if len(steps) == 0 {
		return math.NaN()
	}
	return steps[len(steps)-1].X1
}
