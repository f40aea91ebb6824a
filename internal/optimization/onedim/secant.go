package onedim

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// SecantParams configures Secant.
type SecantParams struct {
	X0, X1  float64
	Tol     float64
	MaxIter int
}

// SecantStep is the pair (X0, X1) and the next estimate X2.
type SecantStep struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

// Secant finds a root of f from two starting guesses.
//
// When |f(x1) - f(x0)| < 1e-15, or the next estimate is not finite, the
// step {x0, x1, x1} is emitted and the run stops. Convergence is
// |x2 - x1| < Tol.
func Secant(f optimization.Func, p SecantParams, opts ...Option) ([]SecantStep, error) {
	const op = "Secant"
	o := newOptions(opts)

	if err := optimization.ValidateIterationParams(op, p.Tol, p.MaxIter); err != nil {
		return nil, tagComponent(err)
	}
	if err := optimization.ValidateFinite(op, []string{"x0", "x1"}, p.X0, p.X1); err != nil {
		return nil, tagComponent(err)
	}

	x0, x1 := p.X0, p.X1
	f0, err := f.Eval(op, x0)
	if err != nil {
		return nil, tagComponent(err)
	}
	f1, err := f.Eval(op, x1)
	if err != nil {
		return nil, tagComponent(err)
	}

	o.logger.Debug("Starting secant",
		zap.Float64("x0", x0),
		zap.Float64("x1", x1),
		zap.Float64("tol", p.Tol),
		zap.Int("max_iter", p.MaxIter))

	var steps []SecantStep
	reason := "max_iter"
	for i := 0; i < p.MaxIter; i++ {
		if math.Abs(f1-f0) < degenerateSlope {
			steps = append(steps, SecantStep{X0: x0, X1: x1, X2: x1})
			reason = "flat_secant"
			break
		}

		x2 := x1 - f1*(x1-x0)/(f1-f0)
		if !optimization.IsFinite(x2) {
			steps = append(steps, SecantStep{X0: x0, X1: x1, X2: x1})
			reason = "non_finite"
			break
		}
		steps = append(steps, SecantStep{X0: x0, X1: x1, X2: x2})
		if math.Abs(x2-x1) < p.Tol {
			reason = "tolerance"
			break
		}

		x0, f0 = x1, f1
		x1 = x2
		if f1, err = f.Eval(op, x1); err != nil {
			return nil, tagComponent(err)
		}
	}

	o.logger.Debug("Secant finished",
		zap.String("reason", reason),
		zap.Int("steps", len(steps)),
		zap.Float64("root", SecantRoot(steps)))
	return steps, nil
}

// SecantRoot returns the last estimate of a trace, or NaN for an empty trace.
func SecantRoot(steps []SecantStep) float64 {
	if len(steps) == 0 {
		return math.NaN()
	}
	return steps[len(steps)-1].X2
}
