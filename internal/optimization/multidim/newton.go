package multidim

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// NewtonParams configures Newton.
type NewtonParams struct {
	Tol     float64
	MaxIter int
}

// Newton minimises p.Func from x0 with full Newton steps s = H⁻¹∇f.
//
// A Hessian that cannot be inverted is a singular-matrix error; there is no
// regularisation fallback. Convergence is ‖x_next - x‖ < Tol. The result
// carries the gradient and Hessian at the returned point.
func Newton(p Problem, x0 []float64, params NewtonParams, opts ...Option) (*Result, error) {
	const op = "Newton"
	o := newOptions(opts)

	if err := validateStart(op, p, x0, params.Tol, params.MaxIter); err != nil {
		return nil, err
	}
	if p.Hess == nil {
		return nil, errorf(optimization.KindValidation, op, "Hessian is required")
	}

	n := len(x0)
	x := clone(x0)
	f0, err := evalFunc(op, p.Func, x)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Path:   [][]float64{x},
		Values: []float64{f0},
	}

	o.logger.Debug("Starting Newton's method",
		zap.Int("dimensions", n),
		zap.Float64("tol", params.Tol),
		zap.Int("max_iter", params.MaxIter))

	converged := false
	iterations := params.MaxIter
	for iter := 1; iter <= params.MaxIter; iter++ {
		g, err := evalGrad(op, p.Grad, x)
		if err != nil {
			return nil, err
		}
		h, err := evalHess(op, p.Hess, x)
		if err != nil {
			return nil, err
		}

		var inv mat.Dense
		if err := inv.Inverse(h); err != nil {
			return nil, wrap(optimization.KindSingularMatrix, op, err,
				"Hessian inversion failed; the Hessian may be singular")
		}
		var s mat.VecDense
		s.MulVec(&inv, mat.NewVecDense(n, g))

		next := make([]float64, n)
		floats.SubTo(next, x, s.RawVector().Data)
		f1, err := evalFunc(op, p.Func, next)
		if err != nil {
			return nil, err
		}
		if !optimization.IsFinite(f1) {
			return nil, errorf(optimization.KindDivergence, op,
				"objective diverged at iteration %d; try another starting point", iter)
		}

		res.Path = append(res.Path, next)
		res.Values = append(res.Values, f1)
		step := floats.Distance(next, x, 2)
		x = next

		o.logger.Debug("Newton iteration",
			zap.Int("iteration", iter),
			zap.Float64("f", f1),
			zap.Float64("step_norm", step))

		if step < params.Tol {
			converged = true
			iterations = iter
			break
		}
	}

	res.XMin = x
	res.FMin = res.Values[len(res.Values)-1]
	res.Converged = converged
	res.Iterations = iterations
	if res.Gradient, err = evalGrad(op, p.Grad, x); err != nil {
		return nil, err
	}
	if res.Hessian, err = evalHess(op, p.Hess, x); err != nil {
		return nil, err
	}

	o.logger.Debug("Newton's method finished",
		zap.Bool("converged", converged),
		zap.Int("iterations", iterations),
		zap.Float64("fmin", res.FMin))
	return res, nil
}
