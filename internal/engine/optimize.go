package engine

import (
	"context"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/expr"
	"github.com/copyleftdev/stepwise/internal/optimization"
	"github.com/copyleftdev/stepwise/internal/optimization/multidim"
)

// DefaultStepSize is the gradient descent step used when a request leaves
// it at zero.
const DefaultStepSize = 0.001

// GradientDescentRequest minimises Expression from X0. An empty Gradient
// is derived symbolically. Variables are bound as x1..xn, and also as x
// (n = 1) or x, y (n = 2).
type GradientDescentRequest struct {
	Expression string    `json:"expression" yaml:"expression"`
	Gradient   string    `json:"gradient,omitempty" yaml:"gradient,omitempty"`
	X0         []float64 `json:"x0" yaml:"x0"`
	StepSize   float64   `json:"step_size,omitempty" yaml:"step_size,omitempty"`
	Adaptive   bool      `json:"adaptive,omitempty" yaml:"adaptive,omitempty"`
	Tol        float64   `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter    int       `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// NewtonRequest minimises Expression from X0 with Newton's method. Empty
// Gradient and Hessian strings are derived symbolically.
type NewtonRequest struct {
	Expression string    `json:"expression" yaml:"expression"`
	Gradient   string    `json:"gradient,omitempty" yaml:"gradient,omitempty"`
	Hessian    string    `json:"hessian,omitempty" yaml:"hessian,omitempty"`
	X0         []float64 `json:"x0" yaml:"x0"`
	Tol        float64   `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter    int       `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// OptimizeResponse is the outcome of an N-D minimisation.
type OptimizeResponse struct {
	XMin       []float64   `json:"xmin"`
	FMin       float64     `json:"fmin"`
	StepSize   float64     `json:"step_size,omitempty"`
	Converged  bool        `json:"converged"`
	Iterations int         `json:"iterations"`
	Path       [][]float64 `json:"path"`
	Values     []float64   `json:"values"`
	Gradient   []float64   `json:"gradient,omitempty"`
	Hessian    [][]float64 `json:"hessian,omitempty"`

	// Variables names the coordinates of x in order.
	Variables []string `json:"variables"`
	// GradientExpression and HessianExpression are the derivative
	// expressions that were evaluated, whether supplied or derived.
	GradientExpression string `json:"gradient_expression"`
	HessianExpression  string `json:"hessian_expression,omitempty"`
}

// GradientDescent runs gradient descent on the request.
func (e *Engine) GradientDescent(ctx context.Context, req GradientDescentRequest) (*OptimizeResponse, error) {
	const op = "GradientDescent"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}
	step := req.StepSize
	if step == 0 {
		step = DefaultStepSize
	}

	var resp *OptimizeResponse
	err = e.run(ctx, MethodGradientDescent, func() (string, int, error) {
		prob, err := e.problem(op, req.Expression, req.Gradient, "", req.X0, false)
		if err != nil {
			return "", 0, err
		}
		res, err := multidim.GradientDescent(prob.Problem, req.X0, multidim.GradientDescentParams{
			StepSize: step, Adaptive: req.Adaptive, Tol: tol, MaxIter: maxIter,
		}, multidim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		resp = prob.response(res)
		return convergedOutcome(res.Converged), res.Iterations, nil
	})
	return resp, err
}

// Newton runs Newton's method on the request.
func (e *Engine) Newton(ctx context.Context, req NewtonRequest) (*OptimizeResponse, error) {
	const op = "Newton"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}

	var resp *OptimizeResponse
	err = e.run(ctx, MethodNewton, func() (string, int, error) {
		prob, err := e.problem(op, req.Expression, req.Gradient, req.Hessian, req.X0, true)
		if err != nil {
			return "", 0, err
		}
		res, err := multidim.Newton(prob.Problem, req.X0, multidim.NewtonParams{
			Tol: tol, MaxIter: maxIter,
		}, multidim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		resp = prob.response(res)
		return convergedOutcome(res.Converged), res.Iterations, nil
	})
	return resp, err
}

type boundProblem struct {
	multidim.Problem
	vars     []string
	gradient expr.Vector
	hessian  expr.Matrix
}

// problem parses the objective and its derivatives, deriving any that are
// missing, and checks that f and ∇f are finite at x0.
func (e *Engine) problem(op, objective, gradient, hessian string, x0 []float64, withHessian bool) (*boundProblem, error) {
	if strings.TrimSpace(objective) == "" {
		return nil, validationf(op, "expression is required")
	}
	n := len(x0)
	if n == 0 {
		return nil, validationf(op, "x0 must not be empty")
	}
	if err := optimization.ValidateFinite(op, []string{"x0"}, x0...); err != nil {
		return nil, err
	}

	f, err := expr.Parse(objective)
	if err != nil {
		return nil, err
	}
	bp := &boundProblem{vars: expr.VariablesFor(f, n)}

	if strings.TrimSpace(gradient) == "" {
		bp.gradient = f.Gradient(bp.vars)
	} else if bp.gradient, err = expr.ParseVector(gradient); err != nil {
		return nil, err
	}
	if len(bp.gradient) != n {
		return nil, validationf(op, "gradient has %d components, x0 has %d", len(bp.gradient), n)
	}

	if withHessian {
		if strings.TrimSpace(hessian) == "" {
			bp.hessian = f.Hessian(bp.vars)
		} else if bp.hessian, err = expr.ParseMatrix(hessian); err != nil {
			return nil, err
		}
		if len(bp.hessian) != n || len(bp.hessian[0]) != n {
			return nil, validationf(op, "hessian must be %d×%d", n, n)
		}
		bp.Hess = bp.hessian.HessianFunc()
	}
	bp.Func = f.Objective()
	bp.Grad = bp.gradient.GradientFunc()

	if err := checkStart(op, bp.Problem, x0); err != nil {
		return nil, err
	}
	return bp, nil
}

// checkStart rejects starting points where f or ∇f is not finite.
func checkStart(op string, p multidim.Problem, x0 []float64) error {
	fx, err := p.Func(x0)
	if err != nil {
		return optimization.WrapError(optimization.KindEvaluation, err, "cannot evaluate the objective at x0")
	}
	if !optimization.IsFinite(fx) {
		return optimization.Errorf(optimization.KindEvaluation, "objective is %v at x0", fx).
			WithOperation(op).WithComponent(component)
	}
	g, err := p.Grad(x0)
	if err != nil {
		return optimization.WrapError(optimization.KindEvaluation, err, "cannot evaluate the gradient at x0")
	}
	for i, v := range g {
		if !optimization.IsFinite(v) {
			return optimization.Errorf(optimization.KindEvaluation, "gradient component %d is %v at x0", i+1, v).
				WithOperation(op).WithComponent(component)
		}
	}
	return nil
}

func (bp *boundProblem) response(res *multidim.Result) *OptimizeResponse {
	resp := &OptimizeResponse{
		XMin:               res.XMin,
		FMin:               res.FMin,
		StepSize:           res.StepSize,
		Converged:          res.Converged,
		Iterations:         res.Iterations,
		Path:               res.Path,
		Values:             res.Values,
		Gradient:           res.Gradient,
		Variables:          bp.vars,
		GradientExpression: bp.gradient.String(),
	}
	if res.Hessian != nil {
		resp.Hessian = rows(res.Hessian)
	}
	if bp.hessian != nil {
		resp.HessianExpression = bp.hessian.String()
	}
	return resp
}

// rows copies m into a slice of rows.
func rows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
