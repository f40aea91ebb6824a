// Package multidim implements unconstrained minimisation over R^n with
// gradient descent and Newton's method.
package multidim

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Problem bundles an objective with its derivatives. Hess is only required
// by Newton.
type Problem struct {
	Func optimization.ObjectiveFunc
	Grad optimization.GradientFunc
	Hess optimization.HessianFunc
}

// Result is the outcome of a minimisation run.
type Result struct {
	XMin []float64 `json:"xmin"`
	FMin float64   `json:"fmin"`
	// StepSize is the final step size; zero for Newton.
	StepSize   float64 `json:"step_size,omitempty"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	// Path holds every iterate starting with x0; Values[i] = f(Path[i]).
	Path   [][]float64 `json:"path"`
	Values []float64   `json:"values"`
	// Gradient and Hessian at XMin. Hessian is only set by Newton.
	Gradient []float64  `json:"gradient,omitempty"`
	Hessian  *mat.Dense `json:"-"`
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for debug tracing. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func errorf(kind optimization.Kind, op, format string, args ...interface{}) error {
	return optimization.Errorf(kind, format, args...).WithOperation(op).WithComponent("multidim")
}

// wrap classifies err under kind unless it already carries a Kind.
func wrap(kind optimization.Kind, op string, err error, msg string) error {
	if k, ok := optimization.KindOf(err); ok {
		kind = k
	}
	return &optimization.Error{Kind: kind, Op: op, Component: "multidim", Message: msg, Err: err}
}

func evalFunc(op string, f optimization.ObjectiveFunc, x []float64) (float64, error) {
	v, err := f(x)
	if err != nil {
		return 0, wrap(optimization.KindEvaluation, op, err, "objective evaluation failed")
	}
	return v, nil
}

func evalGrad(op string, g optimization.GradientFunc, x []float64) ([]float64, error) {
	v, err := g(x)
	if err != nil {
		return nil, wrap(optimization.KindEvaluation, op, err, "gradient evaluation failed")
	}
	if len(v) != len(x) {
		return nil, errorf(optimization.KindValidation, op, "gradient has %d components, want %d", len(v), len(x))
	}
	return v, nil
}

func evalHess(op string, h optimization.HessianFunc, x []float64) (*mat.Dense, error) {
	v, err := h(x)
	if err != nil {
		return nil, wrap(optimization.KindEvaluation, op, err, "Hessian evaluation failed")
	}
	if v == nil {
		return nil, errorf(optimization.KindValidation, op, "Hessian is nil")
	}
	if r, c := v.Dims(); r != len(x) || c != len(x) {
		return nil, errorf(optimization.KindValidation, op, "Hessian is %dx%d, want %dx%d", r, c, len(x), len(x))
	}
	return v, nil
}

func validateStart(op string, p Problem, x0 []float64, tol float64, maxIter int) error {
	if err := optimization.ValidateIterationParams(op, tol, maxIter); err != nil {
		return err
	}
	if p.Func == nil || p.Grad == nil {
		return errorf(optimization.KindValidation, op, "objective and gradient are required")
	}
	if len(x0) == 0 {
		return errorf(optimization.KindValidation, op, "initial point is empty")
	}
	for i, v := range x0 {
		if !optimization.IsFinite(v) {
			return errorf(optimization.KindValidation, op, "initial point component %d is not finite", i)
		}
	}
	return nil
}

func clone(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}

func norm(v []float64) float64 { return floats.Norm(v, 2) }
