package onedim

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// BisectionParams configures Bisection.
type BisectionParams struct {
	// A and B bracket the root; A must be less than B.
	A, B    float64
	Tol     float64
	MaxIter int
}

// BisectionStep is the bracket [A, B] and its midpoint C at one iteration.
type BisectionStep struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Bisection finds a root of f in [A, B] by repeated halving.
//
// If |f(A)| or |f(B)| is already below Tol the trace is a single step whose C
// is that endpoint. Otherwise f(A) and f(B) must have opposite signs. The loop
// stops when the emitted bracket is narrower than Tol, when a midpoint is an
// exact root, or after MaxIter steps.
func Bisection(f optimization.Func, p BisectionParams, opts ...Option) ([]BisectionStep, error) {
	const op = "Bisection"
	o := newOptions(opts)

	if err := optimization.ValidateIterationParams(op, p.Tol, p.MaxIter); err != nil {
		return nil, tagComponent(err)
	}
	if err := optimization.ValidateFinite(op, []string{"a", "b"}, p.A, p.B); err != nil {
		return nil, tagComponent(err)
	}
	if p.A >= p.B {
		return nil, validationErrorf(op, "a must be less than b, got a=%v b=%v", p.A, p.B)
	}

	a, b := p.A, p.B
	fa, err := f.Eval(op, a)
	if err != nil {
		return nil, tagComponent(err)
	}
	if math.Abs(fa) < p.Tol {
		return []BisectionStep{{A: a, B: b, C: a}}, nil
	}
	fb, err := f.Eval(op, b)
	if err != nil {
		return nil, tagComponent(err)
	}
	if math.Abs(fb) < p.Tol {
		return []BisectionStep{{A: a, B: b, C: b}}, nil
	}
	if !(fa*fb < 0) {
		return nil, optimization.Errorf(optimization.KindBracket,
			"f(a) and f(b) must have opposite signs, got f(%v)=%v f(%v)=%v", a, fa, b, fb).
			WithOperation(op).WithComponent("onedim")
	}

	o.logger.Debug("Starting bisection",
		zap.Float64("a", a),
		zap.Float64("b", b),
		zap.Float64("tol", p.Tol),
		zap.Int("max_iter", p.MaxIter))

	steps := make([]BisectionStep, 0, min(p.MaxIter, 64))
	reason := "max_iter"
	for i := 0; i < p.MaxIter; i++ {
		c := (a + b) / 2
		steps = append(steps, BisectionStep{A: a, B: b, C: c})
		if b-a < p.Tol {
			reason = "tolerance"
			break
		}
		fc, err := f.Eval(op, c)
		if err != nil {
			return nil, tagComponent(err)
		}
		if fa*fc < 0 {
			b = c
		} else if fc == 0 {
			reason = "exact_root"
			break
		} else {
			a, fa = c, fc
		}
	}

	o.logger.Debug("Bisection finished",
		zap.String("reason", reason),
		zap.Int("steps", len(steps)),
		zap.Float64("root", steps[len(steps)-1].C))
	return steps, nil
}

// BisectionRoot returns the last midpoint of a trace, or NaN for an empty trace.
func BisectionRoot(steps []BisectionStep) float64 {
	if len(steps) == 0 {
		return math.NaN()
	}
	return steps[len(steps)-1].C
}
