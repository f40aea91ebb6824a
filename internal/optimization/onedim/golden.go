package onedim

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// gold is the fraction of the larger sub-interval at which the trial point is
// placed, (3 - √5) / 2.
var gold = (3 - math.Sqrt(5)) / 2

// GoldenParams configures GoldenSection.
type GoldenParams struct {
	// A < B < C with f(B) below both f(A) and f(C).
	A, B, C float64
	// Tol is relative: the search converges when |C - A| < Tol·|B|.
	Tol     float64
	MaxIter int
}

// GoldenStep records the bracket before an iteration, the trial point and
// the bracket after it.
type GoldenStep struct {
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	C    float64 `json:"c"`
	X    float64 `json:"x"`
	FX   float64 `json:"fx"`
	NewA float64 `json:"new_a"`
	NewB float64 `json:"new_b"`
	NewC float64 `json:"new_c"`
}

// GoldenResult is the outcome of GoldenSection.
type GoldenResult struct {
	Minimum    float64      `json:"minimum"`
	Objective  float64      `json:"objective"`
	Converged  bool         `json:"converged"`
	Iterations int          `json:"iterations"`
	Tol        float64      `json:"tol"`
	Steps      []GoldenStep `json:"steps"`
}

// GoldenSection minimises f inside the bracket (A, B, C).
//
// The function must be unimodal on [A, C]; this cannot be checked and is the
// caller's responsibility. Only the bracket condition f(B) < f(A), f(B) < f(C)
// is verified. Because the tolerance is relative to B, a minimum at or very
// near zero may never satisfy it and the search then runs to MaxIter.
func GoldenSection(f optimization.Func, p GoldenParams, opts ...Option) (*GoldenResult, error) {
	const op = "GoldenSection"
	o := newOptions(opts)

	if err := optimization.ValidateIterationParams(op, p.Tol, p.MaxIter); err != nil {
		return nil, tagComponent(err)
	}
	if err := optimization.ValidateFinite(op, []string{"a", "b", "c"}, p.A, p.B, p.C); err != nil {
		return nil, tagComponent(err)
	}
	if !(p.A < p.B && p.B < p.C) {
		return nil, validationErrorf(op, "bracket must satisfy a < b < c, got a=%v b=%v c=%v", p.A, p.B, p.C)
	}

	fa, err := f.Eval(op, p.A)
	if err != nil {
		return nil, tagComponent(err)
	}
	fb, err := f.Eval(op, p.B)
	if err != nil {
		return nil, tagComponent(err)
	}
	fc, err := f.Eval(op, p.C)
	if err != nil {
		return nil, tagComponent(err)
	}
	if !(fb < fa && fb < fc) {
		return nil, optimization.Errorf(optimization.KindBracket,
			"f(b) must be less than f(a) and f(c), got f(a)=%v f(b)=%v f(c)=%v", fa, fb, fc).
			WithOperation(op).WithComponent("onedim")
	}

	o.logger.Debug("Starting golden-section search",
		zap.Float64("a", p.A),
		zap.Float64("b", p.B),
		zap.Float64("c", p.C),
		zap.Float64("tol", p.Tol),
		zap.Int("max_iter", p.MaxIter))

	a, b, c := p.A, p.B, p.C
	res := &GoldenResult{Tol: p.Tol}
	for i := 0; i < p.MaxIter; i++ {
		res.Iterations = i + 1

		var x float64
		if b > 0.5*(a+c) {
			x = b + gold*(a-b)
		} else {
			x = b + gold*(c-b)
		}
		fx, err := f.Eval(op, x)
		if err != nil {
			return nil, tagComponent(err)
		}

		step := GoldenStep{A: a, B: b, C: c, X: x, FX: fx}
		if fx < fb {
			if x > b {
				a = b
			} else {
				c = b
			}
			b, fb = x, fx
		} else {
			if x < b {
				a = x
			} else {
				c = x
			}
		}
		step.NewA, step.NewB, step.NewC = a, b, c
		res.Steps = append(res.Steps, step)

		if math.Abs(c-a) < p.Tol*math.Abs(b) {
			res.Converged = true
			break
		}
	}
	res.Minimum = b
	res.Objective = fb

	o.logger.Debug("Golden-section search finished",
		zap.Bool("converged", res.Converged),
		zap.Int("iterations", res.Iterations),
		zap.Float64("minimum", res.Minimum))
	return res, nil
}
