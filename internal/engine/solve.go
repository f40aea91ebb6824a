package engine

import (
	"context"

	"github.com/copyleftdev/stepwise/internal/metrics"
	"github.com/copyleftdev/stepwise/internal/optimization/onedim"
)

// Method names used for metrics, logs and JSON-RPC dispatch.
const (
	MethodBisection       = "bisection"
	MethodGoldenSection   = "golden_section"
	MethodNewtonRaphson   = "newton_raphson"
	MethodSecant          = "secant"
	MethodGradientDescent = "gradient_descent"
	MethodNewton          = "newton"
	MethodMixture         = "gmm"
	MethodDerivative      = "derivative"
	MethodInterpolate     = "interpolate"
	MethodSurface         = "surface"
)

// BisectionRequest asks for a root of the source inside [A, B].
type BisectionRequest struct {
	Source  `yaml:",inline"`
	A       float64 `json:"a" yaml:"a"`
	B       float64 `json:"b" yaml:"b"`
	Tol     float64 `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter int     `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// BisectionResponse is the full bisection trace. Root is the last midpoint.
type BisectionResponse struct {
	Steps      []onedim.BisectionStep `json:"steps"`
	Root       float64                `json:"root"`
	Iterations int                    `json:"iterations"`
}

// SolveBisection runs bisection on the requested source.
func (e *Engine) SolveBisection(ctx context.Context, req BisectionRequest) (*BisectionResponse, error) {
	const op = "SolveBisection"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}

	var resp *BisectionResponse
	err = e.run(ctx, MethodBisection, func() (string, int, error) {
		src, err := e.resolve(op, req.Source)
		if err != nil {
			return "", 0, err
		}
		steps, err := onedim.Bisection(src.f, onedim.BisectionParams{
			A: req.A, B: req.B, Tol: tol, MaxIter: maxIter,
		}, onedim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		resp = &BisectionResponse{Steps: steps, Root: onedim.BisectionRoot(steps), Iterations: len(steps)}
		return metrics.OutcomeCompleted, len(steps), nil
	})
	return resp, err
}

// GoldenSectionRequest asks for a minimum of the source inside the bracket
// (A, B, C). f(B) must be below f(A) and f(C), and the source must be
// unimodal on [A, C]; only the first condition is checked.
type GoldenSectionRequest struct {
	Source  `yaml:",inline"`
	A       float64 `json:"a" yaml:"a"`
	B       float64 `json:"b" yaml:"b"`
	C       float64 `json:"c" yaml:"c"`
	Tol     float64 `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter int     `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// SolveGoldenSection runs golden-section search on the requested source.
func (e *Engine) SolveGoldenSection(ctx context.Context, req GoldenSectionRequest) (*onedim.GoldenResult, error) {
	const op = "SolveGoldenSection"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}

	var resp *onedim.GoldenResult
	err = e.run(ctx, MethodGoldenSection, func() (string, int, error) {
		src, err := e.resolve(op, req.Source)
		if err != nil {
			return "", 0, err
		}
		resp, err = onedim.GoldenSection(src.f, onedim.GoldenParams{
			A: req.A, B: req.B, C: req.C, Tol: tol, MaxIter: maxIter,
		}, onedim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		return convergedOutcome(resp.Converged), resp.Iterations, nil
	})
	return resp, err
}

// NewtonRaphsonRequest asks for a root of the source starting from X0.
type NewtonRaphsonRequest struct {
	Source  `yaml:",inline"`
	X0      float64 `json:"x0" yaml:"x0"`
	Tol     float64 `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter int     `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// NewtonRaphsonResponse is the Newton-Raphson trace. Derivative is the
// symbolic derivative used in function mode.
type NewtonRaphsonResponse struct {
	Steps      []onedim.NewtonRaphsonStep `json:"steps"`
	Root       float64                    `json:"root"`
	Iterations int                        `json:"iterations"`
	Derivative string                     `json:"derivative,omitempty"`
}

// SolveNewtonRaphson runs Newton-Raphson on the requested source. Function
// mode differentiates the expression symbolically; data mode uses a
// central difference of the interpolant.
func (e *Engine) SolveNewtonRaphson(ctx context.Context, req NewtonRaphsonRequest) (*NewtonRaphsonResponse, error) {
	const op = "SolveNewtonRaphson"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}

	var resp *NewtonRaphsonResponse
	err = e.run(ctx, MethodNewtonRaphson, func() (string, int, error) {
		src, err := e.resolve(op, req.Source)
		if err != nil {
			return "", 0, err
		}
		steps, err := onedim.NewtonRaphson(src.f, src.df, onedim.NewtonRaphsonParams{
			X0: req.X0, Tol: tol, MaxIter: maxIter,
		}, onedim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		resp = &NewtonRaphsonResponse{
			Steps:      steps,
			Root:       onedim.NewtonRaphsonRoot(steps),
			Iterations: len(steps),
			Derivative: src.derivative,
		}
		return metrics.OutcomeCompleted, len(steps), nil
	})
	return resp, err
}

// SecantRequest asks for a root of the source from the guesses X0 and X1.
type SecantRequest struct {
	Source  `yaml:",inline"`
	X0      float64 `json:"x0" yaml:"x0"`
	X1      float64 `json:"x1" yaml:"x1"`
	Tol     float64 `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter int     `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
}

// SecantResponse is the secant trace.
type SecantResponse struct {
	Steps      []onedim.SecantStep `json:"steps"`
	Root       float64             `json:"root"`
	Iterations int                 `json:"iterations"`
}

// SolveSecant runs the secant method on the requested source.
func (e *Engine) SolveSecant(ctx context.Context, req SecantRequest) (*SecantResponse, error) {
	const op = "SolveSecant"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}

	var resp *SecantResponse
	err = e.run(ctx, MethodSecant, func() (string, int, error) {
		src, err := e.resolve(op, req.Source)
		if err != nil {
			return "", 0, err
		}
		steps, err := onedim.Secant(src.f, onedim.SecantParams{
			X0: req.X0, X1: req.X1, Tol: tol, MaxIter: maxIter,
		}, onedim.WithLogger(e.logger))
		if err != nil {
			return "", 0, err
		}
		resp = &SecantResponse{Steps: steps, Root: onedim.SecantRoot(steps), Iterations: len(steps)}
		return metrics.OutcomeCompleted, len(steps), nil
	})
	return resp, err
}
