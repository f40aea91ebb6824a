// Package optimization holds the function types and error taxonomy shared by
// the solver packages (onedim, multidim, gmm).
package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Func is a scalar function of one variable. A returned error aborts the solve.
type Func func(x float64) (float64, error)

// ObjectiveFunc defines the function to be minimized over R^n.
type ObjectiveFunc func(x []float64) (float64, error)

// GradientFunc returns the gradient of an ObjectiveFunc at x.
type GradientFunc func(x []float64) ([]float64, error)

// HessianFunc returns the n×n Hessian of an ObjectiveFunc at x.
type HessianFunc func(x []float64) (*mat.Dense, error)

// Eval calls f and classifies any failure as an evaluation error.
func (f Func) Eval(op string, x float64) (float64, error) {
	v, err := f(x)
	if err != nil {
		e := &Error{Kind: KindEvaluation, Message: "function evaluation failed", Op: op, Err: err}
		if k, ok := KindOf(err); ok {
			e.Kind = k
		}
		return math.NaN(), e
	}
	return v, nil
}

// ValidateIterationParams checks the tolerance and iteration limit every
// iterative solver accepts.
func ValidateIterationParams(op string, tol float64, maxIter int) error {
	if math.IsNaN(tol) || tol < 0 {
		return Errorf(KindValidation, "tolerance must be non-negative, got %v", tol).WithOperation(op)
	}
	if maxIter < 1 {
		return Errorf(KindValidation, "max iterations must be at least 1, got %d", maxIter).WithOperation(op)
	}
	return nil
}

// ValidateFinite returns a validation error naming the first non-finite value.
func ValidateFinite(op string, names []string, values ...float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			name := "value"
			if i < len(names) {
				name = names[i]
			}
			return Errorf(KindValidation, "%s must be finite, got %v", name, v).WithOperation(op)
		}
	}
	return nil
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
