// Package expr parses and evaluates arithmetic expressions over named
// variables and computes their symbolic derivatives.
//
// The grammar covers numbers, the constants pi and e, + - * / ^ (right
// associative, binding tighter than unary minus), parentheses, implicit
// multiplication after a number literal ("2x"), and the functions sin, cos,
// tan, exp, log (natural, alias ln), sqrt and abs. Bracketed lists are
// accepted by ParseVector and ParseMatrix only.
package expr

import (
	"math"
	"sort"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Bindings maps variable names to values.
type Bindings map[string]float64

// Expression is a parsed scalar expression. It is immutable and safe for
// concurrent use.
type Expression struct {
	root node
}

// Parse parses a scalar expression.
func Parse(src string) (*Expression, error) {
	n, err := parse(src)
	if err != nil {
		return nil, err
	}
	if _, ok := n.(*list); ok {
		return nil, evalErrorf("expected a scalar expression, got a list")
	}
	return &Expression{root: n}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression. Unbound variables and domain errors (log or
// sqrt of a negative number) are evaluation errors; any other non-finite
// result is reported as NaN.
func (e *Expression) Eval(b Bindings) (float64, error) {
	v, err := e.root.eval(b)
	if err != nil {
		return math.NaN(), err
	}
	if !finite(v) {
		return math.NaN(), nil
	}
	return v, nil
}

// Derivative returns the simplified symbolic derivative with respect to v.
func (e *Expression) Derivative(v string) *Expression {
	return &Expression{root: diff(e.root, v)}
}

// Variables returns the sorted free variable names.
func (e *Expression) Variables() []string {
	set := map[string]struct{}{}
	collectIdents(e.root, set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DependsOn reports whether the expression mentions variable v.
func (e *Expression) DependsOn(v string) bool {
	return dependsOn(e.root, v)
}

func (e *Expression) String() string {
	return format(e.root)
}

// Gradient returns the symbolic partial derivatives with respect to vars.
func (e *Expression) Gradient(vars []string) Vector {
	g := make(Vector, len(vars))
	for i, v := range vars {
		g[i] = e.Derivative(v)
	}
	return g
}

// Hessian returns the symbolic second partial derivatives with respect to vars.
func (e *Expression) Hessian(vars []string) Matrix {
	g := e.Gradient(vars)
	h := make(Matrix, len(vars))
	for i := range g {
		h[i] = g[i].Gradient(vars)
	}
	return h
}

// Func binds the expression to a single variable.
func (e *Expression) Func(variable string) optimization.Func {
	return func(x float64) (float64, error) {
		return e.Eval(Bindings{variable: x})
	}
}

// Objective binds the expression to an n-vector using VectorBindings.
func (e *Expression) Objective() optimization.ObjectiveFunc {
	return func(x []float64) (float64, error) {
		return e.Eval(VectorBindings(x))
	}
}
