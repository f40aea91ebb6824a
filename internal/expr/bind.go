package expr

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Vector is a list of scalar expressions, typically a gradient.
type Vector []*Expression

// Matrix is a row-major grid of scalar expressions, typically a Hessian.
type Matrix [][]*Expression

// Evaluate parses and evaluates src in one call.
func Evaluate(src string, b Bindings) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(b)
}

// Differentiate parses src and returns its derivative with respect to v.
func Differentiate(src, v string) (*Expression, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Derivative(v), nil
}

// ParseVector parses a list literal such as "[2*x, 2*y]".
func ParseVector(src string) (Vector, error) {
	n, err := parse(src)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*list)
	if !ok {
		return nil, evalErrorf("expected a list literal like [a, b]")
	}
	return vectorOf(l)
}

// ParseMatrix parses a nested list literal such as "[[2, 0], [0, 2]]".
// Rows must have equal length.
func ParseMatrix(src string) (Matrix, error) {
	n, err := parse(src)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*list)
	if !ok {
		return nil, evalErrorf("expected a nested list literal like [[a, b], [c, d]]")
	}
	m := make(Matrix, len(l.items))
	for i, item := range l.items {
		row, ok := item.(*list)
		if !ok {
			return nil, evalErrorf("matrix row %d is not a list", i)
		}
		if m[i], err = vectorOf(row); err != nil {
			return nil, err
		}
		if len(m[i]) != len(m[0]) {
			return nil, evalErrorf("matrix row %d has %d entries, want %d", i, len(m[i]), len(m[0]))
		}
	}
	return m, nil
}

func vectorOf(l *list) (Vector, error) {
	v := make(Vector, len(l.items))
	for i, item := range l.items {
		if _, nested := item.(*list); nested {
			return nil, evalErrorf("entry %d is a list, want a scalar", i)
		}
		v[i] = &Expression{root: item}
	}
	return v, nil
}

func (v Vector) String() string {
	items := make([]node, len(v))
	for i, e := range v {
		items[i] = e.root
	}
	return format(&list{items: items})
}

func (m Matrix) String() string {
	rows := make([]node, len(m))
	for i, r := range m {
		items := make([]node, len(r))
		for j, e := range r {
			items[j] = e.root
		}
		rows[i] = &list{items: items}
	}
	return format(&list{items: rows})
}

// Eval evaluates every entry against b.
func (v Vector) Eval(b Bindings) ([]float64, error) {
	out := make([]float64, len(v))
	for i, e := range v {
		x, err := e.Eval(b)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// Eval evaluates every entry against b into a dense matrix.
func (m Matrix) Eval(b Bindings) (*mat.Dense, error) {
	if len(m) == 0 {
		return nil, evalErrorf("empty matrix")
	}
	out := mat.NewDense(len(m), len(m[0]), nil)
	for i, row := range m {
		for j, e := range row {
			x, err := e.Eval(b)
			if err != nil {
				return nil, err
			}
			out.Set(i, j, x)
		}
	}
	return out, nil
}

// GradientFunc binds the vector to an n-vector using VectorBindings.
func (v Vector) GradientFunc() optimization.GradientFunc {
	return func(x []float64) ([]float64, error) {
		return v.Eval(VectorBindings(x))
	}
}

// HessianFunc binds the matrix to an n-vector using VectorBindings.
func (m Matrix) HessianFunc() optimization.HessianFunc {
	return func(x []float64) (*mat.Dense, error) {
		return m.Eval(VectorBindings(x))
	}
}

// VectorBindings binds x to x1..xn. For n = 1 it also binds x, and for
// n = 2 it also binds x and y.
func VectorBindings(x []float64) Bindings {
	b := make(Bindings, len(x)+2)
	for i, v := range x {
		b["x"+strconv.Itoa(i+1)] = v
	}
	switch len(x) {
	case 1:
		b["x"] = x[0]
	case 2:
		b["x"] = x[0]
		b["y"] = x[1]
	}
	return b
}

// VariableNames returns the conventional variable names for an n-vector:
// [x] for n = 1, [x y] for n = 2 and [x1 ... xn] otherwise.
func VariableNames(n int) []string {
	switch n {
	case 1:
		return []string{"x"}
	case 2:
		return []string{"x", "y"}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i+1)
	}
	return names
}

// VariablesFor picks the names to differentiate e by when it is a function
// of an n-vector. Expressions written with indexed names (x1, x2) use those
// even when n is 1 or 2.
func VariablesFor(e *Expression, n int) []string {
	names := VariableNames(n)
	if n > 2 {
		return names
	}
	for _, v := range names {
		if e.DependsOn(v) {
			return names
		}
	}
	indexed := make([]string, n)
	for i := range indexed {
		indexed[i] = fmt.Sprintf("x%d", i+1)
	}
	for _, v := range indexed {
		if e.DependsOn(v) {
			return indexed
		}
	}
	return names
}
