// Package optimtest provides objective fixtures and approximate-equality
// assertions shared by the solver tests.
package optimtest

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// Sphere is f(x) = Σ x_i², minimised at the origin.
func Sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// SphereGrad is the gradient of Sphere.
func SphereGrad(x []float64) ([]float64, error) {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g, nil
}

// Rosenbrock is f(x, y) = (1-x)² + 100(y-x²)², minimised at (1, 1).
func Rosenbrock(x []float64) (float64, error) {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b, nil
}

// RosenbrockGrad is the gradient of Rosenbrock.
func RosenbrockGrad(x []float64) ([]float64, error) {
	b := x[1] - x[0]*x[0]
	return []float64{
		-2*(1-x[0]) - 400*x[0]*b,
		200 * b,
	}, nil
}

// RosenbrockHess is the Hessian of Rosenbrock.
func RosenbrockHess(x []float64) (*mat.Dense, error) {
	return mat.NewDense(2, 2, []float64{
		2 - 400*x[1] + 1200*x[0]*x[0], -400 * x[0],
		-400 * x[0], 200,
	}), nil
}

// Noisy adds uniform noise in [-scale/2, scale/2) to f.
func Noisy(f func([]float64) (float64, error), scale float64, rng *rand.Rand) func([]float64) (float64, error) {
	return func(x []float64) (float64, error) {
		v, err := f(x)
		return v + scale*(rng.Float64()-0.5), err
	}
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal.
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatDimsEqual checks if two matrices have the same dimensions.
func AssertMatDimsEqual(t testing.TB, got, want mat.Matrix) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()

	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}
}

// AssertMatEqual checks if two matrices are approximately equal.
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	AssertMatDimsEqual(t, got, want)

	r, c := got.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}

// RandomPoints returns n points in [min, max]^dim drawn from rng.
func RandomPoints(rng *rand.Rand, n, dim int, min, max float64) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		pts[i] = make([]float64, dim)
		for j := range pts[i] {
			pts[i][j] = min + rng.Float64()*(max-min)
		}
	}
	return pts
}
