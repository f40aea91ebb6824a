package multidim

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/stepwise/internal/optimization"
	"github.com/copyleftdev/stepwise/internal/optimization/optimtest"
)

var rosenbrock = Problem{
	Func: optimtest.Rosenbrock,
	Grad: optimtest.RosenbrockGrad,
	Hess: optimtest.RosenbrockHess,
}

func TestRosenbrockNewtonBeatsGradientDescent(t *testing.T) {
	x0 := []float64{0, 0}

	nt, err := Newton(rosenbrock, x0, NewtonParams{Tol: 1e-6, MaxIter: 100}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.True(t, nt.Converged)
	optimtest.AssertFloat64SlicesEqual(t, nt.XMin, []float64{1, 1}, 1e-6)
	assert.Equal(t, 3, nt.Iterations)
	assert.Len(t, nt.Path, 4)
	optimtest.AssertFloat64SlicesEqual(t, nt.Path[1], []float64{1, 0}, 1e-12)
	require.NotNil(t, nt.Hessian)
	optimtest.AssertMatEqual(t, nt.Hessian, mat.NewDense(2, 2, []float64{802, -400, -400, 200}), 1e-6)
	optimtest.AssertFloat64SlicesEqual(t, nt.Gradient, []float64{0, 0}, 1e-6)

	gd, err := GradientDescent(rosenbrock, x0, GradientDescentParams{StepSize: 0.001, Tol: 1e-6, MaxIter: 100000})
	require.NoError(t, err)
	require.True(t, gd.Converged)
	optimtest.AssertFloat64SlicesEqual(t, gd.XMin, []float64{1, 1}, 1e-4)

	assert.Greater(t, gd.Iterations, 10*nt.Iterations)
	assert.Equal(t, []float64{0, 0}, x0)
}

func TestNewtonMatchesBFGS(t *testing.T) {
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			v, _ := optimtest.Rosenbrock(x)
			return v
		},
		Grad: func(grad, x []float64) {
			g, _ := optimtest.RosenbrockGrad(x)
			copy(grad, g)
		},
	}
	ref, err := optimize.Minimize(p, []float64{-1.2, 1}, nil, &optimize.BFGS{})
	require.NoError(t, err)

	res, err := Newton(rosenbrock, []float64{-1.2, 1}, NewtonParams{Tol: 1e-10, MaxIter: 100})
	require.NoError(t, err)
	require.True(t, res.Converged)
	optimtest.AssertFloat64SlicesEqual(t, res.XMin, ref.X, 1e-4)
}

func TestGradientDescentPathAndValues(t *testing.T) {
	p := Problem{Func: optimtest.Sphere, Grad: optimtest.SphereGrad}
	res, err := GradientDescent(p, []float64{1, -2, 3}, GradientDescentParams{StepSize: 0.1, Tol: 1e-10, MaxIter: 1000})
	require.NoError(t, err)
	require.True(t, res.Converged)
	optimtest.AssertFloat64SlicesEqual(t, res.XMin, []float64{0, 0, 0}, 1e-4)

	require.Len(t, res.Values, len(res.Path))
	for i, x := range res.Path {
		f, _ := optimtest.Sphere(x)
		assert.Equal(t, f, res.Values[i])
	}
	assert.Equal(t, res.FMin, res.Values[len(res.Values)-1])
	assert.Equal(t, 0.1, res.StepSize)
}

func TestGradientDescentImmediateConvergence(t *testing.T) {
	p := Problem{Func: optimtest.Sphere, Grad: optimtest.SphereGrad}
	res, err := GradientDescent(p, []float64{0, 0}, GradientDescentParams{StepSize: 0.1, Tol: 1e-6, MaxIter: 10})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, [][]float64{{0, 0}}, res.Path)
}

func TestGradientDescentAdaptiveStep(t *testing.T) {
	p := Problem{
		Func: func(x []float64) (float64, error) { return x[0]*x[0] + 10*x[1]*x[1], nil },
		Grad: func(x []float64) ([]float64, error) { return []float64{2 * x[0], 20 * x[1]}, nil },
	}
	fixed, err := GradientDescent(p, []float64{3, -2}, GradientDescentParams{StepSize: 0.01, Tol: 1e-8, MaxIter: 10000})
	require.NoError(t, err)
	adaptive, err := GradientDescent(p, []float64{3, -2}, GradientDescentParams{StepSize: 0.01, Adaptive: true, Tol: 1e-8, MaxIter: 10000})
	require.NoError(t, err)

	require.True(t, adaptive.Converged)
	optimtest.AssertFloat64SlicesEqual(t, adaptive.XMin, []float64{0, 0}, 1e-3)
	assert.NotEqual(t, 0.01, adaptive.StepSize)
	assert.Less(t, adaptive.Iterations, fixed.Iterations)
}

func TestGradientDescentMaxIter(t *testing.T) {
	res, err := GradientDescent(rosenbrock, []float64{0, 0}, GradientDescentParams{StepSize: 0.001, Tol: 1e-6, MaxIter: 10})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 10, res.Iterations)
	assert.Len(t, res.Path, 11)
}

func TestGradientDescentDiverges(t *testing.T) {
	p := Problem{Func: optimtest.Sphere, Grad: optimtest.SphereGrad}
	_, err := GradientDescent(p, []float64{1}, GradientDescentParams{StepSize: 10, Tol: 1e-6, MaxIter: 1000})
	assert.ErrorIs(t, err, optimization.ErrDivergence)
}

func TestNewtonSingularHessian(t *testing.T) {
	p := Problem{
		Func: func(x []float64) (float64, error) { return x[0] * x[0], nil },
		Grad: func(x []float64) ([]float64, error) { return []float64{2 * x[0], 0}, nil },
		Hess: func(x []float64) (*mat.Dense, error) { return mat.NewDense(2, 2, []float64{2, 0, 0, 0}), nil },
	}
	_, err := Newton(p, []float64{1, 1}, NewtonParams{Tol: 1e-6, MaxIter: 10})
	assert.ErrorIs(t, err, optimization.ErrSingularMatrix)
}

func TestValidationErrors(t *testing.T) {
	badGrad := Problem{
		Func: optimtest.Sphere,
		Grad: func(x []float64) ([]float64, error) { return []float64{1, 2, 3}, nil },
		Hess: optimtest.RosenbrockHess,
	}
	tests := []struct {
		name string
		run  func() error
	}{
		{"gradient dimension", func() error {
			_, err := GradientDescent(badGrad, []float64{1, 1}, GradientDescentParams{StepSize: 0.1, Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"hessian dimension", func() error {
			_, err := Newton(rosenbrock, []float64{1, 1, 1}, NewtonParams{Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"empty start", func() error {
			_, err := Newton(rosenbrock, nil, NewtonParams{Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"non-positive step", func() error {
			_, err := GradientDescent(rosenbrock, []float64{0, 0}, GradientDescentParams{Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"negative tol", func() error {
			_, err := Newton(rosenbrock, []float64{0, 0}, NewtonParams{Tol: -1, MaxIter: 10})
			return err
		}},
		{"missing hessian", func() error {
			_, err := Newton(Problem{Func: optimtest.Sphere, Grad: optimtest.SphereGrad}, []float64{0, 0}, NewtonParams{Tol: 1e-6, MaxIter: 10})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), optimization.ErrValidation)
		})
	}
}

func TestEvaluationErrorsAbort(t *testing.T) {
	p := Problem{
		Func: func(x []float64) (float64, error) { return 0, errors.New("unbound variable z") },
		Grad: optimtest.SphereGrad,
	}
	_, err := GradientDescent(p, []float64{1}, GradientDescentParams{StepSize: 0.1, Tol: 1e-6, MaxIter: 10})
	assert.ErrorIs(t, err, optimization.ErrEvaluation)
}

func TestLeastSquares(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	X, y, beta := LinearRegressionData(60, 3, 0, rng)

	p, err := LeastSquares(X, y)
	require.NoError(t, err)

	res, err := Newton(p, []float64{0, 0, 0}, NewtonParams{Tol: 1e-9, MaxIter: 10})
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 2)
	optimtest.AssertFloat64SlicesEqual(t, res.XMin, beta, 1e-8)
	assert.InDelta(t, 0, res.FMin, 1e-12)

	// The analytic gradient agrees with a central difference.
	b := []float64{0.3, -0.2, 0.5}
	g, err := p.Grad(b)
	require.NoError(t, err)
	const h = 1e-6
	for i := range b {
		bp := append([]float64(nil), b...)
		bm := append([]float64(nil), b...)
		bp[i] += h
		bm[i] -= h
		fp, _ := p.Func(bp)
		fm, _ := p.Func(bm)
		assert.InDelta(t, (fp-fm)/(2*h), g[i], 1e-4*math.Max(1, math.Abs(g[i])))
	}

	_, err = LeastSquares(X, y[:10])
	assert.ErrorIs(t, err, optimization.ErrValidation)
}
