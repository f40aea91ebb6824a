package onedim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

func fn(f func(float64) float64) optimization.Func {
	return func(x float64) (float64, error) { return f(x), nil }
}

var sqrt2 = fn(func(x float64) float64 { return x*x - 2 })

func TestBisectionSqrt2(t *testing.T) {
	steps, err := Bisection(sqrt2, BisectionParams{A: 0, B: 2, Tol: 1e-6, MaxIter: 100}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.LessOrEqual(t, len(steps), 100)
	assert.InDelta(t, math.Sqrt2, BisectionRoot(steps), 1e-6)

	for i, s := range steps {
		assert.Greater(t, s.C, s.A, "step %d", i)
		assert.Less(t, s.C, s.B, "step %d", i)
	}
}

func TestBisectionStopsAtMaxIter(t *testing.T) {
	steps, err := Bisection(sqrt2, BisectionParams{A: 0, B: 2, Tol: 1e-12, MaxIter: 5})
	require.NoError(t, err)
	assert.Len(t, steps, 5)
}

func TestBisectionEdgeCases(t *testing.T) {
	t.Run("root at a", func(t *testing.T) {
		steps, err := Bisection(fn(func(x float64) float64 { return x }), BisectionParams{A: 0, B: 1, Tol: 1e-6, MaxIter: 10})
		require.NoError(t, err)
		assert.Equal(t, []BisectionStep{{A: 0, B: 1, C: 0}}, steps)
	})

	t.Run("root at b", func(t *testing.T) {
		steps, err := Bisection(fn(func(x float64) float64 { return x - 1 }), BisectionParams{A: 0, B: 1, Tol: 1e-6, MaxIter: 10})
		require.NoError(t, err)
		assert.Equal(t, []BisectionStep{{A: 0, B: 1, C: 1}}, steps)
	})

	t.Run("exact midpoint root", func(t *testing.T) {
		steps, err := Bisection(fn(func(x float64) float64 { return x - 1 }), BisectionParams{A: 0, B: 2, Tol: 1e-6, MaxIter: 10})
		require.NoError(t, err)
		assert.Equal(t, []BisectionStep{{A: 0, B: 2, C: 1}}, steps)
	})

	t.Run("no sign change", func(t *testing.T) {
		_, err := Bisection(fn(func(x float64) float64 { return x*x + 1 }), BisectionParams{A: -1, B: 1, Tol: 1e-6, MaxIter: 10})
		assert.ErrorIs(t, err, optimization.ErrBracket)
	})

	t.Run("NaN endpoint", func(t *testing.T) {
		_, err := Bisection(fn(func(x float64) float64 { return math.Log(x) }), BisectionParams{A: -1, B: 2, Tol: 1e-6, MaxIter: 10})
		assert.ErrorIs(t, err, optimization.ErrBracket)
	})

	t.Run("evaluation failure", func(t *testing.T) {
		f := optimization.Func(func(x float64) (float64, error) {
			if x == 1 {
				return 0, errors.New("boom")
			}
			return x - 1.5, nil
		})
		_, err := Bisection(f, BisectionParams{A: 0, B: 2, Tol: 1e-6, MaxIter: 10})
		assert.ErrorIs(t, err, optimization.ErrEvaluation)
	})
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"bisection negative tol", func() error {
			_, err := Bisection(sqrt2, BisectionParams{A: 0, B: 2, Tol: -1, MaxIter: 10})
			return err
		}},
		{"bisection zero max iter", func() error {
			_, err := Bisection(sqrt2, BisectionParams{A: 0, B: 2, Tol: 1e-6})
			return err
		}},
		{"bisection reversed bracket", func() error {
			_, err := Bisection(sqrt2, BisectionParams{A: 2, B: 0, Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"golden unordered bracket", func() error {
			_, err := GoldenSection(sqrt2, GoldenParams{A: 0, B: 3, C: 2, Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"newton non-finite start", func() error {
			_, err := NewtonRaphson(sqrt2, nil, NewtonRaphsonParams{X0: math.Inf(1), Tol: 1e-6, MaxIter: 10})
			return err
		}},
		{"secant negative tol", func() error {
			_, err := Secant(sqrt2, SecantParams{X0: 1, X1: 2, Tol: -1e-3, MaxIter: 10})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), optimization.ErrValidation)
		})
	}
}

func TestGoldenSectionQuadratic(t *testing.T) {
	f := fn(func(x float64) float64 { return (x - 2) * (x - 2) })

	for _, b := range []float64{2, 1, 3.5} {
		res, err := GoldenSection(f, GoldenParams{A: 0, B: b, C: 5, Tol: 1e-6, MaxIter: 200})
		require.NoError(t, err)
		assert.True(t, res.Converged, "b=%v", b)
		assert.InDelta(t, 2, res.Minimum, 1e-5, "b=%v", b)
		assert.InDelta(t, 0, res.Objective, 1e-9)
		assert.Len(t, res.Steps, res.Iterations)

		last := res.Steps[len(res.Steps)-1]
		assert.Equal(t, res.Minimum, last.NewB)
		for _, s := range res.Steps {
			assert.True(t, s.NewA <= s.NewB && s.NewB <= s.NewC)
		}
	}
}

func TestGoldenSectionBracketError(t *testing.T) {
	f := fn(func(x float64) float64 { return (x - 2) * (x - 2) })
	_, err := GoldenSection(f, GoldenParams{A: 0, B: 5, C: 6, Tol: 1e-6, MaxIter: 100})
	assert.ErrorIs(t, err, optimization.ErrBracket)

	// sin on [0, 2π] has its interior maximum above both ends.
	_, err = GoldenSection(fn(math.Sin), GoldenParams{A: 0, B: math.Pi / 2, C: 2 * math.Pi, Tol: 1e-6, MaxIter: 100})
	assert.ErrorIs(t, err, optimization.ErrBracket)
}

// With the minimum at zero the relative test |c-a| < tol·|b| can never pass.
func TestGoldenSectionMinimumAtZeroDoesNotConverge(t *testing.T) {
	f := fn(func(x float64) float64 { return x * x })
	res, err := GoldenSection(f, GoldenParams{A: -1, B: 0.3, C: 2, Tol: 1e-6, MaxIter: 60})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 60, res.Iterations)
	assert.InDelta(t, 0, res.Minimum, 1e-3)
}

func TestNewtonRaphsonCubic(t *testing.T) {
	f := fn(func(x float64) float64 { return x*x*x - x - 1 })
	df := fn(func(x float64) float64 { return 3*x*x - 1 })

	steps, err := NewtonRaphson(f, df, NewtonRaphsonParams{X0: 1, Tol: 1e-6, MaxIter: 100})
	require.NoError(t, err)
	assert.Less(t, len(steps), 10)
	assert.InDelta(t, 1.324718, NewtonRaphsonRoot(steps), 1e-6)

	numeric, err := NewtonRaphson(f, nil, NewtonRaphsonParams{X0: 1, Tol: 1e-6, MaxIter: 100})
	require.NoError(t, err)
	assert.InDelta(t, 1.324718, NewtonRaphsonRoot(numeric), 1e-6)
}

func TestNewtonRaphsonZeroDerivative(t *testing.T) {
	f := fn(func(x float64) float64 { return x*x - 4 })
	df := fn(func(x float64) float64 { return 2 * x })

	steps, err := NewtonRaphson(f, df, NewtonRaphsonParams{X0: 0, Tol: 1e-6, MaxIter: 100})
	require.NoError(t, err)
	assert.Equal(t, []NewtonRaphsonStep{{X0: 0, X1: 0}}, steps)
}

func TestNewtonRaphsonEachStepChainsFromPrevious(t *testing.T) {
	steps, err := NewtonRaphson(sqrt2, nil, NewtonRaphsonParams{X0: 3, Tol: 1e-10, MaxIter: 50})
	require.NoError(t, err)
	for i := 1; i < len(steps); i++ {
		assert.Equal(t, steps[i-1].X1, steps[i].X0)
	}
}

// sampled is y = x + 1 on [0, 3] and NaN elsewhere, like an interpolant.
var sampled = fn(func(x float64) float64 {
	if x < 0 || x > 3 {
		return math.NaN()
	}
	return x + 1
})

func TestNewtonRaphsonStopsWhenLeavingDomain(t *testing.T) {
	steps, err := NewtonRaphson(sampled, nil, NewtonRaphsonParams{X0: 1.5, Tol: 1e-6, MaxIter: 200})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, 1.5, steps[0].X0)
	assert.InDelta(t, -1, steps[0].X1, 1e-6)
	assert.Equal(t, steps[1].X0, steps[1].X1)
	assert.Equal(t, steps[0].X1, NewtonRaphsonRoot(steps))
}

func TestCentralDifference(t *testing.T) {
	df := CentralDifference(fn(func(x float64) float64 { return x * x * x }))
	d, err := df(2)
	require.NoError(t, err)
	assert.InDelta(t, 12, d, 1e-6)

	boom := errors.New("out of range")
	limited := func(x float64) (float64, error) {
		if x > 1 {
			return 0, boom
		}
		return x, nil
	}
	d, err = CentralDifference(limited)(1)
	assert.ErrorIs(t, err, boom)
	assert.True(t, math.IsNaN(d))

	_, err = NewtonRaphson(limited, nil, NewtonRaphsonParams{X0: 1, Tol: 1e-6, MaxIter: 10})
	assert.ErrorIs(t, err, optimization.ErrEvaluation)
}

func TestSecantSqrt2(t *testing.T) {
	steps, err := Secant(sqrt2, SecantParams{X0: 1, X1: 2, Tol: 1e-6, MaxIter: 100}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, SecantRoot(steps), 1e-6)

	for i := 1; i < len(steps); i++ {
		assert.Equal(t, steps[i-1].X1, steps[i].X0)
		assert.Equal(t, steps[i-1].X2, steps[i].X1)
	}
}

func TestSecantFlat(t *testing.T) {
	steps, err := Secant(fn(func(float64) float64 { return 5 }), SecantParams{X0: 1, X1: 2, Tol: 1e-6, MaxIter: 100})
	require.NoError(t, err)
	assert.Equal(t, []SecantStep{{X0: 1, X1: 2, X2: 2}}, steps)
}

func TestSecantStopsWhenLeavingDomain(t *testing.T) {
	steps, err := Secant(sampled, SecantParams{X0: 1, X1: 2, Tol: 1e-6, MaxIter: 200})
	require.NoError(t, err)
	assert.Equal(t, []SecantStep{{X0: 1, X1: 2, X2: -1}, {X0: 2, X1: -1, X2: -1}}, steps)
}

func TestRootFindersAgree(t *testing.T) {
	const tol = 1e-8

	bis, err := Bisection(sqrt2, BisectionParams{A: 0, B: 2, Tol: tol, MaxIter: 200})
	require.NoError(t, err)
	nr, err := NewtonRaphson(sqrt2, nil, NewtonRaphsonParams{X0: 1, Tol: tol, MaxIter: 200})
	require.NoError(t, err)
	sec, err := Secant(sqrt2, SecantParams{X0: 1, X1: 2, Tol: tol, MaxIter: 200})
	require.NoError(t, err)

	assert.InDelta(t, BisectionRoot(bis), NewtonRaphsonRoot(nr), 3*tol)
	assert.InDelta(t, BisectionRoot(bis), SecantRoot(sec), 3*tol)
	assert.True(t, math.IsNaN(SecantRoot(nil)))
}
