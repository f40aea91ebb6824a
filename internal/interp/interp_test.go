package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

var squares = Dataset{{X: 3, Y: 9}, {X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 4}, {X: 4, Y: 16}}

func TestEvaluateOutsideDomainIsNaN(t *testing.T) {
	for _, kind := range []Kind{Cubic, Piecewise} {
		t.Run(string(kind), func(t *testing.T) {
			f, err := Build(squares, kind)
			require.NoError(t, err)

			for _, x := range []float64{-0.001, 4.001, math.Inf(1), math.NaN()} {
				assert.True(t, math.IsNaN(f.Evaluate(x)), "x=%v", x)
			}
		})
	}
}

func TestEvaluateReproducesSamples(t *testing.T) {
	for _, kind := range []Kind{Cubic, Piecewise} {
		t.Run(string(kind), func(t *testing.T) {
			f, err := Build(squares, kind)
			require.NoError(t, err)
			for _, p := range squares {
				assert.Equal(t, p.Y, f.Evaluate(p.X))
			}
		})
	}
}

func TestPiecewiseInterpolatesLinearly(t *testing.T) {
	f, err := Build(squares, Piecewise)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f.Evaluate(1.5), 1e-12)
	assert.InDelta(t, 12.5, f.Evaluate(3.5), 1e-12)
}

func TestCubicIsSmooth(t *testing.T) {
	f, err := Build(squares, Cubic)
	require.NoError(t, err)

	// Between samples the spline stays close to x².
	assert.InDelta(t, 2.25, f.Evaluate(1.5), 0.1)
	d := f.Derivative(2)
	assert.InDelta(t, 4, d, 0.2)

	lo, hi := f.Domain()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 4.0, hi)
	assert.Equal(t, 5, f.Len())
	assert.Equal(t, Cubic, f.Kind())
}

func TestTwoPointCubicIsChord(t *testing.T) {
	f, err := Build(Dataset{{X: 0, Y: 1}, {X: 2, Y: 5}}, Cubic)
	require.NoError(t, err)
	assert.InDelta(t, 3, f.Evaluate(1), 1e-12)
	assert.InDelta(t, 2, f.Derivative(1), 1e-6)
}

func TestDuplicateXKeepsFirst(t *testing.T) {
	f, err := Build(Dataset{{X: 1, Y: 10}, {X: 0, Y: 0}, {X: 1, Y: 99}, {X: 2, Y: 20}}, Piecewise)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 10.0, f.Evaluate(1))
}

func TestSingleDistinctX(t *testing.T) {
	f, err := Build(Dataset{{X: 1, Y: 7}, {X: 1, Y: 8}}, Cubic)
	require.NoError(t, err)
	assert.Equal(t, 7.0, f.Evaluate(1))
	assert.True(t, math.IsNaN(f.Evaluate(1.5)))
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		ds   Dataset
		kind Kind
	}{
		{"empty", nil, Cubic},
		{"one point", Dataset{{X: 0, Y: 0}}, Cubic},
		{"non-finite", Dataset{{X: 0, Y: 0}, {X: 1, Y: math.NaN()}}, Piecewise},
		{"unknown kind", squares, Kind("quartic")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.ds, tt.kind)
			assert.ErrorIs(t, err, optimization.ErrValidation)
		})
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	ds := Dataset{{X: 2, Y: 4}, {X: 0, Y: 0}, {X: 1, Y: 1}}
	_, err := Build(ds, Cubic)
	require.NoError(t, err)
	assert.Equal(t, Dataset{{X: 2, Y: 4}, {X: 0, Y: 0}, {X: 1, Y: 1}}, ds)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, Cubic, k)

	k, err = ParseKind("Linear")
	require.NoError(t, err)
	assert.Equal(t, Piecewise, k)

	_, err = ParseKind("bezier")
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestSample(t *testing.T) {
	f, err := Build(squares, Piecewise)
	require.NoError(t, err)

	pts := f.Sample(5)
	require.Len(t, pts, 5)
	assert.Equal(t, Point{X: 0, Y: 0}, pts[0])
	assert.Equal(t, Point{X: 4, Y: 16}, pts[4])
	assert.Nil(t, f.Sample(0))
}
