package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
	"github.com/copyleftdev/stepwise/internal/optimization/optimtest"
)

var separated = []Component{
	{Weight: 0.5, Mean: []float64{-5, -5}, Covariance: [][]float64{{0.5, 0}, {0, 0.5}}},
	{Weight: 0.5, Mean: []float64{5, 5}, Covariance: [][]float64{{0.5, 0}, {0, 0.5}}},
}

func separatedData(t *testing.T) [][]float64 {
	t.Helper()
	data, err := Generate(separated, 400, 1)
	require.NoError(t, err)
	require.Len(t, data, 400)
	return data
}

func TestFitRecoversSeparatedClusters(t *testing.T) {
	data := separatedData(t)

	res, err := Fit(data, Params{K: 2, MaxIter: 100, Tol: 1e-6, Seed: 42}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.LessOrEqual(t, len(res.History), 100)

	final := res.Final()
	lo, hi := final.Means[0], final.Means[1]
	if lo[0] > hi[0] {
		lo, hi = hi, lo
	}
	optimtest.AssertFloat64SlicesEqual(t, lo, []float64{-5, -5}, 0.3)
	optimtest.AssertFloat64SlicesEqual(t, hi, []float64{5, 5}, 0.3)
	assert.InDelta(t, 0.5, final.Weights[0], 0.05)

	for _, c := range final.Covariances {
		assert.InDelta(t, 0.5, c.At(0, 0), 0.2)
		assert.InDelta(t, 0.5, c.At(1, 1), 0.2)
	}
}

func TestFitHistoryInvariants(t *testing.T) {
	data, err := Generate(DefaultComponents, 300, 3)
	require.NoError(t, err)

	res, err := Fit(data, Params{K: 3, MaxIter: 50, Tol: 1e-8, Seed: 9})
	require.NoError(t, err)
	require.NotEmpty(t, res.History)

	for i, s := range res.History {
		assert.Equal(t, i, s.Iteration)
		assert.InDelta(t, 1, floats.Sum(s.Weights), 1e-9, "iteration %d", i)
		require.Len(t, s.Responsibilities, len(data))
		require.Len(t, s.Assignments, len(data))
		for j, r := range s.Responsibilities {
			assert.InDelta(t, 1, floats.Sum(r), 1e-9)
			assert.Equal(t, floats.MaxIdx(r), s.Assignments[j])
		}
		for _, c := range s.Covariances {
			var chol mat.Cholesky
			assert.True(t, chol.Factorize(c), "covariance is not positive-definite at iteration %d", i)
		}
	}

	// EM never decreases the log-likelihood.
	for i := 1; i < len(res.History); i++ {
		assert.GreaterOrEqual(t, res.History[i].LogLikelihood, res.History[i-1].LogLikelihood-1e-6)
	}
}

func TestFitIsReproducible(t *testing.T) {
	data := separatedData(t)
	p := Params{K: 2, MaxIter: 20, Tol: 1e-6, Seed: 5}

	a, err := Fit(data, p)
	require.NoError(t, err)
	b, err := Fit(data, p)
	require.NoError(t, err)
	assert.Equal(t, a.Final().Means, b.Final().Means)
	assert.Equal(t, a.Final().LogLikelihood, b.Final().LogLikelihood)
}

func TestFitSnapshotsAreIndependent(t *testing.T) {
	data := separatedData(t)
	res, err := Fit(data, Params{K: 2, MaxIter: 5, Tol: 0, Seed: 1})
	require.NoError(t, err)
	require.Len(t, res.History, 5)
	assert.False(t, res.Converged)
	assert.NotEqual(t, res.History[0].Means, res.History[4].Means)
}

func TestFitIdenticalPoints(t *testing.T) {
	data := [][]float64{{1, 2}, {1, 2}, {1, 2}, {1, 2}}
	res, err := Fit(data, Params{K: 2, MaxIter: 10, Tol: 1e-9})
	require.NoError(t, err)
	assert.True(t, res.Converged)

	final := res.Final()
	assert.False(t, math.IsNaN(final.LogLikelihood))
	for _, m := range final.Means {
		optimtest.AssertFloat64SlicesEqual(t, m, []float64{1, 2}, 1e-12)
	}
}

func TestExpectationSkipsUnexplainedPoints(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 1}, {2, 2}}
	m := &model{
		weights: []float64{0.5, 0.5},
		means:   [][]float64{{0, 0}, {2, 2}},
		covs:    []*mat.SymDense{nil, nil},
	}

	resp, ll := m.expectation(data)
	assert.Equal(t, 0.0, ll)
	for _, r := range resp {
		assert.Equal(t, []float64{0.5, 0.5}, r)
	}

	m.covs[0] = mat.NewSymDense(2, []float64{1, 0, 0, 1})
	_, ll = m.expectation(data)
	assert.False(t, math.IsInf(ll, 0))
	assert.Less(t, ll, 0.0)
}

func TestFitOneDimensional(t *testing.T) {
	data := [][]float64{{-3.1}, {-2.9}, {-3}, {3}, {2.9}, {3.1}}
	res, err := Fit(data, Params{K: 2, MaxIter: 100, Tol: 1e-9, Seed: 2})
	require.NoError(t, err)
	means := []float64{res.Final().Means[0][0], res.Final().Means[1][0]}
	if means[0] > means[1] {
		means[0], means[1] = means[1], means[0]
	}
	optimtest.AssertFloat64SlicesEqual(t, means, []float64{-3, 3}, 1e-3)
}

func TestFitValidation(t *testing.T) {
	pts := [][]float64{{0, 0}, {1, 1}, {2, 2}}
	tests := []struct {
		name string
		data [][]float64
		p    Params
	}{
		{"empty", nil, Params{K: 1, MaxIter: 10}},
		{"k zero", pts, Params{K: 0, MaxIter: 10}},
		{"k above n", pts, Params{K: 4, MaxIter: 10}},
		{"max iter zero", pts, Params{K: 1}},
		{"negative tol", pts, Params{K: 1, MaxIter: 10, Tol: -1}},
		{"ragged", [][]float64{{0, 0}, {1}}, Params{K: 1, MaxIter: 10}},
		{"non-finite", [][]float64{{0, 0}, {math.NaN(), 1}}, Params{K: 1, MaxIter: 10}},
		{"negative epsilon", pts, Params{K: 1, MaxIter: 10, Epsilon: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.data, tt.p)
			assert.ErrorIs(t, err, optimization.ErrValidation)
		})
	}
}

func TestPredict(t *testing.T) {
	data := separatedData(t)
	res, err := Fit(data, Params{K: 2, MaxIter: 100, Tol: 1e-6, Seed: 42})
	require.NoError(t, err)
	final := res.Final()

	r, err := Predict(final, []float64{5.2, 4.8})
	require.NoError(t, err)
	near := 0
	if final.Means[1][0] > 0 {
		near = 1
	}
	assert.InDelta(t, 1, r[near], 1e-6)

	_, err = Predict(final, []float64{1})
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestEllipseOf(t *testing.T) {
	e, err := EllipseOf(mat.NewSymDense(2, []float64{4, 0, 0, 1}), 1)
	require.NoError(t, err)
	assert.InDelta(t, 2, e.Major, 1e-12)
	assert.InDelta(t, 1, e.Minor, 1e-12)
	assert.InDelta(t, 0, math.Sin(e.Angle), 1e-12)

	e, err = EllipseOf(mat.NewSymDense(2, []float64{2.5, 1.5, 1.5, 2.5}), 2)
	require.NoError(t, err)
	assert.InDelta(t, 4, e.Major, 1e-9)
	assert.InDelta(t, 2, e.Minor, 1e-9)
	assert.InDelta(t, 1, math.Tan(e.Angle), 1e-9)

	_, err = EllipseOf(mat.NewSymDense(3, nil), 1)
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestGenerate(t *testing.T) {
	data, err := Generate(DefaultComponents, 1000, 7)
	require.NoError(t, err)
	assert.Len(t, data, 300+500+200)

	// The middle block comes from the tight component at the origin.
	var sx, sy float64
	for _, x := range data[300:800] {
		sx += x[0]
		sy += x[1]
	}
	assert.InDelta(t, 0, sx/500, 0.1)
	assert.InDelta(t, 0, sy/500, 0.1)

	_, err = Generate([]Component{{Weight: 1, Mean: []float64{0, 0}, Covariance: [][]float64{{1, 2}, {2, 1}}}}, 10, 1)
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestSelectKPrefersTrueComponentCount(t *testing.T) {
	data := separatedData(t)
	sel, err := SelectK(data, 1, 4, Params{MaxIter: 100, Tol: 1e-6, Seed: 42})
	require.NoError(t, err)
	assert.Len(t, sel.Candidates, 4)
	assert.Equal(t, 2, sel.Best.K)

	_, err = SelectK(data, 3, 2, Params{MaxIter: 10})
	assert.ErrorIs(t, err, optimization.ErrValidation)
}

func TestWorkspaceReusesBySize(t *testing.T) {
	ws := newWorkspace()
	v := ws.getVec(3)
	v.SetVec(0, 7)
	ws.putVec(v)

	again := ws.getVec(3)
	assert.Same(t, v, again)
	assert.Equal(t, 0.0, again.AtVec(0))

	ws.putSym(mat.NewSymDense(2, nil))
	assert.Equal(t, 4, ws.getSym(4).SymmetricDim())
}
