package multidim

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// LeastSquares returns the problem J(b) = ‖Xb - y‖² / 2n with gradient
// Xᵀ(Xb - y)/n and constant Hessian XᵀX/n.
func LeastSquares(X *mat.Dense, y []float64) (Problem, error) {
	const op = "LeastSquares"
	n, p := X.Dims()
	if n != len(y) {
		return Problem{}, errorf(optimization.KindValidation, op, "design matrix has %d rows but y has %d entries", n, len(y))
	}
	if n == 0 || p == 0 {
		return Problem{}, errorf(optimization.KindValidation, op, "design matrix is empty")
	}

	yv := mat.NewVecDense(n, y)
	scale := 1 / float64(n)

	var hess mat.Dense
	hess.Mul(X.T(), X)
	hess.Scale(scale, &hess)

	residual := func(b []float64) (*mat.VecDense, error) {
		if len(b) != p {
			return nil, errorf(optimization.KindValidation, op, "coefficient vector has %d entries, want %d", len(b), p)
		}
		var r mat.VecDense
		r.MulVec(X, mat.NewVecDense(p, b))
		r.SubVec(&r, yv)
		return &r, nil
	}

	return Problem{
		Func: func(b []float64) (float64, error) {
			r, err := residual(b)
			if err != nil {
				return 0, err
			}
			return mat.Dot(r, r) * scale / 2, nil
		},
		Grad: func(b []float64) ([]float64, error) {
			r, err := residual(b)
			if err != nil {
				return nil, err
			}
			var g mat.VecDense
			g.MulVec(X.T(), r)
			g.ScaleVec(scale, &g)
			return g.RawVector().Data, nil
		},
		Hess: func(b []float64) (*mat.Dense, error) {
			if len(b) != p {
				return nil, errorf(optimization.KindValidation, op, "coefficient vector has %d entries, want %d", len(b), p)
			}
			return mat.DenseCopyOf(&hess), nil
		},
	}, nil
}

// LinearRegressionData draws n samples of p features in [0, 10) with
// coefficients in [-1, 1) and uniform noise in [-noise, noise).
func LinearRegressionData(n, p int, noise float64, rng *rand.Rand) (X *mat.Dense, y, beta []float64) {
	beta = make([]float64, p)
	for j := range beta {
		beta[j] = rng.Float64()*2 - 1
	}
	X = mat.NewDense(n, p, nil)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			v := rng.Float64() * 10
			X.Set(i, j, v)
			y[i] += v * beta[j]
		}
		y[i] += (rng.Float64() - 0.5) * 2 * noise
	}
	return X, y, beta
}
