package gmm

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Component is one generating Gaussian of a synthetic mixture.
type Component struct {
	Weight     float64     `json:"weight" yaml:"weight"`
	Mean       []float64   `json:"mean" yaml:"mean"`
	Covariance [][]float64 `json:"covariance" yaml:"covariance"`
}

// DefaultComponents is the three-cluster 2-D mixture used for demonstrations.
var DefaultComponents = []Component{
	{Weight: 0.3, Mean: []float64{-2, -2}, Covariance: [][]float64{{0.5, 0.1}, {0.1, 0.5}}},
	{Weight: 0.5, Mean: []float64{0, 0}, Covariance: [][]float64{{0.1, 0}, {0, 0.1}}},
	{Weight: 0.2, Mean: []float64{3, 3}, Covariance: [][]float64{{0.8, -0.2}, {-0.2, 0.8}}},
}

// Generate draws floor(n·weight) points from each component, in component
// order, with a source seeded by seed.
func Generate(components []Component, n int, seed uint64) ([][]float64, error) {
	const op = "Generate"
	if n < 0 {
		return nil, optimization.Errorf(optimization.KindValidation, "sample count must be non-negative, got %d", n).
			WithOperation(op).WithComponent("gmm")
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))

	var out [][]float64
	for ci, c := range components {
		dim := len(c.Mean)
		if dim == 0 || len(c.Covariance) != dim {
			return nil, optimization.Errorf(optimization.KindValidation, "component %d has mismatched mean and covariance", ci).
				WithOperation(op).WithComponent("gmm")
		}
		cov := mat.NewSymDense(dim, nil)
		for i := 0; i < dim; i++ {
			if len(c.Covariance[i]) != dim {
				return nil, optimization.Errorf(optimization.KindValidation, "component %d covariance is not square", ci).
					WithOperation(op).WithComponent("gmm")
			}
			for j := i; j < dim; j++ {
				cov.SetSym(i, j, c.Covariance[i][j])
			}
		}
		normal, ok := distmv.NewNormal(c.Mean, cov, rng)
		if !ok {
			return nil, optimization.Errorf(optimization.KindValidation, "component %d covariance is not positive-definite", ci).
				WithOperation(op).WithComponent("gmm")
		}
		count := int(float64(n) * c.Weight)
		for i := 0; i < count; i++ {
			out = append(out, normal.Rand(nil))
		}
	}
	return out, nil
}
