package gmm

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// initialModel seeds the means with k-means++, uses the per-dimension data
// variance (plus eps) as every component's diagonal covariance and gives all
// components equal weight.
func initialModel(data [][]float64, k int, eps float64, rng *rand.Rand) *model {
	dim := len(data[0])

	variances := make([]float64, dim)
	if len(data) > 1 {
		col := make([]float64, len(data))
		for j := range variances {
			for i, x := range data {
				col[i] = x[j]
			}
			variances[j] = stat.Variance(col, nil)
		}
	}

	m := &model{
		weights: make([]float64, k),
		means:   kMeansPlusPlus(data, k, rng),
		covs:    make([]*mat.SymDense, k),
	}
	for c := 0; c < k; c++ {
		m.weights[c] = 1 / float64(k)
		cov := mat.NewSymDense(dim, nil)
		for j, v := range variances {
			cov.SetSym(j, j, v+eps)
		}
		m.covs[c] = cov
	}
	return m
}

// kMeansPlusPlus picks k initial centres: the first uniformly, each next one
// with probability proportional to its squared distance from the nearest
// centre already chosen.
func kMeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centres := make([][]float64, 0, k)
	centres = append(centres, append([]float64(nil), data[rng.IntN(len(data))]...))

	dist := make([]float64, len(data))
	for i, x := range data {
		dist[i] = sqDist(x, centres[0])
	}

	for len(centres) < k {
		idx := -1
		if floats.Sum(dist) > 0 {
			w := sampleuv.NewWeighted(dist, rng)
			if i, ok := w.Take(); ok {
				idx = i
			}
		}
		if idx < 0 {
			// Every point coincides with a centre.
			idx = rng.IntN(len(data))
		}
		c := append([]float64(nil), data[idx]...)
		centres = append(centres, c)
		for i, x := range data {
			if d := sqDist(x, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centres
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
