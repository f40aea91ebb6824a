package gmm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Predict returns the responsibilities of each component in s for x.
func Predict(s Snapshot, x []float64) ([]float64, error) {
	if len(s.Means) == 0 {
		return nil, optimization.NewError(optimization.KindValidation, "snapshot has no components").
			WithOperation("Predict").WithComponent("gmm")
	}
	if len(x) != len(s.Means[0]) {
		return nil, optimization.Errorf(optimization.KindValidation, "point has %d coordinates, want %d", len(x), len(s.Means[0])).
			WithOperation("Predict").WithComponent("gmm")
	}
	m := &model{weights: s.Weights, means: s.Means, covs: s.Covariances}
	resp, _ := m.expectation([][]float64{x})
	return resp[0], nil
}

// Ellipse describes the contour of a 2-D Gaussian at some Mahalanobis radius.
type Ellipse struct {
	// Major and Minor are the semi-axis lengths.
	Major float64 `json:"major"`
	Minor float64 `json:"minor"`
	// Angle is the direction of the major axis in radians from the x axis.
	Angle float64 `json:"angle"`
}

// EllipseOf returns the ellipse of a 2×2 covariance scaled by scale standard
// deviations.
func EllipseOf(cov mat.Symmetric, scale float64) (Ellipse, error) {
	if cov.SymmetricDim() != 2 {
		return Ellipse{}, optimization.Errorf(optimization.KindValidation, "ellipse needs a 2x2 covariance, got %dx%d",
			cov.SymmetricDim(), cov.SymmetricDim()).WithOperation("EllipseOf").WithComponent("gmm")
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Ellipse{}, optimization.NewError(optimization.KindSingularMatrix, "eigendecomposition failed").
			WithOperation("EllipseOf").WithComponent("gmm")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Values are ascending, so the major axis is the last column.
	return Ellipse{
		Major: scale * math.Sqrt(math.Max(values[1], 0)),
		Minor: scale * math.Sqrt(math.Max(values[0], 0)),
		Angle: math.Atan2(vecs.At(1, 1), vecs.At(0, 1)),
	}, nil
}
