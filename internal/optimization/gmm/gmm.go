// Package gmm fits Gaussian mixture models to point data with
// Expectation-Maximization and records the full parameter history.
package gmm

import (
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// DefaultEpsilon is added to covariance diagonals to keep them positive-definite.
const DefaultEpsilon = 1e-6

// Params configures Fit.
type Params struct {
	// K is the number of mixture components.
	K       int
	MaxIter int
	// Tol is the absolute log-likelihood change that counts as convergence.
	Tol float64
	// Epsilon regularises covariance diagonals; zero selects DefaultEpsilon.
	Epsilon float64
	// Seed drives k-means++ initialisation. Equal seeds give equal fits.
	Seed uint64
}

// Snapshot is the model state at one EM iteration: the parameters the
// E-step used and the responsibilities it produced.
type Snapshot struct {
	Iteration        int             `json:"iteration"`
	Weights          []float64       `json:"weights"`
	Means            [][]float64     `json:"means"`
	Covariances      []*mat.SymDense `json:"-"`
	Responsibilities [][]float64     `json:"responsibilities"`
	LogLikelihood    float64         `json:"log_likelihood"`
	Assignments      []int           `json:"assignments"`
}

// Result is the outcome of Fit.
type Result struct {
	History   []Snapshot `json:"history"`
	Converged bool       `json:"converged"`
}

// Final returns the last recorded snapshot.
func (r *Result) Final() Snapshot {
	return r.History[len(r.History)-1]
}

// Option configures a fit.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for debug tracing. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// model holds the current mixture parameters.
type model struct {
	weights []float64
	means   [][]float64
	covs    []*mat.SymDense
}

// Fit runs EM on data, a list of points of equal dimension.
//
// Iteration t runs the E-step with the current parameters, records a
// snapshot, stops if t > 0 and the log-likelihood moved by less than Tol,
// and otherwise runs the M-step. A component that receives no responsibility
// keeps its previous mean and covariance.
func Fit(data [][]float64, p Params, opts ...Option) (*Result, error) {
	const op = "Fit"
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	dim, err := validate(op, data, p)
	if err != nil {
		return nil, err
	}
	eps := p.Epsilon
	if eps == 0 {
		eps = DefaultEpsilon
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	m := initialModel(data, p.K, eps, rng)

	o.logger.Debug("Starting EM",
		zap.Int("points", len(data)),
		zap.Int("dimensions", dim),
		zap.Int("components", p.K),
		zap.Int("max_iter", p.MaxIter),
		zap.Float64("tol", p.Tol))

	ws := newWorkspace()
	res := &Result{}
	prevLL := math.NaN()
	for t := 0; t < p.MaxIter; t++ {
		resp, ll := m.expectation(data)
		res.History = append(res.History, m.snapshot(t, resp, ll))

		if t > 0 && math.Abs(ll-prevLL) < p.Tol {
			res.Converged = true
			break
		}
		prevLL = ll

		m.maximization(data, resp, eps, ws)
	}

	final := res.Final()
	o.logger.Debug("EM finished",
		zap.Bool("converged", res.Converged),
		zap.Int("iterations", len(res.History)),
		zap.Float64("log_likelihood", final.LogLikelihood))
	return res, nil
}

func validate(op string, data [][]float64, p Params) (int, error) {
	fail := func(format string, args ...interface{}) (int, error) {
		return 0, optimization.Errorf(optimization.KindValidation, format, args...).
			WithOperation(op).WithComponent("gmm")
	}
	if len(data) == 0 {
		return fail("data is empty")
	}
	if p.K < 1 {
		return fail("k must be at least 1, got %d", p.K)
	}
	if p.K > len(data) {
		return fail("k (%d) exceeds the number of points (%d)", p.K, len(data))
	}
	if err := optimization.ValidateIterationParams(op, p.Tol, p.MaxIter); err != nil {
		return 0, err
	}
	if p.Epsilon < 0 || !optimization.IsFinite(p.Epsilon) {
		return fail("epsilon must be non-negative, got %v", p.Epsilon)
	}
	dim := len(data[0])
	if dim == 0 {
		return fail("points must have at least one coordinate")
	}
	for i, x := range data {
		if len(x) != dim {
			return fail("point %d has %d coordinates, want %d", i, len(x), dim)
		}
		for _, v := range x {
			if !optimization.IsFinite(v) {
				return fail("point %d is not finite", i)
			}
		}
	}
	return dim, nil
}

// logDensities returns log(w_k) + log N(x | μ_k, Σ_k) for every component.
// Components whose covariance is not positive-definite contribute -Inf.
func (m *model) logDensities(x []float64, dists []*distmv.Normal, out []float64) {
	for k := range m.weights {
		if dists[k] == nil || m.weights[k] <= 0 {
			out[k] = math.Inf(-1)
			continue
		}
		out[k] = math.Log(m.weights[k]) + dists[k].LogProb(x)
	}
}

func (m *model) normals() []*distmv.Normal {
	dists := make([]*distmv.Normal, len(m.weights))
	for k := range dists {
		if m.covs[k] == nil {
			continue
		}
		if d, ok := distmv.NewNormal(m.means[k], m.covs[k], nil); ok {
			dists[k] = d
		}
	}
	return dists
}

// expectation returns the responsibilities and the log-likelihood of data
// under the current parameters. A point no component can explain gets
// uniform responsibilities and is left out of the log-likelihood, which
// therefore stays finite.
func (m *model) expectation(data [][]float64) ([][]float64, float64) {
	k := len(m.weights)
	dists := m.normals()
	resp := make([][]float64, len(data))
	ll := 0.0
	for i, x := range data {
		r := make([]float64, k)
		m.logDensities(x, dists, r)
		if math.IsInf(floats.Max(r), -1) {
			for j := range r {
				r[j] = 1 / float64(k)
			}
			resp[i] = r
			continue
		}
		lse := floats.LogSumExp(r)
		for j := range r {
			r[j] = math.Exp(r[j] - lse)
		}
		ll += lse
		resp[i] = r
	}
	return resp, ll
}

// maximization re-estimates the parameters from the responsibilities.
func (m *model) maximization(data [][]float64, resp [][]float64, eps float64, ws *workspace) {
	n := float64(len(data))
	dim := len(data[0])
	for k := range m.weights {
		nk := 0.0
		for i := range data {
			nk += resp[i][k]
		}
		m.weights[k] = nk / n
		if nk <= 0 {
			continue
		}

		mean := ws.getVec(dim)
		for i, x := range data {
			mean.AddScaledVec(mean, resp[i][k], mat.NewVecDense(dim, x))
		}
		mean.ScaleVec(1/nk, mean)

		acc := ws.getSym(dim)
		diff := ws.getVec(dim)
		for i, x := range data {
			diff.SubVec(mat.NewVecDense(dim, x), mean)
			acc.SymRankOne(acc, resp[i][k], diff)
		}
		acc.ScaleSym(1/nk, acc)

		cov := mat.NewSymDense(dim, nil)
		cov.CopySym(acc)
		for j := 0; j < dim; j++ {
			cov.SetSym(j, j, cov.At(j, j)+eps)
		}
		m.means[k] = append([]float64(nil), mean.RawVector().Data...)
		m.covs[k] = cov

		ws.putVec(diff)
		ws.putSym(acc)
		ws.putVec(mean)
	}
	if s := floats.Sum(m.weights); s > 0 {
		floats.Scale(1/s, m.weights)
	}
}

// snapshot deep-copies the model together with E-step output.
func (m *model) snapshot(t int, resp [][]float64, ll float64) Snapshot {
	s := Snapshot{
		Iteration:        t,
		Weights:          append([]float64(nil), m.weights...),
		Means:            make([][]float64, len(m.means)),
		Covariances:      make([]*mat.SymDense, len(m.covs)),
		Responsibilities: resp,
		LogLikelihood:    ll,
		Assignments:      make([]int, len(resp)),
	}
	for k := range m.means {
		s.Means[k] = append([]float64(nil), m.means[k]...)
		c := mat.NewSymDense(m.covs[k].SymmetricDim(), nil)
		c.CopySym(m.covs[k])
		s.Covariances[k] = c
	}
	for i, r := range resp {
		s.Assignments[i] = floats.MaxIdx(r)
	}
	return s
}
