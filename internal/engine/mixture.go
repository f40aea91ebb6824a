package engine

import (
	"context"

	"github.com/copyleftdev/stepwise/internal/optimization/gmm"
)

// ellipseScale draws covariance ellipses at two standard deviations.
const ellipseScale = 2

// MixtureRequest fits a Gaussian mixture to Points. When Points is empty
// and Synthetic is positive, that many points are drawn from
// gmm.DefaultComponents first. When KMax exceeds K every k in [K, KMax] is
// fitted and the lowest-BIC model is returned.
type MixtureRequest struct {
	Points    [][]float64 `json:"points,omitempty" yaml:"points,omitempty"`
	Synthetic int         `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	K         int         `json:"k" yaml:"k"`
	KMax      int         `json:"k_max,omitempty" yaml:"k_max,omitempty"`
	Tol       float64     `json:"tol,omitempty" yaml:"tol,omitempty"`
	MaxIter   int         `json:"max_iter,omitempty" yaml:"max_iter,omitempty"`
	// Seed overrides the configured k-means++ seed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	// Classify lists extra points to score against the final model.
	Classify [][]float64 `json:"classify,omitempty" yaml:"classify,omitempty"`
}

// MixtureSnapshot is a gmm.Snapshot with plain covariance matrices and,
// for 2-D data, their two-sigma ellipses.
type MixtureSnapshot struct {
	Iteration        int           `json:"iteration"`
	Weights          []float64     `json:"weights"`
	Means            [][]float64   `json:"means"`
	Covariances      [][][]float64 `json:"covariances"`
	Ellipses         []gmm.Ellipse `json:"ellipses,omitempty"`
	Responsibilities [][]float64   `json:"responsibilities"`
	LogLikelihood    float64       `json:"log_likelihood"`
	Assignments      []int         `json:"assignments"`
}

// MixtureResponse is the full EM history.
type MixtureResponse struct {
	K          int               `json:"k"`
	Converged  bool              `json:"converged"`
	Iterations int               `json:"iterations"`
	History    []MixtureSnapshot `json:"history"`
	// Data echoes generated points when the request was synthetic.
	Data [][]float64 `json:"data,omitempty"`
	// Candidates lists the BIC of every k tried when KMax was set.
	Candidates []gmm.Candidate `json:"candidates,omitempty"`
	// Classified holds the responsibilities of each Classify point.
	Classified [][]float64 `json:"classified,omitempty"`
}

// FitMixture runs EM on the request.
func (e *Engine) FitMixture(ctx context.Context, req MixtureRequest) (*MixtureResponse, error) {
	const op = "FitMixture"
	tol, maxIter, err := e.iterationParams(op, req.Tol, req.MaxIter)
	if err != nil {
		return nil, err
	}
	if req.Synthetic < 0 {
		return nil, validationf(op, "synthetic must be non-negative, got %d", req.Synthetic)
	}
	if n := max(len(req.Points), req.Synthetic); n > e.cfg.MaxDataPoints {
		return nil, validationf(op, "%d points exceed the limit of %d", n, e.cfg.MaxDataPoints)
	}
	if req.KMax != 0 && req.KMax < req.K {
		return nil, validationf(op, "k_max %d is below k %d", req.KMax, req.K)
	}

	seed := e.cfg.GMMSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	params := gmm.Params{K: req.K, MaxIter: maxIter, Tol: tol, Seed: seed}

	var resp *MixtureResponse
	err = e.run(ctx, MethodMixture, func() (string, int, error) {
		var err error
		resp = &MixtureResponse{}
		data := req.Points
		if len(data) == 0 && req.Synthetic > 0 {
			if data, err = gmm.Generate(gmm.DefaultComponents, req.Synthetic, seed); err != nil {
				return "", 0, err
			}
			resp.Data = data
		}

		var res *gmm.Result
		if req.KMax > req.K {
			sel, err := gmm.SelectK(data, req.K, req.KMax, params, gmm.WithLogger(e.logger))
			if err != nil {
				return "", 0, err
			}
			res, resp.K, resp.Candidates = sel.Best.Result, sel.Best.K, sel.Candidates
		} else {
			if res, err = gmm.Fit(data, params, gmm.WithLogger(e.logger)); err != nil {
				return "", 0, err
			}
			resp.K = req.K
		}

		resp.Converged = res.Converged
		resp.Iterations = len(res.History)
		resp.History = make([]MixtureSnapshot, len(res.History))
		for i, s := range res.History {
			if resp.History[i], err = snapshotOf(s); err != nil {
				return "", 0, err
			}
		}

		final := res.Final()
		for _, x := range req.Classify {
			r, err := gmm.Predict(final, x)
			if err != nil {
				return "", 0, err
			}
			resp.Classified = append(resp.Classified, r)
		}
		return convergedOutcome(res.Converged), resp.Iterations, nil
	})
	return resp, err
}

func snapshotOf(s gmm.Snapshot) (MixtureSnapshot, error) {
	out := MixtureSnapshot{
		Iteration:        s.Iteration,
		Weights:          s.Weights,
		Means:            s.Means,
		Covariances:      make([][][]float64, len(s.Covariances)),
		Responsibilities: s.Responsibilities,
		LogLikelihood:    s.LogLikelihood,
		Assignments:      s.Assignments,
	}
	for j, c := range s.Covariances {
		out.Covariances[j] = rows(c)
		if c.SymmetricDim() == 2 {
			el, err := gmm.EllipseOf(c, ellipseScale)
			if err != nil {
				return MixtureSnapshot{}, err
			}
			out.Ellipses = append(out.Ellipses, el)
		}
	}
	return out, nil
}
