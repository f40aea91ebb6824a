package gmm

import (
	"math"

	"github.com/copyleftdev/stepwise/internal/optimization"
)

// Candidate is one fitted model of a SelectK sweep.
type Candidate struct {
	K      int     `json:"k"`
	BIC    float64 `json:"bic"`
	Result *Result `json:"-"`
}

// Selection is the outcome of SelectK.
type Selection struct {
	Best       Candidate   `json:"best"`
	Candidates []Candidate `json:"candidates"`
}

// BIC is the Bayesian information criterion -2·LL + p·ln(n) of a
// full-covariance mixture with k components in dim dimensions.
func BIC(logLikelihood float64, k, dim, n int) float64 {
	params := (k - 1) + k*dim + k*dim*(dim+1)/2
	return -2*logLikelihood + float64(params)*math.Log(float64(n))
}

// SelectK fits every k in [kMin, kMax] with p (p.K is ignored) and returns
// the fit with the lowest BIC.
func SelectK(data [][]float64, kMin, kMax int, p Params, opts ...Option) (*Selection, error) {
	if kMin < 1 || kMax < kMin {
		return nil, optimization.Errorf(optimization.KindValidation, "invalid k range [%d, %d]", kMin, kMax).
			WithOperation("SelectK").WithComponent("gmm")
	}

	sel := &Selection{}
	for k := kMin; k <= kMax; k++ {
		p.K = k
		res, err := Fit(data, p, opts...)
		if err != nil {
			return nil, err
		}
		c := Candidate{
			K:      k,
			BIC:    BIC(res.Final().LogLikelihood, k, len(data[0]), len(data)),
			Result: res,
		}
		sel.Candidates = append(sel.Candidates, c)
		if sel.Best.Result == nil || c.BIC < sel.Best.BIC {
			sel.Best = c
		}
	}
	return sel, nil
}
