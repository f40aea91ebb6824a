package gmm

import "gonum.org/v1/gonum/mat"

// workspace hands out reusable scratch buffers for the M-step so that the
// per-iteration accumulators are not reallocated. Buffers are keyed by size;
// a returned buffer of a different size is simply dropped on the next get.
type workspace struct {
	syms []*mat.SymDense
	vecs []*mat.VecDense
}

func newWorkspace() *workspace {
	return &workspace{
		syms: make([]*mat.SymDense, 0, 4),
		vecs: make([]*mat.VecDense, 0, 4),
	}
}

// getSym returns a zeroed n×n symmetric matrix.
func (w *workspace) getSym(n int) *mat.SymDense {
	for len(w.syms) > 0 {
		m := w.syms[len(w.syms)-1]
		w.syms = w.syms[:len(w.syms)-1]
		if m.SymmetricDim() == n {
			m.Zero()
			return m
		}
	}
	return mat.NewSymDense(n, nil)
}

func (w *workspace) putSym(m *mat.SymDense) {
	w.syms = append(w.syms, m)
}

// getVec returns a zeroed vector of length n.
func (w *workspace) getVec(n int) *mat.VecDense {
	for len(w.vecs) > 0 {
		v := w.vecs[len(w.vecs)-1]
		w.vecs = w.vecs[:len(w.vecs)-1]
		if v.Len() == n {
			v.Zero()
			return v
		}
	}
	return mat.NewVecDense(n, nil)
}

func (w *workspace) putVec(v *mat.VecDense) {
	w.vecs = append(w.vecs, v)
}
