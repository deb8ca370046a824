package slq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/cost"
)

// backwardResult is the policy update produced by one Riccati sweep:
// per-step feedback gains, feedforward corrections, and (if recorded) the
// smallest control-Hessian eigenvalue seen at each step.
type backwardResult struct {
	gains       []*mat.Dense
	corrections []*mat.VecDense
	eigenvalues []float64
}

// riccatiError reports a backward-pass failure at a specific step.
type riccatiError struct {
	Step    int
	Wrapped error
}

func (e *riccatiError) Error() string {
	return fmt.Sprintf("backward pass failed at step %d: %v", e.Step, e.Wrapped)
}

func (e *riccatiError) Unwrap() error { return e.Wrapped }

// backwardPass walks the horizon in reverse, propagating the value-function
// Hessian S and gradient sv from the terminal cost and extracting at each
// step the gain K = -Hreg^-1 G and feedforward correction lv = -Hreg^-1 g,
// where
//
//	H = R + B'SB,  G = P + B'SA,  g = ru + B'sv.
//
// A control Hessian that is not positive definite is shifted: by epsilon*I
// in fixed-correction mode, by (epsilon - lambda_min)*I in adaptive mode.
// If the shifted Hessian still fails to factorize, the sweep aborts.
func backwardPass(A, B []*mat.Dense, costs []stepCost, terminal cost.TerminalModel, set Settings) (*backwardResult, error) {
	steps := len(A)
	n := terminal.Q.SymmetricDim()

	res := &backwardResult{
		gains:       make([]*mat.Dense, steps),
		corrections: make([]*mat.VecDense, steps),
	}
	if set.RecordSmallestEigenvalue {
		res.eigenvalues = make([]float64, steps)
	}

	// terminal boundary condition
	S := mat.NewSymDense(n, nil)
	S.CopySym(terminal.Q)
	sv := mat.NewVecDense(n, nil)
	sv.CopyVec(terminal.Qx)

	for k := steps - 1; k >= 0; k-- {
		a, b := A[k], B[k]
		c := costs[k]
		m := bCols(b)

		// SB = S*B, SA = S*A
		sb := mat.NewDense(n, m, nil)
		sb.Mul(S, b)
		sa := mat.NewDense(n, n, nil)
		sa.Mul(S, a)

		// H = R + B'SB
		H := mat.NewDense(m, m, nil)
		H.Mul(b.T(), sb)
		H.Add(H, c.R)

		// G = P + B'SA
		G := mat.NewDense(m, n, nil)
		G.Mul(b.T(), sa)
		G.Add(G, c.P)

		// g = ru + B'sv
		g := mat.NewVecDense(m, nil)
		g.MulVec(b.T(), sv)
		g.AddVec(g, c.ru)

		Hsym := symmetrize(H)
		smallest := smallestEigenvalue(Hsym)
		if res.eigenvalues != nil {
			res.eigenvalues[k] = smallest
		}

		if smallest <= 0 {
			shift := set.Epsilon
			if !set.FixedHessianCorrection {
				shift = set.Epsilon - smallest
			}
			for i := 0; i < m; i++ {
				Hsym.SetSym(i, i, Hsym.At(i, i)+shift)
			}
		}

		var chol mat.Cholesky
		if !chol.Factorize(Hsym) {
			return nil, &riccatiError{
				Step:    k,
				Wrapped: fmt.Errorf("control Hessian not positive definite after correction (smallest eigenvalue %g)", smallest),
			}
		}

		// K = -Hreg^-1 G, lv = -Hreg^-1 g
		K := mat.NewDense(m, n, nil)
		if err := chol.SolveTo(K, G); err != nil {
			return nil, &riccatiError{Step: k, Wrapped: err}
		}
		K.Scale(-1, K)

		lv := mat.NewVecDense(m, nil)
		if err := chol.SolveVecTo(lv, g); err != nil {
			return nil, &riccatiError{Step: k, Wrapped: err}
		}
		lv.ScaleVec(-1, lv)

		res.gains[k] = K
		res.corrections[k] = lv

		// S <- Q + A'SA + K'HK + K'G + G'K
		next := mat.NewDense(n, n, nil)
		next.Mul(a.T(), sa)
		next.Add(next, c.Q)

		hk := mat.NewDense(m, n, nil)
		hk.Mul(Hsym, K)
		khk := mat.NewDense(n, n, nil)
		khk.Mul(K.T(), hk)
		next.Add(next, khk)

		kg := mat.NewDense(n, n, nil)
		kg.Mul(K.T(), G)
		next.Add(next, kg)
		next.Add(next, kg.T())

		// sv <- qx + A'sv + K'H lv + K'g + G'lv
		nextV := mat.NewVecDense(n, nil)
		nextV.MulVec(a.T(), sv)
		nextV.AddVec(nextV, c.qx)

		hl := mat.NewVecDense(m, nil)
		hl.MulVec(Hsym, lv)
		tmp := mat.NewVecDense(n, nil)
		tmp.MulVec(K.T(), hl)
		nextV.AddVec(nextV, tmp)

		tmp.MulVec(K.T(), g)
		nextV.AddVec(nextV, tmp)

		tmp.MulVec(G.T(), lv)
		nextV.AddVec(nextV, tmp)

		S = symmetrize(next)
		sv = nextV
	}

	return res, nil
}

func bCols(b *mat.Dense) int {
	_, m := b.Dims()
	return m
}

// symmetrize averages a near-symmetric matrix into a SymDense, damping the
// drift that accumulates over long recursions.
func symmetrize(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

func smallestEigenvalue(s *mat.SymDense) float64 {
	var es mat.EigenSym
	if !es.Factorize(s, false) {
		// Factorization failure on a finite symmetric matrix does not
		// happen in practice; treat it as maximally indefinite so the
		// regularization path reports it.
		return math.Inf(-1)
	}
	vals := es.Values(nil)
	return vals[0]
}
