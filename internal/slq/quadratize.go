package slq

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/cost"
	"github.com/mkalten/trajopt/internal/dynamics"
)

// stepCost holds the dt-scaled quadratic cost model of one trajectory step,
// ready for the backward pass.
type stepCost struct {
	c  float64
	qx *mat.VecDense
	ru *mat.VecDense
	Q  *mat.SymDense
	R  *mat.SymDense
	P  *mat.Dense
}

// quadratizeStep evaluates the cost model at a trajectory point and scales
// the continuous-time rates by the step size.
func quadratizeStep(eval cost.Evaluator, x dynamics.State, u dynamics.Control, t, dt float64) stepCost {
	m := eval.Quadratize(x, u, t)

	qx := mat.NewVecDense(m.Qx.Len(), nil)
	qx.ScaleVec(dt, m.Qx)
	ru := mat.NewVecDense(m.Ru.Len(), nil)
	ru.ScaleVec(dt, m.Ru)

	q := mat.NewSymDense(m.Q.SymmetricDim(), nil)
	scaleSym(q, dt, m.Q)
	r := mat.NewSymDense(m.R.SymmetricDim(), nil)
	scaleSym(r, dt, m.R)

	pr, pc := m.P.Dims()
	p := mat.NewDense(pr, pc, nil)
	p.Scale(dt, m.P)

	return stepCost{c: dt * m.C, qx: qx, ru: ru, Q: q, R: r, P: p}
}

func scaleSym(dst *mat.SymDense, f float64, src *mat.SymDense) {
	n := src.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, f*src.At(i, j))
		}
	}
}
