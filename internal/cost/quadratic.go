package cost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
)

// Quadratic is a time-invariant quadratic cost around nominal points:
//
//	running:  0.5 (x-xNom)'Q(x-xNom) + 0.5 (u-uNom)'R(u-uNom)
//	terminal: 0.5 (x-xFinal)'Qf(x-xFinal)
type Quadratic struct {
	Q      *mat.SymDense
	R      *mat.SymDense
	Qf     *mat.SymDense
	XNom   dynamics.State
	UNom   dynamics.Control
	XFinal dynamics.State
}

// NewQuadratic builds a quadratic cost from row-major weight matrices.
// q and qf are stateDim x stateDim, r is controlDim x controlDim.
func NewQuadratic(q, r, qf []float64, xNom dynamics.State, uNom dynamics.Control, xFinal dynamics.State) *Quadratic {
	n := len(xNom)
	m := len(uNom)
	return &Quadratic{
		Q:      symFromRowMajor(n, q),
		R:      symFromRowMajor(m, r),
		Qf:     symFromRowMajor(n, qf),
		XNom:   xNom.Clone(),
		UNom:   uNom.Clone(),
		XFinal: xFinal.Clone(),
	}
}

func symFromRowMajor(n int, data []float64) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, data[i*n+j])
		}
	}
	return s
}

func (c *Quadratic) Evaluate(x dynamics.State, u dynamics.Control, t float64) float64 {
	dx := vecDiff(x, c.XNom)
	du := vecDiff(dynamics.State(u), dynamics.State(c.UNom))
	return 0.5*quadForm(c.Q, dx) + 0.5*quadForm(c.R, du)
}

func (c *Quadratic) EvaluateTerminal(x dynamics.State) float64 {
	dx := vecDiff(x, c.XFinal)
	return 0.5 * quadForm(c.Qf, dx)
}

func (c *Quadratic) Quadratize(x dynamics.State, u dynamics.Control, t float64) StepModel {
	n := len(x)
	m := len(u)
	dx := vecDiff(x, c.XNom)
	du := vecDiff(dynamics.State(u), dynamics.State(c.UNom))

	qx := mat.NewVecDense(n, nil)
	qx.MulVec(c.Q, dx)
	ru := mat.NewVecDense(m, nil)
	ru.MulVec(c.R, du)

	q := mat.NewSymDense(n, nil)
	q.CopySym(c.Q)
	r := mat.NewSymDense(m, nil)
	r.CopySym(c.R)

	return StepModel{
		C:  c.Evaluate(x, u, t),
		Qx: qx,
		Ru: ru,
		Q:  q,
		R:  r,
		P:  mat.NewDense(m, n, nil),
	}
}

func (c *Quadratic) QuadratizeTerminal(x dynamics.State) TerminalModel {
	n := len(x)
	dx := vecDiff(x, c.XFinal)

	qx := mat.NewVecDense(n, nil)
	qx.MulVec(c.Qf, dx)

	q := mat.NewSymDense(n, nil)
	q.CopySym(c.Qf)

	return TerminalModel{
		C:  c.EvaluateTerminal(x),
		Qx: qx,
		Q:  q,
	}
}

func (c *Quadratic) Clone() Evaluator {
	clone := &Quadratic{
		Q:      mat.NewSymDense(c.Q.SymmetricDim(), nil),
		R:      mat.NewSymDense(c.R.SymmetricDim(), nil),
		Qf:     mat.NewSymDense(c.Qf.SymmetricDim(), nil),
		XNom:   c.XNom.Clone(),
		UNom:   c.UNom.Clone(),
		XFinal: c.XFinal.Clone(),
	}
	clone.Q.CopySym(c.Q)
	clone.R.CopySym(c.R)
	clone.Qf.CopySym(c.Qf)
	return clone
}

func vecDiff(a, b dynamics.State) *mat.VecDense {
	d := make([]float64, len(a))
	for i := range a {
		nom := 0.0
		if i < len(b) {
			nom = b[i]
		}
		d[i] = a[i] - nom
	}
	return mat.NewVecDense(len(d), d)
}

func quadForm(m *mat.SymDense, v *mat.VecDense) float64 {
	tmp := mat.NewVecDense(v.Len(), nil)
	tmp.MulVec(m, v)
	return mat.Dot(v, tmp)
}
