package slq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
)

// Linearizer produces discrete-time (A, B) matrices from continuous-time
// Jacobians at a trajectory point. It is a pure function of its inputs:
// the same (x, u, t, dt, scheme) always yields the same matrices.
//
// Jacobians come from the analytic LinearSystem when available, otherwise
// from central finite differences on the nonlinear system.
type Linearizer struct {
	analytic dynamics.LinearSystem
	numeric  dynamics.System
	scheme   Discretization
	dt       float64
}

// NewLinearizer builds a linearizer over analytic Jacobians. linear may be
// nil, in which case finite differences over sys are used.
func NewLinearizer(sys dynamics.System, linear dynamics.LinearSystem, scheme Discretization, dt float64) *Linearizer {
	return &Linearizer{
		analytic: linear,
		numeric:  sys,
		scheme:   scheme,
		dt:       dt,
	}
}

// Clone returns an independent linearizer for use on another goroutine.
func (l *Linearizer) Clone() *Linearizer {
	c := &Linearizer{scheme: l.scheme, dt: l.dt}
	if l.analytic != nil {
		c.analytic = l.analytic.CloneLinear()
	}
	if l.numeric != nil {
		c.numeric = l.numeric.Clone()
	}
	return c
}

// Linearize evaluates the Jacobians at (x, u, t) and discretizes them.
func (l *Linearizer) Linearize(x dynamics.State, u dynamics.Control, t float64) (A, B *mat.Dense, err error) {
	n := len(x)
	m := len(u)

	var jx, ju *mat.Dense
	if l.analytic != nil {
		jx = mat.NewDense(n, n, l.analytic.JacobianState(x, u, t))
		ju = mat.NewDense(n, m, l.analytic.JacobianControl(x, u, t))
	} else {
		jx, ju = numericJacobians(l.numeric, x, u, t)
	}

	return discretize(jx, ju, l.dt, l.scheme)
}

func discretize(jx, ju *mat.Dense, dt float64, scheme Discretization) (A, B *mat.Dense, err error) {
	n, _ := jx.Dims()
	_, m := ju.Dims()
	eye := identity(n)

	switch scheme {
	case ForwardEuler:
		// A = I + dt*Jx, B = dt*Ju
		A = mat.NewDense(n, n, nil)
		A.Scale(dt, jx)
		A.Add(A, eye)
		B = mat.NewDense(n, m, nil)
		B.Scale(dt, ju)
		return A, B, nil

	case BackwardEuler:
		// A = (I - dt*Jx)^-1, B = A*dt*Ju
		M := mat.NewDense(n, n, nil)
		M.Scale(-dt, jx)
		M.Add(M, eye)
		A, err = invertQR(M)
		if err != nil {
			return nil, nil, fmt.Errorf("backward euler: %w", err)
		}
		B = mat.NewDense(n, m, nil)
		B.Scale(dt, ju)
		B.Mul(A, B)
		return A, B, nil

	case Tustin:
		// H = 0.5*dt*Jx, A = (I-H)^-1 (I+H), B = (I-H)^-1 dt*Ju
		H := mat.NewDense(n, n, nil)
		H.Scale(0.5*dt, jx)
		M := mat.NewDense(n, n, nil)
		M.Sub(eye, H)
		Minv, invErr := invertQR(M)
		if invErr != nil {
			return nil, nil, fmt.Errorf("tustin: %w", invErr)
		}
		A = mat.NewDense(n, n, nil)
		A.Add(eye, H)
		A.Mul(Minv, A)
		B = mat.NewDense(n, m, nil)
		B.Scale(dt, ju)
		B.Mul(Minv, B)
		return A, B, nil

	default:
		return nil, nil, fmt.Errorf("slq: unknown discretization %q", scheme)
	}
}

// invertQR inverts via a column-pivoted-style stable QR factorization.
// Ill-conditioned input surfaces as an error, never as NaN output.
func invertQR(m *mat.Dense) (*mat.Dense, error) {
	n, _ := m.Dims()
	var qr mat.QR
	qr.Factorize(m)
	inv := mat.NewDense(n, n, nil)
	if err := qr.SolveTo(inv, false, identity(n)); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamics.ErrSingularMatrix, err)
	}
	return inv, nil
}

func identity(n int) *mat.Dense {
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

// numericJacobians estimates Jacobians with central differences.
func numericJacobians(sys dynamics.System, x dynamics.State, u dynamics.Control, t float64) (jx, ju *mat.Dense) {
	n := len(x)
	m := len(u)
	jx = mat.NewDense(n, n, nil)
	ju = mat.NewDense(n, m, nil)

	for j := 0; j < n; j++ {
		h := fdStep(x[j])
		xp := x.Clone()
		xm := x.Clone()
		xp[j] += h
		xm[j] -= h
		fp := sys.Derive(xp, u, t)
		fm := sys.Derive(xm, u, t)
		for i := 0; i < n; i++ {
			jx.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}

	for j := 0; j < m; j++ {
		h := fdStep(u[j])
		up := u.Clone()
		um := u.Clone()
		up[j] += h
		um[j] -= h
		fp := sys.Derive(x, up, t)
		fm := sys.Derive(x, um, t)
		for i := 0; i < n; i++ {
			ju.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}

	return jx, ju
}

func fdStep(v float64) float64 {
	const base = 1e-6
	return base * math.Max(1, math.Abs(v))
}
