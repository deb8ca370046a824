package slq

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/models"
)

// expectedAB recomputes the closed-form discretization from raw Jacobians,
// independently of the Linearizer implementation.
func expectedAB(t *testing.T, jx, ju *mat.Dense, dt float64, scheme Discretization) (*mat.Dense, *mat.Dense) {
	t.Helper()
	n, _ := jx.Dims()
	_, m := ju.Dims()
	eye := identity(n)

	switch scheme {
	case ForwardEuler:
		a := mat.NewDense(n, n, nil)
		a.Scale(dt, jx)
		a.Add(a, eye)
		b := mat.NewDense(n, m, nil)
		b.Scale(dt, ju)
		return a, b
	case BackwardEuler:
		mm := mat.NewDense(n, n, nil)
		mm.Scale(-dt, jx)
		mm.Add(mm, eye)
		var inv mat.Dense
		if err := inv.Inverse(mm); err != nil {
			t.Fatalf("reference inverse failed: %v", err)
		}
		b := mat.NewDense(n, m, nil)
		b.Scale(dt, ju)
		b.Mul(&inv, b)
		return &inv, b
	case Tustin:
		h := mat.NewDense(n, n, nil)
		h.Scale(0.5*dt, jx)
		mm := mat.NewDense(n, n, nil)
		mm.Sub(eye, h)
		var inv mat.Dense
		if err := inv.Inverse(mm); err != nil {
			t.Fatalf("reference inverse failed: %v", err)
		}
		a := mat.NewDense(n, n, nil)
		a.Add(eye, h)
		a.Mul(&inv, a)
		b := mat.NewDense(n, m, nil)
		b.Scale(dt, ju)
		b.Mul(&inv, b)
		return a, b
	}
	t.Fatalf("unknown scheme %q", scheme)
	return nil, nil
}

func maxAbsDiff(a, b mat.Matrix) float64 {
	ra, ca := a.Dims()
	worst := 0.0
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			d := math.Abs(a.At(i, j) - b.At(i, j))
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

func TestLinearizerSchemes(t *testing.T) {
	sys := models.NewSpringMass()
	dt := 0.1

	points := []struct {
		x dynamics.State
		u dynamics.Control
	}{
		{dynamics.State{0, 0}, dynamics.Control{0}},
		{dynamics.State{1.5, -2.0}, dynamics.Control{3.0}},
		{dynamics.State{-7, 4}, dynamics.Control{-1}},
	}

	for _, scheme := range []Discretization{ForwardEuler, BackwardEuler, Tustin} {
		t.Run(string(scheme), func(t *testing.T) {
			lin := NewLinearizer(sys, sys, scheme, dt)
			for _, pt := range points {
				a, b, err := lin.Linearize(pt.x, pt.u, 0)
				if err != nil {
					t.Fatalf("linearize failed: %v", err)
				}

				jx := mat.NewDense(2, 2, sys.JacobianState(pt.x, pt.u, 0))
				ju := mat.NewDense(2, 1, sys.JacobianControl(pt.x, pt.u, 0))
				wantA, wantB := expectedAB(t, jx, ju, dt, scheme)

				if d := maxAbsDiff(a, wantA); d > 1e-6 {
					t.Errorf("A mismatch at %v: max abs diff %g", pt.x, d)
				}
				if d := maxAbsDiff(b, wantB); d > 1e-6 {
					t.Errorf("B mismatch at %v: max abs diff %g", pt.x, d)
				}
			}
		})
	}
}

func TestLinearizerReproducible(t *testing.T) {
	sys := models.NewPendulum()
	lin := NewLinearizer(sys, sys, Tustin, 0.01)

	x := dynamics.State{0.7, -0.3}
	u := dynamics.Control{0.5}

	a1, b1, err := lin.Linearize(x, u, 0.5)
	if err != nil {
		t.Fatalf("linearize failed: %v", err)
	}
	a2, b2, err := lin.Linearize(x, u, 0.5)
	if err != nil {
		t.Fatalf("linearize failed: %v", err)
	}

	if maxAbsDiff(a1, a2) != 0 || maxAbsDiff(b1, b2) != 0 {
		t.Error("repeated linearization at the same point is not bit-identical")
	}
}

func TestLinearizerFiniteDifferenceFallback(t *testing.T) {
	sys := models.NewPendulum()

	analytic := NewLinearizer(sys, sys, ForwardEuler, 0.01)
	numeric := NewLinearizer(sys, nil, ForwardEuler, 0.01)

	x := dynamics.State{1.2, 0.4}
	u := dynamics.Control{-0.8}

	aA, bA, err := analytic.Linearize(x, u, 0)
	if err != nil {
		t.Fatalf("analytic linearize failed: %v", err)
	}
	aN, bN, err := numeric.Linearize(x, u, 0)
	if err != nil {
		t.Fatalf("numeric linearize failed: %v", err)
	}

	if d := maxAbsDiff(aA, aN); d > 1e-6 {
		t.Errorf("finite-difference A deviates from analytic by %g", d)
	}
	if d := maxAbsDiff(bA, bN); d > 1e-6 {
		t.Errorf("finite-difference B deviates from analytic by %g", d)
	}
}

// singularSystem has a state Jacobian that makes (I - dt*Jx) singular for
// dt = 1, so implicit schemes must report the failure.
type singularSystem struct{}

func (s *singularSystem) JacobianState(x dynamics.State, u dynamics.Control, t float64) []float64 {
	// I - Jx == 0 for dt = 1
	return []float64{1, 0, 0, 1}
}

func (s *singularSystem) JacobianControl(x dynamics.State, u dynamics.Control, t float64) []float64 {
	return []float64{1, 1}
}

func (s *singularSystem) CloneLinear() dynamics.LinearSystem { return &singularSystem{} }

func TestLinearizerSingular(t *testing.T) {
	lin := NewLinearizer(nil, &singularSystem{}, BackwardEuler, 1.0)
	_, _, err := lin.Linearize(dynamics.State{0, 0}, dynamics.Control{0}, 0)
	if err == nil {
		t.Fatal("expected singular-matrix error, got nil")
	}
}
