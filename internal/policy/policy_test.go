package policy

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
)

func rampFF(steps, dim int) []dynamics.Control {
	ff := make([]dynamics.Control, steps)
	for k := range ff {
		ff[k] = make(dynamics.Control, dim)
		for i := range ff[k] {
			ff[k][i] = float64(k) * 0.1
		}
	}
	return ff
}

func TestRepresentationEquivalence(t *testing.T) {
	// with zero feedback gains the two constructions must produce the
	// same control at every step, regardless of the queried state
	const steps = 25
	dt := 0.02
	ff := rampFF(steps, 1)

	ref := make([]dynamics.State, steps)
	for k := range ref {
		ref[k] = dynamics.State{float64(k), -float64(k)}
	}

	fromRef := NewFromReference(ff, ref, dt)
	fromGains := NewFromGains(ff, make([][]float64, steps), 2, dt)

	x := dynamics.State{3.7, -1.2}
	for k := 0; k < steps; k++ {
		a := fromRef.ControlAt(x, k)
		b := fromGains.ControlAt(x, k)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("step %d: controls differ: %v vs %v", k, a, b)
			}
		}
	}

	// time-indexed access must agree as well
	for _, tt := range []float64{0, 0.02, 0.1, 0.33, 1.0} {
		a := fromRef.Compute(x, tt)
		b := fromGains.Compute(x, tt)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("t=%g: controls differ: %v vs %v", tt, a, b)
			}
		}
	}
}

func TestFeedbackCorrection(t *testing.T) {
	ff := rampFF(1, 1)
	ref := []dynamics.State{{1, 2}}
	pol := NewFromReference(ff, ref, 0.1)

	gain := mat.NewDense(1, 2, []float64{2, -3})
	pol.Update(0, dynamics.Control{0.5}, gain, ref[0])

	// u = 0.5 + 2*(x0-1) - 3*(x1-2)
	u := pol.ControlAt(dynamics.State{2, 1}, 0)
	want := 0.5 + 2*1 - 3*(-1)
	if math.Abs(u[0]-want) > 1e-12 {
		t.Errorf("u = %g, want %g", u[0], want)
	}
}

func TestStepIndexClamped(t *testing.T) {
	pol := NewFromReference(rampFF(10, 1), nil, 0.1)

	tests := []struct {
		t    float64
		want int
	}{
		{-1.0, 0},
		{0, 0},
		{0.05, 1}, // rounds up
		{0.41, 4}, // rounds to nearest
		{0.9, 9},
		{5.0, 9}, // clamped to horizon
	}
	for _, tt := range tests {
		if got := pol.StepIndex(tt.t); got != tt.want {
			t.Errorf("StepIndex(%g) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	pol := NewFromReference(rampFF(3, 1), nil, 0.1)
	clone := pol.Clone()

	pol.Update(1, dynamics.Control{99}, nil, nil)

	if got := clone.Feedforward(1)[0]; got == 99 {
		t.Error("mutating the original leaked into the clone")
	}
}
