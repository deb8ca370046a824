package slq

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/cost"
)

func scalarStepCost(q, r, qx, ru float64) stepCost {
	return stepCost{
		qx: mat.NewVecDense(1, []float64{qx}),
		ru: mat.NewVecDense(1, []float64{ru}),
		Q:  mat.NewSymDense(1, []float64{q}),
		R:  mat.NewSymDense(1, []float64{r}),
		P:  mat.NewDense(1, 1, []float64{0}),
	}
}

func scalarTerminal(qf, p float64) cost.TerminalModel {
	return cost.TerminalModel{
		Qx: mat.NewVecDense(1, []float64{p}),
		Q:  mat.NewSymDense(1, []float64{qf}),
	}
}

func TestBackwardPassScalar(t *testing.T) {
	// One step, scalar state and control. With
	//   H = r + b^2*qf, G = a*b*qf, g = ru + b*p
	// the gain and feedforward follow in closed form.
	a, b := 1.2, 0.5
	q, r := 2.0, 3.0
	qf, p := 4.0, -1.0
	ru := 0.7

	A := []*mat.Dense{mat.NewDense(1, 1, []float64{a})}
	B := []*mat.Dense{mat.NewDense(1, 1, []float64{b})}
	costs := []stepCost{scalarStepCost(q, r, 0, ru)}

	res, err := backwardPass(A, B, costs, scalarTerminal(qf, p), DefaultSettings())
	if err != nil {
		t.Fatalf("backward pass failed: %v", err)
	}

	h := r + b*b*qf
	g := a * b * qf
	grad := ru + b*p

	wantK := -g / h
	wantLv := -grad / h

	if got := res.gains[0].At(0, 0); math.Abs(got-wantK) > 1e-12 {
		t.Errorf("gain = %g, want %g", got, wantK)
	}
	if got := res.corrections[0].AtVec(0); math.Abs(got-wantLv) > 1e-12 {
		t.Errorf("feedforward correction = %g, want %g", got, wantLv)
	}
}

func TestBackwardPassRegularization(t *testing.T) {
	// A negative control Hessian: r + b^2*qf = -1 + 0 = -1.
	A := []*mat.Dense{mat.NewDense(1, 1, []float64{1})}
	B := []*mat.Dense{mat.NewDense(1, 1, []float64{0})}
	costs := []stepCost{scalarStepCost(1, -1, 0, 0.5)}

	t.Run("fixed correction too small is fatal", func(t *testing.T) {
		set := DefaultSettings()
		set.FixedHessianCorrection = true
		set.Epsilon = 0.1 // -1 + 0.1 still negative

		_, err := backwardPass(A, B, costs, scalarTerminal(0, 0), set)
		if err == nil {
			t.Fatal("expected non-PD failure, got nil")
		}
		var rerr *riccatiError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected riccatiError, got %T", err)
		}
		if rerr.Step != 0 {
			t.Errorf("failure step = %d, want 0", rerr.Step)
		}
	})

	t.Run("adaptive shift recovers", func(t *testing.T) {
		set := DefaultSettings()
		set.FixedHessianCorrection = false
		set.Epsilon = 0.1
		set.RecordSmallestEigenvalue = true

		res, err := backwardPass(A, B, costs, scalarTerminal(0, 0), set)
		if err != nil {
			t.Fatalf("adaptive regularization failed: %v", err)
		}
		if got := res.eigenvalues[0]; math.Abs(got-(-1)) > 1e-12 {
			t.Errorf("recorded eigenvalue = %g, want -1", got)
		}
		// shifted Hessian is eps - lambda_min + lambda = 0.1
		if got := res.corrections[0].AtVec(0); math.Abs(got-(-0.5/0.1)) > 1e-9 {
			t.Errorf("correction = %g, want %g", got, -0.5/0.1)
		}
	})
}

func TestSmallestEigenvalue(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{"diagonal", []float64{3, 0, 0, 7}, 3},
		{"indefinite", []float64{0, 2, 2, 0}, -2},
		// eigenvalues of [[2,1],[1,2]] are 1 and 3
		{"coupled", []float64{2, 1, 1, 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mat.NewSymDense(2, tt.data)
			if got := smallestEigenvalue(s); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("smallestEigenvalue = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestBackwardPassValuePropagation(t *testing.T) {
	// Two steps with zero B: no control authority, so the value function
	// is the pure state-cost accumulation S_k = q + a^2*S_{k+1}.
	a := 0.9
	q, qf := 2.0, 5.0

	A := []*mat.Dense{
		mat.NewDense(1, 1, []float64{a}),
		mat.NewDense(1, 1, []float64{a}),
	}
	B := []*mat.Dense{
		mat.NewDense(1, 1, []float64{0}),
		mat.NewDense(1, 1, []float64{0}),
	}
	costs := []stepCost{
		scalarStepCost(q, 1, 0, 0),
		scalarStepCost(q, 1, 0, 0),
	}

	res, err := backwardPass(A, B, costs, scalarTerminal(qf, 0), DefaultSettings())
	if err != nil {
		t.Fatalf("backward pass failed: %v", err)
	}

	// With B = 0 every gain must vanish.
	for k, gain := range res.gains {
		if got := gain.At(0, 0); got != 0 {
			t.Errorf("gain[%d] = %g, want 0", k, got)
		}
	}
	for k, lv := range res.corrections {
		if got := lv.AtVec(0); got != 0 {
			t.Errorf("correction[%d] = %g, want 0", k, got)
		}
	}
}
