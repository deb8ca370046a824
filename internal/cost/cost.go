package cost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
)

// StepModel is the local quadratic approximation of the running cost around
// one trajectory point:
//
//	l(x+dx, u+du) ~ c + qx'dx + ru'du + 0.5 dx'Q dx + 0.5 du'R du + du'P dx
//
// All quantities are continuous-time rates; the solver scales them by its
// step size when building the discrete subproblem.
type StepModel struct {
	C  float64
	Qx *mat.VecDense
	Ru *mat.VecDense
	Q  *mat.SymDense
	R  *mat.SymDense
	P  *mat.Dense
}

// TerminalModel is the quadratic approximation of the terminal cost.
type TerminalModel struct {
	C  float64
	Qx *mat.VecDense
	Q  *mat.SymDense
}

// Evaluator exposes a cost functional to the solver: pointwise values for
// rollout scoring and local quadratic models for the backward pass.
// Implementations may keep scratch state; Clone returns an independent
// instance safe for use on another goroutine.
type Evaluator interface {
	Evaluate(x dynamics.State, u dynamics.Control, t float64) float64
	EvaluateTerminal(x dynamics.State) float64
	Quadratize(x dynamics.State, u dynamics.Control, t float64) StepModel
	QuadratizeTerminal(x dynamics.State) TerminalModel
	Clone() Evaluator
}
