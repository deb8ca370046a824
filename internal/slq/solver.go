package slq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/cost"
	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/integrators"
	"github.com/mkalten/trajopt/internal/policy"
	"github.com/mkalten/trajopt/internal/rollout"
)

// Status tracks the solver state machine.
type Status int

const (
	StatusUnconfigured Status = iota
	StatusConfigured
	StatusIterating
	StatusConverged
	StatusDiverged
	StatusIterationLimit
)

func (s Status) String() string {
	switch s {
	case StatusUnconfigured:
		return "unconfigured"
	case StatusConfigured:
		return "configured"
	case StatusIterating:
		return "iterating"
	case StatusConverged:
		return "converged"
	case StatusDiverged:
		return "diverged"
	case StatusIterationLimit:
		return "iteration limit reached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the solver has stopped.
func (s Status) Terminal() bool {
	return s == StatusConverged || s == StatusDiverged || s == StatusIterationLimit
}

// Contract errors returned by accessors and transitions.
var (
	ErrNotConfigured  = errors.New("slq: solver not configured")
	ErrNoInitialGuess = errors.New("slq: no initial guess set")
	ErrNoIteration    = errors.New("slq: no iteration completed yet")
)

// Problem is the immutable description of one optimal-control problem.
// It is shared read-only across iterations and worker goroutines; the
// solver clones the capability objects before evaluating them in parallel.
type Problem struct {
	Horizon float64
	X0      dynamics.State
	System  dynamics.System
	Cost    cost.Evaluator

	// Linear provides analytic Jacobians. Nil selects the
	// finite-difference fallback.
	Linear dynamics.LinearSystem
}

// NewProblem validates and bundles a problem description.
func NewProblem(horizon float64, x0 dynamics.State, sys dynamics.System, eval cost.Evaluator, linear dynamics.LinearSystem) (*Problem, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("slq: horizon must be positive, got %g", horizon)
	}
	if sys == nil {
		return nil, errors.New("slq: system must not be nil")
	}
	if eval == nil {
		return nil, errors.New("slq: cost evaluator must not be nil")
	}
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("slq: initial state has dimension %d, system expects %d: %w",
			len(x0), sys.StateDim(), dynamics.ErrDimensionMismatch)
	}
	return &Problem{
		Horizon: horizon,
		X0:      x0.Clone(),
		System:  sys,
		Cost:    eval,
		Linear:  linear,
	}, nil
}

// Solution is the converged policy with its diagnostic trajectories.
type Solution struct {
	Policy              *policy.Policy
	States              []dynamics.State
	Controls            []dynamics.Control
	Cost                float64
	Iterations          int
	CostHistory         []float64
	SmallestEigenvalues []float64
	Status              Status
}

// Solver runs the iterative SLQ / Gauss-Newton multiple-shooting loop:
// rollout, parallel linearization and cost quadratization, a Riccati
// backward pass, and a globalized line search, repeated until the cost
// improvement drops below tolerance.
//
// A Solver is not safe for concurrent use; internally it fans per-step
// work out over Settings.NThreads goroutines with cloned evaluators.
type Solver struct {
	prob *Problem
	set  Settings

	status   Status
	steps    int
	iter     int
	iterated bool

	pol      *policy.Policy
	states   []dynamics.State
	controls []dynamics.Control
	curCost  float64

	matA []*mat.Dense
	matB []*mat.Dense

	costHistory []float64
	eigHistory  []float64

	svc *rollout.Service
}

// New builds a solver for prob and configures it with set.
func New(prob *Problem, set Settings) (*Solver, error) {
	if prob == nil {
		return nil, errors.New("slq: problem must not be nil")
	}
	s := &Solver{prob: prob, status: StatusUnconfigured}
	if err := s.Configure(set); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure installs a copy of set and resets the iteration state. It is
// re-entrant: it may be called in any state, and the previous initial
// guess is discarded, so SetInitialGuess must follow before iterating.
func (s *Solver) Configure(set Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	steps := int(math.Round(s.prob.Horizon / set.Dt))
	if steps < 1 {
		return fmt.Errorf("slq: horizon %g shorter than one step of dt %g", s.prob.Horizon, set.Dt)
	}

	s.set = set
	s.steps = steps
	s.iter = 0
	s.iterated = false
	s.pol = nil
	s.states = nil
	s.controls = nil
	s.costHistory = nil
	s.eigHistory = nil
	s.matA = nil
	s.matB = nil
	s.svc = rollout.New(s.prob.System.Clone(), integrators.NewRK4())
	s.status = StatusConfigured
	return nil
}

// Settings returns the active configuration copy.
func (s *Solver) Settings() Settings { return s.set }

// Steps returns the number of discretization intervals over the horizon.
func (s *Solver) Steps() int { return s.steps }

// SetInitialGuess installs the starting policy and derives the initial
// trajectory by rolling it out. Requires a configured solver; the policy
// length must match the horizon.
func (s *Solver) SetInitialGuess(pol *policy.Policy) error {
	if s.status == StatusUnconfigured {
		return ErrNotConfigured
	}
	if pol == nil {
		return errors.New("slq: initial policy must not be nil")
	}
	if pol.Len() != s.steps {
		return fmt.Errorf("slq: initial policy covers %d steps, horizon needs %d: %w",
			pol.Len(), s.steps, dynamics.ErrDimensionMismatch)
	}

	states, controls, err := s.svc.Rollout(s.prob.X0, pol, s.steps, s.set.Dt, s.set.DtSim)
	if err != nil {
		return fmt.Errorf("slq: initial rollout failed: %w", err)
	}

	s.pol = pol.Clone()
	s.states = states
	s.controls = controls
	s.curCost = rollout.TrajectoryCost(s.prob.Cost, states, controls, s.set.Dt)
	s.iter = 0
	s.iterated = false
	s.costHistory = []float64{s.curCost}
	s.eigHistory = nil
	s.status = StatusConfigured
	return nil
}

// RunIteration executes one full solver cycle and reports whether a
// strictly better policy was found. It transitions to a terminal status
// on convergence, backward-pass failure, or iteration-budget exhaustion;
// in a terminal status it is a no-op returning false.
func (s *Solver) RunIteration() (bool, error) {
	if s.status == StatusUnconfigured {
		return false, ErrNotConfigured
	}
	if s.pol == nil {
		return false, ErrNoInitialGuess
	}
	if s.status.Terminal() {
		return false, nil
	}
	s.status = StatusIterating

	// Rollout under the current policy.
	states, controls, err := s.svc.Rollout(s.prob.X0, s.pol, s.steps, s.set.Dt, s.set.DtSim)
	if err != nil {
		s.status = StatusDiverged
		return false, err
	}
	s.states = states
	s.controls = controls

	// Linearize and quadratize every step, partitioned across workers.
	costs, err := s.buildLocalModels()
	if err != nil {
		s.status = StatusDiverged
		return false, err
	}
	s.iterated = true
	terminal := s.prob.Cost.QuadratizeTerminal(s.states[s.steps])

	upd, err := backwardPass(s.matA, s.matB, costs, terminal, s.set)
	if err != nil {
		s.status = StatusDiverged
		return false, err
	}
	if s.set.RecordSmallestEigenvalue && len(upd.eigenvalues) > 0 {
		smallest := upd.eigenvalues[0]
		for _, v := range upd.eigenvalues[1:] {
			if v < smallest {
				smallest = v
			}
		}
		s.eigHistory = append(s.eigHistory, smallest)
	}

	res, err := lineSearch(s.svc, s.prob.Cost, s.prob.X0, s.states, s.controls, upd, s.curCost, s.set)
	if err != nil {
		s.status = StatusDiverged
		return false, err
	}
	improvement := 0.0
	if res.pol != nil {
		// With the search disabled the alpha = 1 candidate is installed
		// unconditionally; an enabled search only returns accepted steps.
		improvement = s.curCost - res.cost
		s.pol = res.pol
		s.states = res.states
		s.controls = res.controls
		s.curCost = res.cost
		s.costHistory = append(s.costHistory, res.cost)
		s.iter++
	}
	if !res.found || improvement <= s.set.MinCostImprovement {
		s.status = StatusConverged
		return false, nil
	}
	if s.iter >= s.set.MaxIterations {
		s.status = StatusIterationLimit
		return false, nil
	}
	return true, nil
}

// Solve iterates until a terminal status and returns the solution.
func (s *Solver) Solve() (*Solution, error) {
	for {
		better, err := s.RunIteration()
		if err != nil {
			return nil, err
		}
		if !better {
			break
		}
	}
	return s.Solution()
}

// buildLocalModels fills matA/matB and the per-step cost models for the
// current trajectory. Work is partitioned into contiguous step ranges;
// every worker gets its own cloned linearizer and cost evaluator, and
// writes only its own slots.
func (s *Solver) buildLocalModels() ([]stepCost, error) {
	n := s.steps
	s.matA = make([]*mat.Dense, n)
	s.matB = make([]*mat.Dense, n)
	costs := make([]stepCost, n)

	base := NewLinearizer(s.prob.System, s.prob.Linear, s.set.Discretization, s.set.Dt)

	workers := s.set.NThreads
	errs := make([]error, workers)

	forEachRange(n, workers, func(worker, start, end int) {
		lin := base.Clone()
		eval := s.prob.Cost.Clone()
		for k := start; k < end; k++ {
			t := float64(k) * s.set.Dt
			a, b, err := lin.Linearize(s.states[k], s.controls[k], t)
			if err != nil {
				if errs[worker] == nil {
					errs[worker] = &dynamics.StepError{Step: k, Time: t, Wrapped: err}
				}
				return
			}
			s.matA[k] = a
			s.matB[k] = b
			costs[k] = quadratizeStep(eval, s.states[k], s.controls[k], t, s.set.Dt)
		}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return costs, nil
}

// Status returns the current state-machine status.
func (s *Solver) Status() Status { return s.status }

// Iterations returns the number of accepted iterations.
func (s *Solver) Iterations() int { return s.iter }

// Cost returns the cost of the current trajectory.
func (s *Solver) Cost() float64 { return s.curCost }

// CostHistory returns the trajectory cost after the initial rollout and
// each accepted iteration.
func (s *Solver) CostHistory() []float64 { return s.costHistory }

// StateTrajectory returns the current state trajectory (steps+1 entries).
// Valid only after at least one completed iteration.
func (s *Solver) StateTrajectory() ([]dynamics.State, error) {
	if !s.iterated {
		return nil, ErrNoIteration
	}
	return s.states, nil
}

// ControlTrajectory returns the current control trajectory (steps entries).
// Valid only after at least one completed iteration.
func (s *Solver) ControlTrajectory() ([]dynamics.Control, error) {
	if !s.iterated {
		return nil, ErrNoIteration
	}
	return s.controls, nil
}

// LastLinearizedModel returns the per-step (A, B) matrices of the most
// recent linearization. Valid only after at least one completed iteration.
func (s *Solver) LastLinearizedModel() (A, B []*mat.Dense, err error) {
	if !s.iterated {
		return nil, nil, ErrNoIteration
	}
	return s.matA, s.matB, nil
}

// SmallestEigenvalues returns, per accepted backward pass, the smallest
// control-Hessian eigenvalue encountered over the horizon. Empty unless
// Settings.RecordSmallestEigenvalue is set.
func (s *Solver) SmallestEigenvalues() ([]float64, error) {
	if !s.iterated {
		return nil, ErrNoIteration
	}
	return s.eigHistory, nil
}

// Policy returns the current feedback policy.
// Valid only after at least one completed iteration.
func (s *Solver) Policy() (*policy.Policy, error) {
	if !s.iterated {
		return nil, ErrNoIteration
	}
	return s.pol, nil
}

// Solution packages the current policy and diagnostics.
// Valid only after at least one completed iteration.
func (s *Solver) Solution() (*Solution, error) {
	if !s.iterated {
		return nil, ErrNoIteration
	}
	return &Solution{
		Policy:              s.pol.Clone(),
		States:              s.states,
		Controls:            s.controls,
		Cost:                s.curCost,
		Iterations:          s.iter,
		CostHistory:         s.costHistory,
		SmallestEigenvalues: s.eigHistory,
		Status:              s.status,
	}, nil
}
