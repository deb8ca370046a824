// Package rollout forward-simulates nonlinear dynamics under a feedback
// policy, producing the state/control trajectories the solver iterates on.
package rollout

import (
	"fmt"

	"github.com/mkalten/trajopt/internal/cost"
	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/policy"
)

// Service integrates one system with one integrator. It is not safe for
// concurrent use; clone the system and build one Service per goroutine.
type Service struct {
	sys   dynamics.System
	integ dynamics.Integrator
}

func New(sys dynamics.System, integ dynamics.Integrator) *Service {
	return &Service{sys: sys, integ: integ}
}

// System returns the wrapped dynamics.
func (s *Service) System() dynamics.System { return s.sys }

// Rollout simulates steps solver intervals of length dt starting from x0.
// The control is sampled from the policy once per interval (zero-order
// hold) while integration proceeds in substeps of dtSim <= dt. The
// returned state trajectory has steps+1 entries, the control trajectory
// has steps.
func (s *Service) Rollout(x0 dynamics.State, pol *policy.Policy, steps int, dt, dtSim float64) ([]dynamics.State, []dynamics.Control, error) {
	if dtSim <= 0 || dtSim > dt {
		dtSim = dt
	}
	substeps := int(dt/dtSim + 0.5)
	if substeps < 1 {
		substeps = 1
	}
	sub := dt / float64(substeps)

	states := make([]dynamics.State, 0, steps+1)
	controls := make([]dynamics.Control, 0, steps)

	x := x0.Clone()
	states = append(states, x.Clone())

	for k := 0; k < steps; k++ {
		t := float64(k) * dt
		u := pol.ControlAt(x, k)

		for i := 0; i < substeps; i++ {
			x = s.integ.Step(s.sys, x, u, t+float64(i)*sub, sub)
		}

		if !x.IsValid() {
			return nil, nil, &dynamics.StepError{
				Step:    k,
				Time:    t,
				Wrapped: fmt.Errorf("rollout produced %w", dynamics.ErrInvalidState),
			}
		}

		states = append(states, x.Clone())
		controls = append(controls, u)
	}

	return states, controls, nil
}

// TrajectoryCost accumulates the discretized cost of a trajectory:
// dt-scaled running cost over every step plus the terminal cost.
func TrajectoryCost(eval cost.Evaluator, states []dynamics.State, controls []dynamics.Control, dt float64) float64 {
	total := 0.0
	for k, u := range controls {
		total += dt * eval.Evaluate(states[k], u, float64(k)*dt)
	}
	return total + eval.EvaluateTerminal(states[len(states)-1])
}
