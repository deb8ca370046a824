package slq

import (
	"github.com/mkalten/trajopt/internal/cost"
	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/policy"
	"github.com/mkalten/trajopt/internal/rollout"
)

// searchResult is an accepted candidate policy with its rollout.
type searchResult struct {
	pol      *policy.Policy
	states   []dynamics.State
	controls []dynamics.Control
	cost     float64
	alpha    float64
	found    bool
}

// lineSearch backtracks over step sizes alpha, blending the backward-pass
// update into the nominal trajectory:
//
//	u(x) = uNom[k] + alpha*lv[k] + K[k](x - xNom[k])
//
// Each candidate costs one full nonlinear rollout. The first alpha whose
// cost improves on the baseline by more than minCostImprovement*alpha is
// accepted. With the search disabled, alpha = 1 is accepted
// unconditionally. A candidate whose rollout blows up (NaN state) is
// skipped, not fatal.
func lineSearch(svc *rollout.Service, eval cost.Evaluator, x0 dynamics.State, xNom []dynamics.State, uNom []dynamics.Control, upd *backwardResult, baseCost float64, set Settings) (searchResult, error) {
	steps := len(uNom)

	candidate := func(alpha float64) *policy.Policy {
		pol := policy.NewFromReference(uNom, xNom, set.Dt)
		for k := 0; k < steps; k++ {
			ff := uNom[k].Clone()
			lv := upd.corrections[k]
			for i := range ff {
				ff[i] += alpha * lv.AtVec(i)
			}
			pol.Update(k, ff, upd.gains[k], xNom[k])
		}
		return pol
	}

	if !set.LineSearch.Active {
		pol := candidate(1.0)
		states, controls, err := svc.Rollout(x0, pol, steps, set.Dt, set.DtSim)
		if err != nil {
			return searchResult{}, err
		}
		c := rollout.TrajectoryCost(eval, states, controls, set.Dt)
		return searchResult{
			pol:      pol,
			states:   states,
			controls: controls,
			cost:     c,
			alpha:    1.0,
			found:    baseCost-c > set.MinCostImprovement,
		}, nil
	}

	alpha := set.LineSearch.Alpha0
	for i := 0; i < set.LineSearch.MaxSteps; i++ {
		pol := candidate(alpha)
		states, controls, err := svc.Rollout(x0, pol, steps, set.Dt, set.DtSim)
		if err == nil {
			c := rollout.TrajectoryCost(eval, states, controls, set.Dt)
			if baseCost-c > set.MinCostImprovement*alpha {
				return searchResult{
					pol:      pol,
					states:   states,
					controls: controls,
					cost:     c,
					alpha:    alpha,
					found:    true,
				}, nil
			}
		}
		alpha *= set.LineSearch.ReductionFactor
	}

	return searchResult{found: false}, nil
}
