// Package policy implements time-varying affine state-feedback control laws
// of the form u(x, t) = uff[k] + K[k] (x - xref[k]), where k is the step
// index implied by t and the policy step size.
package policy

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mkalten/trajopt/internal/dynamics"
)

type Policy struct {
	dt    float64
	ff    []dynamics.Control
	gains []*mat.Dense
	ref   []dynamics.State
}

// NewFromReference builds a pure feedforward policy tracking a reference
// state trajectory. Gains are zero; xref is kept for later gain updates.
// len(xref) may be len(ff)+1 (a full state trajectory); the terminal state
// is ignored.
func NewFromReference(ff []dynamics.Control, xref []dynamics.State, dt float64) *Policy {
	p := &Policy{
		dt:    dt,
		ff:    cloneControls(ff),
		gains: make([]*mat.Dense, len(ff)),
		ref:   make([]dynamics.State, len(ff)),
	}
	for k := range p.ref {
		if k < len(xref) {
			p.ref[k] = xref[k].Clone()
		}
	}
	return p
}

// NewFromGains builds a policy from feedforward and feedback-gain sequences
// with a zero reference trajectory. Gains are row-major controlDim x
// stateDim matrices; a nil entry means zero feedback at that step.
func NewFromGains(ff []dynamics.Control, gains [][]float64, stateDim int, dt float64) *Policy {
	p := &Policy{
		dt:    dt,
		ff:    cloneControls(ff),
		gains: make([]*mat.Dense, len(ff)),
		ref:   make([]dynamics.State, len(ff)),
	}
	for k := range p.gains {
		if k < len(gains) && gains[k] != nil {
			m := len(gains[k]) / stateDim
			p.gains[k] = mat.NewDense(m, stateDim, append([]float64(nil), gains[k]...))
		}
		p.ref[k] = make(dynamics.State, stateDim)
	}
	return p
}

func cloneControls(ff []dynamics.Control) []dynamics.Control {
	out := make([]dynamics.Control, len(ff))
	for i := range ff {
		out[i] = ff[i].Clone()
	}
	return out
}

// Len returns the number of steps the policy covers.
func (p *Policy) Len() int { return len(p.ff) }

// Dt returns the policy step size.
func (p *Policy) Dt() float64 { return p.dt }

// Feedforward returns the feedforward control at step k.
func (p *Policy) Feedforward(k int) dynamics.Control { return p.ff[k] }

// Gain returns the feedback matrix at step k, or nil for zero feedback.
func (p *Policy) Gain(k int) *mat.Dense { return p.gains[k] }

// Reference returns the reference state at step k, or nil.
func (p *Policy) Reference(k int) dynamics.State { return p.ref[k] }

// StepIndex maps a time to the policy step, clamped to the horizon.
func (p *Policy) StepIndex(t float64) int {
	k := int(math.Round(t / p.dt))
	if k < 0 {
		k = 0
	}
	if k >= len(p.ff) {
		k = len(p.ff) - 1
	}
	return k
}

// Compute implements dynamics.Controller.
func (p *Policy) Compute(x dynamics.State, t float64) dynamics.Control {
	return p.ControlAt(x, p.StepIndex(t))
}

// ControlAt evaluates the policy at an explicit step index.
func (p *Policy) ControlAt(x dynamics.State, k int) dynamics.Control {
	u := p.ff[k].Clone()
	gain := p.gains[k]
	if gain == nil {
		return u
	}
	ref := p.ref[k]
	for i := range u {
		for j := range x {
			dev := x[j]
			if ref != nil && j < len(ref) {
				dev -= ref[j]
			}
			u[i] += gain.At(i, j) * dev
		}
	}
	return u
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	c := &Policy{
		dt:    p.dt,
		ff:    cloneControls(p.ff),
		gains: make([]*mat.Dense, len(p.gains)),
		ref:   make([]dynamics.State, len(p.ref)),
	}
	for k, g := range p.gains {
		if g != nil {
			c.gains[k] = mat.DenseCopyOf(g)
		}
	}
	for k, r := range p.ref {
		if r != nil {
			c.ref[k] = r.Clone()
		}
	}
	return c
}

// Update replaces step k in place with a new feedforward, gain and
// reference. The gain may be nil.
func (p *Policy) Update(k int, ff dynamics.Control, gain *mat.Dense, ref dynamics.State) {
	p.ff[k] = ff.Clone()
	if gain != nil {
		p.gains[k] = mat.DenseCopyOf(gain)
	} else {
		p.gains[k] = nil
	}
	if ref != nil {
		p.ref[k] = ref.Clone()
	} else {
		p.ref[k] = nil
	}
}
