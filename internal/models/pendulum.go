package models

import (
	"fmt"
	"math"

	"github.com/mkalten/trajopt/internal/dynamics"
)

// Pendulum is a damped torque-actuated pendulum.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) Derive(x dynamics.State, u dynamics.Control, t float64) dynamics.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}
	inertia := p.Mass * p.Length * p.Length
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / inertia

	return dynamics.State{omega, alpha}
}

func (p *Pendulum) Clone() dynamics.System {
	c := *p
	return &c
}

func (p *Pendulum) JacobianState(x dynamics.State, u dynamics.Control, t float64) []float64 {
	inertia := p.Mass * p.Length * p.Length
	return []float64{
		0, 1,
		-p.Gravity * math.Cos(x[0]) / p.Length, -p.Damping / inertia,
	}
}

func (p *Pendulum) JacobianControl(x dynamics.State, u dynamics.Control, t float64) []float64 {
	inertia := p.Mass * p.Length * p.Length
	return []float64{0, 1 / inertia}
}

func (p *Pendulum) CloneLinear() dynamics.LinearSystem {
	c := *p
	return &c
}

func (p *Pendulum) Energy(x dynamics.State) float64 {
	v := p.Length * x[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(x[0]))
	return ke + pe
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
