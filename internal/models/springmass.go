package models

import (
	"fmt"

	"github.com/mkalten/trajopt/internal/dynamics"
)

const DefaultStiffness = 10.0

// SpringMass is a horizontally moving unit point mass attached to a spring,
// driven by a force input:
//
//	x = [p, v]
//	dp/dt = v
//	dv/dt = u - k*p
type SpringMass struct {
	Stiffness float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{Stiffness: DefaultStiffness}
}

func (s *SpringMass) StateDim() int   { return 2 }
func (s *SpringMass) ControlDim() int { return 1 }

func (s *SpringMass) Derive(x dynamics.State, u dynamics.Control, t float64) dynamics.State {
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}
	return dynamics.State{x[1], force - s.Stiffness*x[0]}
}

func (s *SpringMass) Clone() dynamics.System {
	c := *s
	return &c
}

func (s *SpringMass) JacobianState(x dynamics.State, u dynamics.Control, t float64) []float64 {
	return []float64{
		0, 1,
		-s.Stiffness, 0,
	}
}

func (s *SpringMass) JacobianControl(x dynamics.State, u dynamics.Control, t float64) []float64 {
	return []float64{0, 1}
}

func (s *SpringMass) CloneLinear() dynamics.LinearSystem {
	c := *s
	return &c
}

func (s *SpringMass) Energy(x dynamics.State) float64 {
	return 0.5*x[1]*x[1] + 0.5*s.Stiffness*x[0]*x[0]
}

func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{"stiffness": s.Stiffness}
}

func (s *SpringMass) SetParam(name string, value float64) error {
	switch name {
	case "stiffness":
		s.Stiffness = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
