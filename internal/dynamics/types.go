package dynamics

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

type Control []float64

func (u Control) Clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

func (u Control) IsValid() bool {
	for _, v := range u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is a controlled nonlinear dynamical system dx/dt = f(x, u, t).
// Implementations may carry internal scratch state; Clone must return an
// independent instance safe for use on another goroutine.
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
	Clone() System
}

// LinearSystem provides analytic Jacobians of the dynamics with respect
// to state and control, evaluated at a trajectory point. Both matrices
// are returned in row-major order: JacobianState is StateDim x StateDim,
// JacobianControl is StateDim x ControlDim.
// CloneLinear mirrors System.Clone; the distinct name lets one concrete
// type implement both interfaces.
type LinearSystem interface {
	JacobianState(x State, u Control, t float64) []float64
	JacobianControl(x State, u Control, t float64) []float64
	CloneLinear() LinearSystem
}

// Configurable exposes named physical parameters of a system so they
// can be adjusted from configuration without rebuilding the model.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Controller maps the current state and time to a control input.
type Controller interface {
	Compute(x State, t float64) Control
}

// Integrator advances a system state by one fixed step.
type Integrator interface {
	Step(sys System, x State, u Control, t, dt float64) State
}
