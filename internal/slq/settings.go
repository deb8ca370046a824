package slq

import "fmt"

// Discretization selects how continuous-time Jacobians are turned into
// discrete-time (A, B) matrices.
type Discretization string

const (
	ForwardEuler  Discretization = "forward_euler"
	BackwardEuler Discretization = "backward_euler"
	Tustin        Discretization = "tustin"
)

// LineSearchSettings controls the backtracking step-size search.
type LineSearchSettings struct {
	Active          bool    `yaml:"active"`
	MaxSteps        int     `yaml:"max_steps"`
	Alpha0          float64 `yaml:"alpha_0"`
	ReductionFactor float64 `yaml:"reduction_factor"`
}

// Settings configures the solver. A Settings value is copied at Configure
// time; mutating it afterwards has no effect until Configure is called
// again.
type Settings struct {
	Dt                       float64            `yaml:"dt"`
	DtSim                    float64            `yaml:"dt_sim"`
	MaxIterations            int                `yaml:"max_iterations"`
	MinCostImprovement       float64            `yaml:"min_cost_improvement"`
	Epsilon                  float64            `yaml:"epsilon"`
	FixedHessianCorrection   bool               `yaml:"fixed_hessian_correction"`
	RecordSmallestEigenvalue bool               `yaml:"record_smallest_eigenvalue"`
	NThreads                 int                `yaml:"n_threads"`
	Discretization           Discretization     `yaml:"discretization"`
	LineSearch               LineSearchSettings `yaml:"line_search"`
}

func DefaultSettings() Settings {
	return Settings{
		Dt:                       0.01,
		DtSim:                    0.01,
		MaxIterations:            100,
		MinCostImprovement:       1e-5,
		Epsilon:                  1e-6,
		FixedHessianCorrection:   false,
		RecordSmallestEigenvalue: false,
		NThreads:                 1,
		Discretization:           ForwardEuler,
		LineSearch: LineSearchSettings{
			Active:          true,
			MaxSteps:        10,
			Alpha0:          1.0,
			ReductionFactor: 0.5,
		},
	}
}

func (s Settings) Validate() error {
	if s.Dt <= 0 {
		return fmt.Errorf("slq: dt must be positive, got %g", s.Dt)
	}
	if s.DtSim <= 0 {
		return fmt.Errorf("slq: dt_sim must be positive, got %g", s.DtSim)
	}
	if s.DtSim > s.Dt {
		return fmt.Errorf("slq: dt_sim (%g) must not exceed dt (%g)", s.DtSim, s.Dt)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("slq: max_iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.MinCostImprovement < 0 {
		return fmt.Errorf("slq: min_cost_improvement must be non-negative, got %g", s.MinCostImprovement)
	}
	if s.Epsilon < 0 {
		return fmt.Errorf("slq: epsilon must be non-negative, got %g", s.Epsilon)
	}
	if s.NThreads < 1 {
		return fmt.Errorf("slq: n_threads must be at least 1, got %d", s.NThreads)
	}
	switch s.Discretization {
	case ForwardEuler, BackwardEuler, Tustin:
	default:
		return fmt.Errorf("slq: unknown discretization %q", s.Discretization)
	}
	if s.LineSearch.Active {
		if s.LineSearch.MaxSteps < 1 {
			return fmt.Errorf("slq: line search max_steps must be at least 1, got %d", s.LineSearch.MaxSteps)
		}
		if s.LineSearch.Alpha0 <= 0 || s.LineSearch.Alpha0 > 1 {
			return fmt.Errorf("slq: line search alpha_0 must be in (0, 1], got %g", s.LineSearch.Alpha0)
		}
		if s.LineSearch.ReductionFactor <= 0 || s.LineSearch.ReductionFactor >= 1 {
			return fmt.Errorf("slq: line search reduction_factor must be in (0, 1), got %g", s.LineSearch.ReductionFactor)
		}
	}
	return nil
}
