package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkalten/trajopt/internal/cost"
	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/models"
	"github.com/mkalten/trajopt/internal/slq"
)

// Config describes a full trajectory-optimization run for the CLI: the
// model, the horizon and boundary states, the cost weights, and the
// solver settings.
type Config struct {
	Model   string             `yaml:"model"`
	Params  map[string]float64 `yaml:"params,omitempty"`
	Horizon float64            `yaml:"horizon"`
	X0      []float64          `yaml:"x0"`
	XFinal  []float64          `yaml:"x_final"`
	Weights WeightConfig       `yaml:"weights"`
	Solver  slq.Settings       `yaml:"solver"`
}

// WeightConfig holds diagonal cost weights; full matrices are a library
// concern, the CLI keeps to diagonals.
type WeightConfig struct {
	State         []float64 `yaml:"state"`
	Control       []float64 `yaml:"control"`
	TerminalState []float64 `yaml:"terminal_state"`
}

func Default() *Config {
	return &Config{
		Model:   "spring_mass",
		Horizon: 3.0,
		X0:      []float64{0, 0},
		XFinal:  []float64{20, 0},
		Weights: WeightConfig{
			State:         []float64{0, 1},
			Control:       []float64{100},
			TerminalState: []float64{10, 10},
		},
		Solver: slq.DefaultSettings(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BuildProblem assembles the solver problem described by the config.
func (c *Config) BuildProblem() (*slq.Problem, error) {
	sys, linear, err := buildModel(c.Model)
	if err != nil {
		return nil, err
	}
	if len(c.Params) > 0 {
		tunable, ok := sys.(dynamics.Configurable)
		if !ok {
			return nil, fmt.Errorf("config: model %q has no tunable parameters", c.Model)
		}
		// builtin models back the linear system with the same object, so
		// one SetParam adjusts both views
		for name, value := range c.Params {
			if err := tunable.SetParam(name, value); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}
	n := sys.StateDim()
	m := sys.ControlDim()
	if len(c.X0) != n {
		return nil, fmt.Errorf("config: x0 has %d entries, model %q expects %d", len(c.X0), c.Model, n)
	}
	if len(c.XFinal) != n {
		return nil, fmt.Errorf("config: x_final has %d entries, model %q expects %d", len(c.XFinal), c.Model, n)
	}

	q, err := diagonal(c.Weights.State, n, "weights.state")
	if err != nil {
		return nil, err
	}
	r, err := diagonal(c.Weights.Control, m, "weights.control")
	if err != nil {
		return nil, err
	}
	qf, err := diagonal(c.Weights.TerminalState, n, "weights.terminal_state")
	if err != nil {
		return nil, err
	}

	eval := cost.NewQuadratic(q, r, qf,
		make(dynamics.State, n), make(dynamics.Control, m), dynamics.State(c.XFinal))

	return slq.NewProblem(c.Horizon, dynamics.State(c.X0), sys, eval, linear)
}

func buildModel(name string) (dynamics.System, dynamics.LinearSystem, error) {
	switch name {
	case "spring_mass":
		m := models.NewSpringMass()
		return m, m, nil
	case "pendulum":
		p := models.NewPendulum()
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown model %q", name)
	}
}

func diagonal(entries []float64, dim int, field string) ([]float64, error) {
	if len(entries) != dim {
		return nil, fmt.Errorf("config: %s has %d entries, expected %d", field, len(entries), dim)
	}
	out := make([]float64, dim*dim)
	for i, v := range entries {
		out[i*dim+i] = v
	}
	return out, nil
}
