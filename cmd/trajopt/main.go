package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/mkalten/trajopt/internal/config"
	"github.com/mkalten/trajopt/internal/dynamics"
	"github.com/mkalten/trajopt/internal/policy"
	"github.com/mkalten/trajopt/internal/slq"
)

const version = "0.2.0"

var (
	configFile  string
	model       string
	params      []string
	horizon     float64
	dt          float64
	threads     int
	maxIter     int
	scheme      string
	noLine      bool
	fixedHess   bool
	recordEig   bool
	showTraj    bool
	writeConfig string
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trajopt",
		Short: "trajectory optimization with SLQ feedback synthesis",
	}

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve an optimal-control problem",
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	solveCmd.Flags().StringVar(&model, "model", "spring_mass", "model (spring_mass, pendulum)")
	solveCmd.Flags().StringArrayVar(&params, "param", nil, "model parameter override, name=value (repeatable)")
	solveCmd.Flags().Float64Var(&horizon, "horizon", 3.0, "time horizon [s]")
	solveCmd.Flags().Float64Var(&dt, "dt", 0.01, "solver timestep [s]")
	solveCmd.Flags().IntVar(&threads, "threads", 1, "worker threads")
	solveCmd.Flags().IntVar(&maxIter, "max-iter", 100, "iteration budget")
	solveCmd.Flags().StringVar(&scheme, "discretization", "forward_euler", "discretization scheme")
	solveCmd.Flags().BoolVar(&noLine, "no-line-search", false, "disable line search")
	solveCmd.Flags().BoolVar(&fixedHess, "fixed-hessian-correction", false, "use fixed Hessian correction")
	solveCmd.Flags().BoolVar(&recordEig, "record-eigenvalues", false, "record smallest Hessian eigenvalues")
	solveCmd.Flags().BoolVar(&showTraj, "trajectory", false, "print the optimized trajectory")
	solveCmd.Flags().StringVar(&writeConfig, "write-config", "", "write effective config to file and exit")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trajopt %s\n", version)
		},
	}

	rootCmd.AddCommand(solveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if writeConfig != "" {
		return config.Save(writeConfig, cfg)
	}

	prob, err := cfg.BuildProblem()
	if err != nil {
		return err
	}

	solver, err := slq.New(prob, cfg.Solver)
	if err != nil {
		return err
	}

	steps := solver.Steps()
	zeroFF := make([]dynamics.Control, steps)
	for k := range zeroFF {
		zeroFF[k] = make(dynamics.Control, prob.System.ControlDim())
	}
	zeroRef := make([]dynamics.State, steps)
	for k := range zeroRef {
		zeroRef[k] = make(dynamics.State, prob.System.StateDim())
	}
	if err := solver.SetInitialGuess(policy.NewFromReference(zeroFF, zeroRef, cfg.Solver.Dt)); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("trajopt") + dimStyle.Render(fmt.Sprintf("  model=%s horizon=%gs steps=%d threads=%d",
		cfg.Model, cfg.Horizon, steps, cfg.Solver.NThreads)))

	sol, err := solver.Solve()
	if err != nil {
		fmt.Println(badStyle.Render("solver diverged: ") + err.Error())
		return err
	}

	statusStyle := okStyle
	if sol.Status != slq.StatusConverged {
		statusStyle = badStyle
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "status\t%s\n", statusStyle.Render(sol.Status.String()))
	fmt.Fprintf(w, "iterations\t%d\n", sol.Iterations)
	fmt.Fprintf(w, "final cost\t%.6g\n", sol.Cost)
	fmt.Fprintf(w, "final state\t%v\n", sol.States[len(sol.States)-1])
	w.Flush()

	if len(sol.CostHistory) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(sol.CostHistory,
			asciigraph.Height(10),
			asciigraph.Caption("trajectory cost per iteration")))
	}

	if len(sol.SmallestEigenvalues) > 0 {
		fmt.Println()
		fmt.Println(dimStyle.Render(fmt.Sprintf("smallest control-Hessian eigenvalues: %v", sol.SmallestEigenvalues)))
	}

	if showTraj {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "step\tstate\tcontrol")
		for k, u := range sol.Controls {
			fmt.Fprintf(tw, "%d\t%v\t%v\n", k, sol.States[k], u)
		}
		fmt.Fprintf(tw, "%d\t%v\t-\n", len(sol.Controls), sol.States[len(sol.States)-1])
		tw.Flush()
	}

	return nil
}

func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// flags override the file
	if cmd.Flags().Changed("model") {
		cfg.Model = model
	}
	for _, p := range params {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed --param %q, want name=value", p)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed --param %q: %v", p, err)
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[name] = value
	}
	if cmd.Flags().Changed("horizon") {
		cfg.Horizon = horizon
	}
	if cmd.Flags().Changed("dt") {
		cfg.Solver.Dt = dt
		cfg.Solver.DtSim = dt
	}
	if cmd.Flags().Changed("threads") {
		cfg.Solver.NThreads = threads
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.Solver.MaxIterations = maxIter
	}
	if cmd.Flags().Changed("discretization") {
		cfg.Solver.Discretization = slq.Discretization(scheme)
	}
	if noLine {
		cfg.Solver.LineSearch.Active = false
	}
	if fixedHess {
		cfg.Solver.FixedHessianCorrection = true
	}
	if recordEig {
		cfg.Solver.RecordSmallestEigenvalue = true
	}
	return cfg, nil
}
