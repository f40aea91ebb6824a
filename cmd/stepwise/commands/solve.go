package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/stepwise/internal/engine"
	"github.com/copyleftdev/stepwise/internal/interp"
)

// ErrSourceConflict is returned when both --expr and --data are given.
var ErrSourceConflict = errors.New("use either --expr or --data, not both")

// sourceFlags selects the function a 1-D method runs on.
type sourceFlags struct {
	expression    string
	dataFile      string
	interpolation string
	tol           float64
	maxIter       int
}

func (s *sourceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.expression, "expr", "e", "", "function of one variable, e.g. \"x^2 - 2\"")
	cmd.Flags().StringVar(&s.dataFile, "data", "", "CSV file of x,y samples to interpolate instead of --expr")
	cmd.Flags().StringVar(&s.interpolation, "interp", "", "interpolation for --data: cubic or piecewise")
	cmd.Flags().Float64Var(&s.tol, "tol", 0, "convergence tolerance, 0 for the engine default")
	cmd.Flags().IntVar(&s.maxIter, "max-iter", 0, "iteration cap, 0 for the engine default")
}

func (s *sourceFlags) source() (engine.Source, error) {
	if s.dataFile == "" {
		return engine.Source{Mode: engine.ModeFunction, Expression: s.expression}, nil
	}
	if s.expression != "" {
		return engine.Source{}, ErrSourceConflict
	}
	ds, err := readDataset(s.dataFile)
	if err != nil {
		return engine.Source{}, err
	}
	return engine.Source{Mode: engine.ModeData, Data: ds, Interpolation: s.interpolation}, nil
}

func readDataset(path string) (interp.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return interp.ReadCSV(f)
}

func newSolveCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Root finding and minimisation of one-variable functions",
	}
	cmd.AddCommand(newBisectionCommand(g))
	cmd.AddCommand(newGoldenCommand(g))
	cmd.AddCommand(newNewtonRaphsonCommand(g))
	cmd.AddCommand(newSecantCommand(g))
	return cmd
}

func newBisectionCommand(g *globals) *cobra.Command {
	var (
		src  sourceFlags
		a, b float64
	)

	cmd := &cobra.Command{
		Use:   "bisection",
		Short: "Find a root inside the bracket [a, b]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := src.source()
			if err != nil {
				return err
			}
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.SolveBisection(cmd.Context(), engine.BisectionRequest{
				Source: source, A: a, B: b, Tol: src.tol, MaxIter: src.maxIter,
			})
			if err != nil {
				return err
			}
			return g.print(cmd, bisectionReport(resp))
		},
	}

	src.bind(cmd)
	cmd.Flags().Float64Var(&a, "a", 0, "left end of the bracket")
	cmd.Flags().Float64Var(&b, "b", 0, "right end of the bracket")

	return cmd
}

func newGoldenCommand(g *globals) *cobra.Command {
	var (
		src     sourceFlags
		a, b, c float64
	)

	cmd := &cobra.Command{
		Use:     "golden",
		Aliases: []string{"golden-section"},
		Short:   "Minimise inside the bracket a < b < c with f(b) below f(a) and f(c)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := src.source()
			if err != nil {
				return err
			}
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.SolveGoldenSection(cmd.Context(), engine.GoldenSectionRequest{
				Source: source, A: a, B: b, C: c, Tol: src.tol, MaxIter: src.maxIter,
			})
			if err != nil {
				return err
			}
			return g.print(cmd, goldenReport(resp))
		},
	}

	src.bind(cmd)
	cmd.Flags().Float64Var(&a, "a", 0, "left end of the bracket")
	cmd.Flags().Float64Var(&b, "b", 0, "interior point of the bracket")
	cmd.Flags().Float64Var(&c, "c", 0, "right end of the bracket")

	return cmd
}

func newNewtonRaphsonCommand(g *globals) *cobra.Command {
	var (
		src sourceFlags
		x0  float64
	)

	cmd := &cobra.Command{
		Use:     "newton",
		Aliases: []string{"newton-raphson"},
		Short:   "Find a root with Newton-Raphson from x0",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := src.source()
			if err != nil {
				return err
			}
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.SolveNewtonRaphson(cmd.Context(), engine.NewtonRaphsonRequest{
				Source: source, X0: x0, Tol: src.tol, MaxIter: src.maxIter,
			})
			if err != nil {
				return err
			}
			return g.print(cmd, newtonRaphsonReport(resp))
		},
	}

	src.bind(cmd)
	cmd.Flags().Float64Var(&x0, "x0", 0, "starting point")

	return cmd
}

func newSecantCommand(g *globals) *cobra.Command {
	var (
		src    sourceFlags
		x0, x1 float64
	)

	cmd := &cobra.Command{
		Use:   "secant",
		Short: "Find a root with the secant method from x0 and x1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := src.source()
			if err != nil {
				return err
			}
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.SolveSecant(cmd.Context(), engine.SecantRequest{
				Source: source, X0: x0, X1: x1, Tol: src.tol, MaxIter: src.maxIter,
			})
			if err != nil {
				return err
			}
			return g.print(cmd, secantReport(resp))
		},
	}

	src.bind(cmd)
	cmd.Flags().Float64Var(&x0, "x0", 0, "first guess")
	cmd.Flags().Float64Var(&x1, "x1", 1, "second guess")

	return cmd
}
