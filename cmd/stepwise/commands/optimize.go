package commands

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/stepwise/internal/engine"
)

func newOptimizeCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Gradient descent and Newton's method in N dimensions",
		Long: `Minimise a function of several variables.

Variables are bound as x1..xn, and also as x (one dimension) or x, y
(two dimensions). Gradients and Hessians are derived symbolically unless
given as bracketed lists, e.g. --grad "[2*x, 2*y]".`,
	}
	cmd.AddCommand(newGradientDescentCommand(g))
	cmd.AddCommand(newNewtonCommand(g))
	return cmd
}

func newGradientDescentCommand(g *globals) *cobra.Command {
	var req engine.GradientDescentRequest

	cmd := &cobra.Command{
		Use:     "gd",
		Aliases: []string{"gradient-descent"},
		Short:   "Minimise with fixed-step or adaptive gradient descent",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.GradientDescent(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.print(cmd, optimizeReport("Gradient descent", resp))
		},
	}

	cmd.Flags().StringVarP(&req.Expression, "expr", "e", "", "objective, e.g. \"x^2 + y^2\"")
	cmd.Flags().StringVar(&req.Gradient, "grad", "", "gradient as a bracketed list, derived when empty")
	cmd.Flags().Float64SliceVar(&req.X0, "x0", nil, "starting point, e.g. 1,1")
	cmd.Flags().Float64Var(&req.StepSize, "step", engine.DefaultStepSize, "initial step size")
	cmd.Flags().BoolVar(&req.Adaptive, "adaptive", false, "halve the step when f increases and grow it when f decreases")
	cmd.Flags().Float64Var(&req.Tol, "tol", 0, "gradient norm tolerance, 0 for the engine default")
	cmd.Flags().IntVar(&req.MaxIter, "max-iter", 0, "iteration cap, 0 for the engine default")

	return cmd
}

func newNewtonCommand(g *globals) *cobra.Command {
	var req engine.NewtonRequest

	cmd := &cobra.Command{
		Use:   "newton",
		Short: "Minimise with Newton's method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.Newton(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.print(cmd, optimizeReport("Newton's method", resp))
		},
	}

	cmd.Flags().StringVarP(&req.Expression, "expr", "e", "", "objective, e.g. \"(1-x)^2 + 100*(y-x^2)^2\"")
	cmd.Flags().StringVar(&req.Gradient, "grad", "", "gradient as a bracketed list, derived when empty")
	cmd.Flags().StringVar(&req.Hessian, "hess", "", "Hessian as nested bracketed lists, derived when empty")
	cmd.Flags().Float64SliceVar(&req.X0, "x0", nil, "starting point, e.g. -1.2,1")
	cmd.Flags().Float64Var(&req.Tol, "tol", 0, "gradient norm tolerance, 0 for the engine default")
	cmd.Flags().IntVar(&req.MaxIter, "max-iter", 0, "iteration cap, 0 for the engine default")

	return cmd
}
