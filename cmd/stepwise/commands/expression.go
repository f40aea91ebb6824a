package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/stepwise/internal/engine"
	"github.com/copyleftdev/stepwise/internal/expr"
)

func newDeriveCommand(g *globals) *cobra.Command {
	var (
		req engine.DifferentiateRequest
		at  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Differentiate an expression symbolically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(at) > 0 {
				req.At = make(expr.Bindings, len(at))
				for name, raw := range at {
					v, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return fmt.Errorf("invalid --at value for %s: %w", name, err)
					}
					req.At[name] = v
				}
			}

			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.Differentiate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.print(cmd, derivativeReport(resp))
		},
	}

	cmd.Flags().StringVarP(&req.Expression, "expr", "e", "", "expression to differentiate")
	cmd.Flags().StringVar(&req.Variable, "var", "", "variable to differentiate by, defaults to the only one")
	cmd.Flags().StringToStringVar(&at, "at", nil, "evaluate the derivative at a point, e.g. x=1,y=2")

	return cmd
}

func newInterpolateCommand(g *globals) *cobra.Command {
	var req engine.InterpolateRequest

	cmd := &cobra.Command{
		Use:   "interp <data.csv>",
		Short: "Evaluate the interpolant of a CSV dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readDataset(args[0])
			if err != nil {
				return err
			}
			req.Data = ds

			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.Interpolate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return g.print(cmd, interpolateReport(resp))
		},
	}

	cmd.Flags().StringVar(&req.Interpolation, "interp", "", "cubic or piecewise, defaults to ENGINE_INTERPOLATION")
	cmd.Flags().Float64SliceVar(&req.Xs, "x", nil, "points to evaluate at, e.g. 0.5,1.5")
	cmd.Flags().IntVar(&req.Samples, "samples", 0, "evenly spaced samples across the domain when --x is empty")

	return cmd
}
