package commands

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/stepwise/internal/engine"
)

func newMixtureCommand(g *globals) *cobra.Command {
	var (
		req      engine.MixtureRequest
		dataFile string
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "gmm",
		Short: "Fit a Gaussian mixture with expectation-maximisation",
		Long: `Fit a Gaussian mixture to 2-D points read from a CSV file of x,y rows,
or to points drawn from the built-in three-component mixture.

With --k-max every k from --k to --k-max is fitted and the model with
the lowest BIC is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataFile != "" {
				ds, err := readDataset(dataFile)
				if err != nil {
					return err
				}
				req.Points = make([][]float64, len(ds))
				for i, p := range ds {
					req.Points[i] = []float64{p.X, p.Y}
				}
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			resp, err := eng.FitMixture(cmd.Context(), req)
			if err != nil {
				return err
			}
			points := req.Points
			if len(points) == 0 {
				points = resp.Data
			}
			return g.print(cmd, mixtureReport(resp, points))
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "CSV file of x,y points")
	cmd.Flags().IntVar(&req.Synthetic, "synthetic", 0, "number of points to draw from the built-in mixture")
	cmd.Flags().IntVar(&req.K, "k", 3, "number of components")
	cmd.Flags().IntVar(&req.KMax, "k-max", 0, "largest k to try when selecting by BIC")
	cmd.Flags().Float64Var(&req.Tol, "tol", 0, "log-likelihood tolerance, 0 for the engine default")
	cmd.Flags().IntVar(&req.MaxIter, "max-iter", 0, "iteration cap, 0 for the engine default")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "k-means++ seed, defaults to ENGINE_GMM_SEED")

	return cmd
}
