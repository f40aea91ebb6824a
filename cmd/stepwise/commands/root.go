// Package commands implements the stepwise command-line interface.
package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/stepwise/internal/config"
	"github.com/copyleftdev/stepwise/internal/engine"
	"github.com/copyleftdev/stepwise/internal/logging"
)

const defaultRows = 20

// globals holds the persistent flags shared by every command.
type globals struct {
	jsonOut  bool
	noColor  bool
	logLevel string
	rows     int
	plotPath string
}

// NewRootCommand builds the stepwise command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "stepwise",
		Short: "Step-by-step numerical root finding, optimisation and clustering",
		Long: `Stepwise runs numerical methods and prints every step they take.

Commands:
  solve      Root finding and minimisation of one-variable functions
  optimize   Gradient descent and Newton's method in N dimensions
  gmm        Gaussian mixture fitting with expectation-maximisation
  derive     Symbolic differentiation
  interp     Evaluate the interpolant of a dataset
  run        Run every problem listed in a YAML file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "engine log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&g.rows, "rows", defaultRows, "maximum trace rows to print, 0 for all")
	rootCmd.PersistentFlags().StringVar(&g.plotPath, "plot", "", "also draw the result to this file (.png, .svg, .pdf)")

	rootCmd.AddCommand(newSolveCommand(g))
	rootCmd.AddCommand(newOptimizeCommand(g))
	rootCmd.AddCommand(newMixtureCommand(g))
	rootCmd.AddCommand(newDeriveCommand(g))
	rootCmd.AddCommand(newInterpolateCommand(g))
	rootCmd.AddCommand(newRunCommand(g))
	rootCmd.AddCommand(versionCmd(version))

	return rootCmd
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stepwise %s\n", version)
		},
	}
}

// newEngine builds an engine from the ENGINE_* environment. Engine logs go
// to the command's error stream in console format.
func (g *globals) newEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := config.LoadEngine()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithFormat(logging.ParseLevel(g.logLevel), logging.FormatConsole, cmd.ErrOrStderr())
	return engine.New(cfg, engine.WithLogger(logging.NewZapLogger(logger).Named("engine")))
}

// print writes r to the command's output in the selected format and
// draws its chart when --plot is set.
func (g *globals) print(cmd *cobra.Command, r report) error {
	if err := g.write(cmd.OutOrStdout(), r); err != nil {
		return err
	}
	if g.plotPath == "" {
		return nil
	}
	if r.chart == nil {
		return ErrNoChart
	}
	return r.chart.save(g.plotPath)
}

func (g *globals) write(w io.Writer, r report) error {
	if g.jsonOut {
		return writeJSON(w, r.payload)
	}
	r.render(w, g.rows)
	return nil
}
