package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/stepwise/internal/engine"
	apperrors "github.com/copyleftdev/stepwise/internal/errors"
)

// ErrNoProblems is returned for a run file without problems.
var ErrNoProblems = errors.New("run file lists no problems")

// Problem is one entry of a run file. Params holds the request fields of
// the method named by Kind, using the same names as the JSON API.
type Problem struct {
	Name   string    `yaml:"name"`
	Kind   string    `yaml:"kind"`
	Params yaml.Node `yaml:"params"`
}

type runFile struct {
	Problems []Problem `yaml:"problems"`
}

// runResult is the JSON form of one solved problem.
type runResult struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type problemRunner func(ctx context.Context, eng *engine.Engine, params *yaml.Node) (report, error)

// runnerFor decodes params into Req before calling the engine.
func runnerFor[Req any](call func(context.Context, *engine.Engine, Req) (report, error)) problemRunner {
	return func(ctx context.Context, eng *engine.Engine, params *yaml.Node) (report, error) {
		var req Req
		if params.Kind != 0 {
			if err := params.Decode(&req); err != nil {
				return report{}, fmt.Errorf("decoding params: %w", err)
			}
		}
		return call(ctx, eng, req)
	}
}

var problemKinds = map[string]problemRunner{
	"bisection": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.BisectionRequest) (report, error) {
		resp, err := eng.SolveBisection(ctx, req)
		if err != nil {
			return report{}, err
		}
		return bisectionReport(resp), nil
	}),
	"golden-section": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.GoldenSectionRequest) (report, error) {
		resp, err := eng.SolveGoldenSection(ctx, req)
		if err != nil {
			return report{}, err
		}
		return goldenReport(resp), nil
	}),
	"newton-raphson": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.NewtonRaphsonRequest) (report, error) {
		resp, err := eng.SolveNewtonRaphson(ctx, req)
		if err != nil {
			return report{}, err
		}
		return newtonRaphsonReport(resp), nil
	}),
	"secant": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.SecantRequest) (report, error) {
		resp, err := eng.SolveSecant(ctx, req)
		if err != nil {
			return report{}, err
		}
		return secantReport(resp), nil
	}),
	"gradient-descent": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.GradientDescentRequest) (report, error) {
		resp, err := eng.GradientDescent(ctx, req)
		if err != nil {
			return report{}, err
		}
		return optimizeReport("Gradient descent", resp), nil
	}),
	"newton": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.NewtonRequest) (report, error) {
		resp, err := eng.Newton(ctx, req)
		if err != nil {
			return report{}, err
		}
		return optimizeReport("Newton's method", resp), nil
	}),
	"gmm": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.MixtureRequest) (report, error) {
		resp, err := eng.FitMixture(ctx, req)
		if err != nil {
			return report{}, err
		}
		points := req.Points
		if len(points) == 0 {
			points = resp.Data
		}
		return mixtureReport(resp, points), nil
	}),
	"derivative": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.DifferentiateRequest) (report, error) {
		resp, err := eng.Differentiate(ctx, req)
		if err != nil {
			return report{}, err
		}
		return derivativeReport(resp), nil
	}),
	"interpolate": runnerFor(func(ctx context.Context, eng *engine.Engine, req engine.InterpolateRequest) (report, error) {
		resp, err := eng.Interpolate(ctx, req)
		if err != nil {
			return report{}, err
		}
		return interpolateReport(resp), nil
	}),
}

func kindNames() string {
	names := make([]string, 0, len(problemKinds))
	for k := range problemKinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// LoadProblems reads a run file. Unknown top-level and problem fields are
// rejected, as are unknown kinds.
func LoadProblems(r io.Reader) ([]Problem, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f runFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoProblems
		}
		return nil, fmt.Errorf("decoding run file: %w", err)
	}
	if len(f.Problems) == 0 {
		return nil, ErrNoProblems
	}
	for i, p := range f.Problems {
		if _, ok := problemKinds[p.Kind]; !ok {
			return nil, fmt.Errorf("problem %d (%s): unknown kind %q, expected one of %s", i+1, p.Name, p.Kind, kindNames())
		}
		if f.Problems[i].Name == "" {
			f.Problems[i].Name = fmt.Sprintf("%s-%d", p.Kind, i+1)
		}
	}
	return f.Problems, nil
}

func newRunCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run <problems.yaml>",
		Short: "Run every problem listed in a YAML file",
		Long: `Run every problem listed in a YAML file.

Example:

  problems:
    - name: sqrt2
      kind: bisection
      params: {expression: "x^2 - 2", a: 1, b: 2}
    - name: rosenbrock
      kind: newton
      params: {expression: "(1-x)^2 + 100*(y-x^2)^2", x0: [-1.2, 1]}

A failing problem is reported and the remaining problems still run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return apperrors.Wrap(err, "opening run file")
			}
			defer f.Close()

			problems, err := LoadProblems(f)
			if err != nil {
				return apperrors.Wrapf(err, "loading %s", args[0])
			}
			eng, err := g.newEngine(cmd)
			if err != nil {
				return err
			}
			return g.runProblems(cmd.Context(), cmd.OutOrStdout(), eng, problems)
		},
	}
}

func (g *globals) runProblems(ctx context.Context, w io.Writer, eng *engine.Engine, problems []Problem) error {
	results := make([]runResult, 0, len(problems))
	failed := 0
	heading := color.New(color.Bold)
	failure := color.New(color.FgRed)

	for i := range problems {
		p := &problems[i]
		rep, err := problemKinds[p.Kind](ctx, eng, &p.Params)

		res := runResult{Name: p.Name, Kind: p.Kind}
		if err == nil && g.plotPath != "" && rep.chart != nil {
			err = rep.chart.save(plotPathFor(g.plotPath, p.Name))
		}
		if err != nil {
			failed++
			res.Error = err.Error()
		} else {
			res.Result = rep.payload
		}
		results = append(results, res)

		if g.jsonOut {
			continue
		}
		heading.Fprintf(w, "== %s (%s)\n", p.Name, p.Kind)
		if err != nil {
			failure.Fprintf(w, "error: %v\n\n", err)
			continue
		}
		rep.render(w, g.rows)
		fmt.Fprintln(w)
	}

	if g.jsonOut {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d problems failed", failed, len(problems))
	}
	return nil
}
