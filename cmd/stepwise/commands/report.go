package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/plot/plotter"

	"github.com/copyleftdev/stepwise/internal/engine"
	"github.com/copyleftdev/stepwise/internal/optimization/onedim"
)

type status int

const (
	statusNone status = iota
	statusCompleted
	statusConverged
	statusNotConverged
)

// fact is one labelled summary line printed under the trace table.
type fact struct {
	label string
	value string
}

// report is a command result ready for either output format.
type report struct {
	// payload is encoded as-is in JSON mode.
	payload interface{}

	title  string
	header table.Row
	rows   []table.Row
	facts  []fact

	status     status
	iterations int

	// chart is drawn when --plot is set; nil when there is nothing to plot.
	chart *chart
}

func (r report) render(w io.Writer, maxRows int) {
	if len(r.header) > 0 {
		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.SetStyle(table.StyleLight)
		if r.title != "" {
			tbl.SetTitle(r.title)
		}
		tbl.AppendHeader(r.header)
		for _, row := range truncateRows(r.rows, maxRows, len(r.header)) {
			tbl.AppendRow(row)
		}
		tbl.AppendFooter(table.Row{"", fmt.Sprintf("%d rows", len(r.rows))})
		tbl.Render()
	}

	width := 0
	for _, f := range r.facts {
		if len(f.label) > width {
			width = len(f.label)
		}
	}
	for _, f := range r.facts {
		fmt.Fprintf(w, "%-*s  %s\n", width+1, f.label+":", f.value)
	}

	switch r.status {
	case statusCompleted:
		color.New(color.FgCyan).Fprintf(w, "completed in %d steps\n", r.iterations)
	case statusConverged:
		color.New(color.FgGreen, color.Bold).Fprintf(w, "converged after %d iterations\n", r.iterations)
	case statusNotConverged:
		color.New(color.FgYellow).Fprintf(w, "stopped after %d iterations without converging\n", r.iterations)
	}
}

// truncateRows keeps the first and last rows of a long trace with a marker
// row between them.
func truncateRows(rows []table.Row, maxRows, width int) []table.Row {
	if maxRows <= 0 || len(rows) <= maxRows {
		return rows
	}
	head := maxRows / 2
	tail := maxRows - head

	marker := make(table.Row, width)
	marker[0] = fmt.Sprintf("... %d more", len(rows)-maxRows)
	for i := 1; i < width; i++ {
		marker[i] = "..."
	}

	out := make([]table.Row, 0, maxRows+1)
	out = append(out, rows[:head]...)
	out = append(out, marker)
	return append(out, rows[len(rows)-tail:]...)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func vec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = num(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func convergence(converged bool) status {
	if converged {
		return statusConverged
	}
	return statusNotConverged
}

func bisectionReport(resp *engine.BisectionResponse) report {
	rows := make([]table.Row, len(resp.Steps))
	as, bs, cs := make([]float64, len(resp.Steps)), make([]float64, len(resp.Steps)), make([]float64, len(resp.Steps))
	for i, s := range resp.Steps {
		rows[i] = table.Row{i + 1, num(s.A), num(s.B), num(s.C)}
		as[i], bs[i], cs[i] = s.A, s.B, s.C
	}
	return report{
		chart: &chart{
			title: "Bisection", xLabel: "step", yLabel: "x",
			lines: []series{{"a", byStep(as, 1)}, {"b", byStep(bs, 1)}, {"c", byStep(cs, 1)}},
		},
		payload:    resp,
		title:      "Bisection",
		header:     table.Row{"#", "a", "b", "c"},
		rows:       rows,
		facts:      []fact{{"root", num(resp.Root)}},
		status:     statusCompleted,
		iterations: resp.Iterations,
	}
}

func goldenReport(resp *onedim.GoldenResult) report {
	rows := make([]table.Row, len(resp.Steps))
	as, cs, xs := make([]float64, len(resp.Steps)), make([]float64, len(resp.Steps)), make([]float64, len(resp.Steps))
	for i, s := range resp.Steps {
		rows[i] = table.Row{i + 1, num(s.A), num(s.B), num(s.C), num(s.X), num(s.FX)}
		as[i], cs[i], xs[i] = s.NewA, s.NewC, s.X
	}
	return report{
		chart: &chart{
			title: "Golden-section search", xLabel: "step", yLabel: "x",
			lines: []series{{"a", byStep(as, 1)}, {"c", byStep(cs, 1)}, {"x", byStep(xs, 1)}},
		},
		payload: resp,
		title:   "Golden-section search",
		header:  table.Row{"#", "a", "b", "c", "x", "f(x)"},
		rows:    rows,
		facts: []fact{
			{"minimum", num(resp.Minimum)},
			{"objective", num(resp.Objective)},
		},
		status:     convergence(resp.Converged),
		iterations: resp.Iterations,
	}
}

func newtonRaphsonReport(resp *engine.NewtonRaphsonResponse) report {
	rows := make([]table.Row, len(resp.Steps))
	xs := make([]float64, len(resp.Steps))
	for i, s := range resp.Steps {
		rows[i] = table.Row{i + 1, num(s.X0), num(s.X1)}
		xs[i] = s.X1
	}
	facts := []fact{{"root", num(resp.Root)}}
	if resp.Derivative != "" {
		facts = append(facts, fact{"derivative", resp.Derivative})
	}
	return report{
		chart: &chart{
			title: "Newton-Raphson", xLabel: "step", yLabel: "x",
			lines: []series{{"x1", byStep(xs, 1)}},
		},
		payload:    resp,
		title:      "Newton-Raphson",
		header:     table.Row{"#", "x0", "x1"},
		rows:       rows,
		facts:      facts,
		status:     statusCompleted,
		iterations: resp.Iterations,
	}
}

func secantReport(resp *engine.SecantResponse) report {
	rows := make([]table.Row, len(resp.Steps))
	xs := make([]float64, len(resp.Steps))
	for i, s := range resp.Steps {
		rows[i] = table.Row{i + 1, num(s.X0), num(s.X1), num(s.X2)}
		xs[i] = s.X2
	}
	return report{
		chart: &chart{
			title: "Secant", xLabel: "step", yLabel: "x",
			lines: []series{{"x2", byStep(xs, 1)}},
		},
		payload:    resp,
		title:      "Secant",
		header:     table.Row{"#", "x0", "x1", "x2"},
		rows:       rows,
		facts:      []fact{{"root", num(resp.Root)}},
		status:     statusCompleted,
		iterations: resp.Iterations,
	}
}

func optimizeReport(title string, resp *engine.OptimizeResponse) report {
	rows := make([]table.Row, len(resp.Path))
	for i, x := range resp.Path {
		rows[i] = table.Row{i, vec(x), num(resp.Values[i])}
	}
	facts := []fact{
		{"variables", strings.Join(resp.Variables, ", ")},
		{"xmin", vec(resp.XMin)},
		{"fmin", num(resp.FMin)},
		{"gradient", resp.GradientExpression},
	}
	if resp.HessianExpression != "" {
		facts = append(facts, fact{"hessian", resp.HessianExpression})
	}
	if resp.StepSize != 0 {
		facts = append(facts, fact{"step size", num(resp.StepSize)})
	}
	c := &chart{
		title: title, xLabel: "iteration", yLabel: "f(x)",
		lines: []series{{"f(x)", byStep(resp.Values, 0)}},
	}
	if len(resp.Variables) == 2 {
		xs, ys := make([]float64, len(resp.Path)), make([]float64, len(resp.Path))
		for i, x := range resp.Path {
			xs[i], ys[i] = x[0], x[1]
		}
		c = &chart{
			title: title, xLabel: resp.Variables[0], yLabel: resp.Variables[1],
			lines: []series{{"path", xy(xs, ys)}},
		}
	}
	return report{
		chart:      c,
		payload:    resp,
		title:      title,
		header:     table.Row{"#", "x", "f(x)"},
		rows:       rows,
		facts:      facts,
		status:     convergence(resp.Converged),
		iterations: resp.Iterations,
	}
}

// mixtureReport summarises the final EM snapshot. points are the fitted
// data; they are only needed for the chart.
func mixtureReport(resp *engine.MixtureResponse, points [][]float64) report {
	if len(resp.History) == 0 {
		return report{payload: resp, status: convergence(resp.Converged)}
	}
	final := resp.History[len(resp.History)-1]
	rows := make([]table.Row, len(final.Weights))
	for k := range final.Weights {
		row := table.Row{k + 1, num(final.Weights[k]), vec(final.Means[k])}
		if len(final.Ellipses) > 0 {
			e := final.Ellipses[k]
			row = append(row, fmt.Sprintf("%s x %s @ %s rad", num(e.Major), num(e.Minor), num(e.Angle)))
		} else {
			row = append(row, "")
		}
		rows[k] = row
	}
	facts := []fact{
		{"components", strconv.Itoa(resp.K)},
		{"points", strconv.Itoa(len(final.Assignments))},
		{"log-likelihood", num(final.LogLikelihood)},
	}
	for _, c := range resp.Candidates {
		facts = append(facts, fact{fmt.Sprintf("bic k=%d", c.K), num(c.BIC)})
	}
	for i, r := range resp.Classified {
		facts = append(facts, fact{fmt.Sprintf("classify %d", i+1), vec(r)})
	}
	return report{
		chart:      mixtureChart(final, points),
		payload:    resp,
		title:      "Gaussian mixture",
		header:     table.Row{"component", "weight", "mean", "2-sigma ellipse"},
		rows:       rows,
		facts:      facts,
		status:     convergence(resp.Converged),
		iterations: resp.Iterations,
	}
}

func derivativeReport(resp *engine.DifferentiateResponse) report {
	facts := []fact{
		{"expression", resp.Expression},
		{"variable", resp.Variable},
		{"derivative", resp.Derivative},
	}
	if resp.Value != nil {
		facts = append(facts, fact{"value", num(float64(*resp.Value))})
	}
	return report{payload: resp, facts: facts}
}

func interpolateReport(resp *engine.InterpolateResponse) report {
	rows := make([]table.Row, len(resp.Points))
	xs, ys := make([]float64, len(resp.Points)), make([]float64, len(resp.Points))
	for i, p := range resp.Points {
		rows[i] = table.Row{i + 1, num(p.X), num(float64(p.Y)), num(float64(p.Derivative))}
		xs[i], ys[i] = p.X, float64(p.Y)
	}
	return report{
		chart: &chart{
			title: "Interpolant (" + string(resp.Kind) + ")", xLabel: "x", yLabel: "y",
			lines: []series{{"", xy(xs, ys)}},
		},
		payload: resp,
		title:   "Interpolant (" + string(resp.Kind) + ")",
		header:  table.Row{"#", "x", "y", "dy/dx"},
		rows:    rows,
		facts:   []fact{{"domain", vec(resp.Domain[:])}},
	}
}

// mixtureChart scatters 2-D points coloured by their final component with
// the component means on top. Other dimensions have no chart.
func mixtureChart(final engine.MixtureSnapshot, points [][]float64) *chart {
	if len(points) == 0 || len(points[0]) != 2 || len(points) != len(final.Assignments) {
		return nil
	}
	c := &chart{title: "Gaussian mixture", xLabel: "x", yLabel: "y"}
	groups := make([]plotter.XYs, len(final.Weights))
	for i, p := range points {
		k := final.Assignments[i]
		groups[k] = append(groups[k], plotter.XY{X: p[0], Y: p[1]})
	}
	for k, g := range groups {
		c.points = append(c.points, series{fmt.Sprintf("component %d", k+1), g})
	}
	means := make(plotter.XYs, 0, len(final.Means))
	for _, m := range final.Means {
		means = append(means, plotter.XY{X: m[0], Y: m[1]})
	}
	c.points = append(c.points, series{"means", means})
	return c
}
