package commands

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrNoChart is returned when --plot is used with a command that has
// nothing to draw.
var ErrNoChart = errors.New("this command has no plot")

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

type series struct {
	name string
	xy   plotter.XYs
}

// chart is a plot of a result. Lines are drawn with markers, scatters
// with markers only.
type chart struct {
	title  string
	xLabel string
	yLabel string
	lines  []series
	points []series
}

// save renders the chart. The file extension selects the format (png,
// svg, pdf, ...).
func (c *chart) save(path string) error {
	p := plot.New()
	p.Title.Text = c.title
	p.X.Label.Text = c.xLabel
	p.Y.Label.Text = c.yLabel
	p.Add(plotter.NewGrid())

	for i, s := range c.lines {
		if len(s.xy) == 0 {
			continue
		}
		l, pts, err := plotter.NewLinePoints(s.xy)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", s.name, err)
		}
		l.LineStyle.Color = plotutil.Color(i)
		pts.GlyphStyle.Color = plotutil.Color(i)
		pts.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(l, pts)
		if s.name != "" {
			p.Legend.Add(s.name, l, pts)
		}
	}
	for i, s := range c.points {
		if len(s.xy) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.xy)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", s.name, err)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(sc)
		if s.name != "" {
			p.Legend.Add(s.name, sc)
		}
	}

	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}

// plotPathFor derives one file per problem from the --plot path:
// out.png becomes out-<name>.png.
func plotPathFor(base, name string) string {
	ext := filepath.Ext(base)
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '-'
		}
		return r
	}, name)
	return strings.TrimSuffix(base, ext) + "-" + safe + ext
}

// xy pairs xs with ys, dropping pairs that are not finite.
func xy(xs, ys []float64) plotter.XYs {
	out := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if finite(xs[i]) && finite(ys[i]) {
			out = append(out, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	return out
}

// byStep plots ys against their index.
func byStep(ys []float64, from int) plotter.XYs {
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i + from)
	}
	return xy(xs, ys)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
