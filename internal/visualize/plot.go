package visualize

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	domain "tpower/domain/power"
	"tpower/internal/distributions"
	"tpower/internal/errors"
)

// PlotSpec is everything the renderer needs from a finished search
type PlotSpec struct {
	DegreesOfFreedom int
	Noncentrality    float64
	CriticalValue    float64
	Tail             domain.TailMode
	XMin, XMax       float64
	Title            string
	Samples          int // points per curve
}

var (
	nullColor        = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	alternativeColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rejectionFill    = color.RGBA{R: 214, G: 39, B: 40, A: 51}
	betaFill         = color.RGBA{R: 31, G: 119, B: 180, A: 51}
	criticalColor    = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// OneSampleSpec builds the plot spec for a one-sample result on [-8, 8]
func OneSampleSpec(res domain.OneSampleResult) PlotSpec {
	return PlotSpec{
		DegreesOfFreedom: res.DegreesOfFreedom,
		Noncentrality:    res.Noncentrality,
		CriticalValue:    res.CriticalValue,
		Tail:             res.Tail,
		XMin:             -8,
		XMax:             8,
		Title:            fmt.Sprintf("t_alpha=%.3f", res.CriticalValue),
	}
}

// TwoSampleSpec builds the plot spec for a two-sample result on [-4, 8]
func TwoSampleSpec(res domain.TwoSampleResult, d float64) PlotSpec {
	return PlotSpec{
		DegreesOfFreedom: res.DegreesOfFreedom,
		Noncentrality:    res.Noncentrality,
		CriticalValue:    res.CriticalValue,
		Tail:             res.Tail,
		XMin:             -4,
		XMax:             8,
		Title: fmt.Sprintf("df=%d, t_alpha/2=%.3f, (n1,n2)=(%d, %d), d=%g",
			res.DegreesOfFreedom, res.CriticalValue, res.N1, res.N2, d),
	}
}

func (s PlotSpec) validate() error {
	if s.DegreesOfFreedom < 1 {
		return errors.InvalidInput(fmt.Sprintf("cannot plot t-distribution with df=%d", s.DegreesOfFreedom))
	}
	if !s.Tail.IsValid() {
		return errors.InvalidEnum(fmt.Sprintf("unknown tail mode %q", string(s.Tail)))
	}
	if !(s.XMax > s.XMin) {
		return errors.InvalidInput(fmt.Sprintf("empty x range [%g, %g]", s.XMin, s.XMax))
	}
	if math.IsNaN(s.CriticalValue) || math.IsInf(s.CriticalValue, 0) {
		return errors.InvalidInput("critical value must be finite")
	}
	return nil
}

// Render draws the central t density (null hypothesis), the noncentral t
// density (alternative), the rejection region under the null, the type II
// error region under the alternative and a marker at the critical value.
func Render(spec PlotSpec) (*plot.Plot, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	samples := spec.Samples
	if samples <= 0 {
		samples = 200
	}

	nu := float64(spec.DegreesOfFreedom)
	central := distributions.StudentsT{Nu: nu}.Prob
	noncentral := distributions.NoncentralT{Nu: nu, Delta: spec.Noncentrality}.Prob
	tc := spec.CriticalValue
	lo, hi := spec.XMin, spec.XMax

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "P(x)"
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min = 0
	p.Legend.Top = true

	// Shaded regions first so the curves draw on top.
	var rejection, beta [][2]float64
	switch spec.Tail {
	case domain.TwoTailed:
		rejection = [][2]float64{{lo, -math.Abs(tc)}, {math.Abs(tc), hi}}
		beta = [][2]float64{{lo, math.Abs(tc)}}
	case domain.UpperOneTailed:
		rejection = [][2]float64{{tc, hi}}
		beta = [][2]float64{{lo, tc}}
	case domain.LowerOneTailed:
		rejection = [][2]float64{{lo, tc}}
		beta = [][2]float64{{tc, hi}}
	}
	for _, r := range rejection {
		if err := addArea(p, central, r[0], r[1], samples, rejectionFill); err != nil {
			return nil, err
		}
	}
	for _, r := range beta {
		if err := addArea(p, noncentral, r[0], r[1], samples, betaFill); err != nil {
			return nil, err
		}
	}

	nullLine, err := plotter.NewLine(sample(central, lo, hi, samples))
	if err != nil {
		return nil, errors.Wrap(err, "building null density")
	}
	nullLine.LineStyle.Color = nullColor
	nullLine.LineStyle.Width = vg.Points(1.5)

	altLine, err := plotter.NewLine(sample(noncentral, lo, hi, samples))
	if err != nil {
		return nil, errors.Wrap(err, "building alternative density")
	}
	altLine.LineStyle.Color = alternativeColor
	altLine.LineStyle.Width = vg.Points(1.5)
	altLine.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	top := math.Max(central(0), peak(noncentral, lo, hi, samples))
	marker, err := plotter.NewLine(plotter.XYs{{X: tc, Y: 0}, {X: tc, Y: top * 1.05}})
	if err != nil {
		return nil, errors.Wrap(err, "building critical value marker")
	}
	marker.LineStyle.Color = criticalColor

	p.Add(nullLine, altLine, marker)
	p.Legend.Add("t", nullLine)
	p.Legend.Add("noncentral t", altLine)
	p.Legend.Add("t_a point", marker)
	return p, nil
}

// Save renders spec and writes it to path; the extension picks the format (png, svg, pdf)
func Save(spec PlotSpec, path string) error {
	p, err := Render(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating plot directory for %s", path)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}

// Write renders spec in the given format ("png", "svg", ...) to w
func Write(spec PlotSpec, format string, w io.Writer) error {
	p, err := Render(spec)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, strings.ToLower(format))
	if err != nil {
		return errors.Wrapf(err, "unsupported plot format %q", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing plot")
	}
	return nil
}

// PNG renders spec to PNG bytes
func PNG(spec PlotSpec) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(spec, "png", &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName builds a plot file name inside dir
func FileName(dir, stem, format string) string {
	return filepath.Join(dir, stem+"."+strings.TrimPrefix(format, "."))
}

func addArea(p *plot.Plot, density func(float64) float64, from, to float64, samples int, fill color.Color) error {
	from = math.Max(from, p.X.Min)
	to = math.Min(to, p.X.Max)
	if !(to > from) {
		return nil
	}
	pts := sample(density, from, to, samples)
	pts = append(pts, plotter.XY{X: to, Y: 0}, plotter.XY{X: from, Y: 0})
	poly, err := plotter.NewPolygon(pts)
	if err != nil {
		return errors.Wrap(err, "building shaded region")
	}
	poly.Color = fill
	poly.LineStyle.Color = color.Gray{Y: 128}
	poly.LineStyle.Width = vg.Points(0.5)
	p.Add(poly)
	return nil
}

func sample(f func(float64) float64, from, to float64, n int) plotter.XYs {
	if n < 2 {
		n = 2
	}
	pts := make(plotter.XYs, 0, n)
	step := (to - from) / float64(n-1)
	for i := 0; i < n; i++ {
		x := from + float64(i)*step
		y := f(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			y = 0
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}

func peak(f func(float64) float64, from, to float64, n int) float64 {
	best := 0.0
	for _, pt := range sample(f, from, to, n) {
		best = math.Max(best, pt.Y)
	}
	return best
}
