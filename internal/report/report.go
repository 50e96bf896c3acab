package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/google/uuid"

	domain "tpower/domain/power"
	"tpower/internal/simulation"
)

// OneSampleSummary formats the console line for a one-sample result
func OneSampleSummary(res domain.OneSampleResult) string {
	return fmt.Sprintf("n=%d, Actual Power=%.4f, Critical t:%.4f, δ:%.4f",
		res.N, res.Power, res.CriticalValue, res.Noncentrality)
}

// TwoSampleSummary formats the console line for a two-sample result
func TwoSampleSummary(res domain.TwoSampleResult) string {
	return fmt.Sprintf("n1=%d, n2=%d, Power=%.4f", res.N1, res.N2, res.Power)
}

// Report collects everything known about one power analysis
type Report struct {
	ID          string
	GeneratedAt time.Time

	OneSample       *domain.TestConfiguration
	OneSampleResult *domain.OneSampleResult

	TwoSample       *domain.TwoSampleConfiguration
	TwoSampleResult *domain.TwoSampleResult

	Curve      []domain.CurvePoint
	Simulation *simulation.Result
	PlotPath   string
}

// NewReport creates an empty report stamped with a fresh ID
func NewReport() *Report {
	return &Report{ID: uuid.New().String(), GeneratedAt: time.Now().UTC()}
}

// Markdown renders the report as a Markdown document
func (r *Report) Markdown() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Sample size report\n\n")
	fmt.Fprintf(&b, "Report `%s`, generated %s.\n\n", r.ID, r.GeneratedAt.Format(time.RFC3339))

	if r.OneSample != nil && r.OneSampleResult != nil {
		cfg, res := r.OneSample, r.OneSampleResult
		fmt.Fprintf(&b, "## One-sample t-test\n\n")
		fmt.Fprintf(&b, "| Parameter | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Tail | %s |\n", cfg.Tail)
		fmt.Fprintf(&b, "| α | %g |\n", cfg.Alpha)
		fmt.Fprintf(&b, "| Target power | %g |\n", cfg.PowerTarget)
		fmt.Fprintf(&b, "| Effect size d | %g |\n", cfg.EffectSize)
		fmt.Fprintf(&b, "| n | %d |\n", res.N)
		fmt.Fprintf(&b, "| df | %d |\n", res.DegreesOfFreedom)
		fmt.Fprintf(&b, "| δ | %.4f |\n", res.Noncentrality)
		fmt.Fprintf(&b, "| Critical t | %.4f |\n", res.CriticalValue)
		fmt.Fprintf(&b, "| Achieved power | %.4f |\n\n", res.Power)
		fmt.Fprintf(&b, "`%s`\n\n", OneSampleSummary(*res))
	}

	if r.TwoSample != nil && r.TwoSampleResult != nil {
		cfg, res := r.TwoSample, r.TwoSampleResult
		fmt.Fprintf(&b, "## Two-sample t-test\n\n")
		fmt.Fprintf(&b, "| Parameter | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Tail | %s |\n", res.Tail)
		fmt.Fprintf(&b, "| α | %g |\n", cfg.Alpha)
		fmt.Fprintf(&b, "| Target power | %g |\n", cfg.PowerTarget)
		fmt.Fprintf(&b, "| Effect size d | %g |\n", cfg.EffectSize)
		fmt.Fprintf(&b, "| Ratio n1/n2 | %g |\n", cfg.Ratio)
		fmt.Fprintf(&b, "| n1, n2 | %d, %d |\n", res.N1, res.N2)
		fmt.Fprintf(&b, "| df | %d |\n", res.DegreesOfFreedom)
		fmt.Fprintf(&b, "| δ | %.4f |\n", res.Noncentrality)
		fmt.Fprintf(&b, "| Critical t | %.4f |\n", res.CriticalValue)
		fmt.Fprintf(&b, "| Achieved power | %.4f |\n\n", res.Power)
		fmt.Fprintf(&b, "`%s`\n\n", TwoSampleSummary(*res))
	}

	if r.Simulation != nil {
		s := r.Simulation
		fmt.Fprintf(&b, "## Monte Carlo check\n\n")
		fmt.Fprintf(&b, "%d trials, empirical power %.4f ± %.4f (analytic %.4f).\n\n",
			s.Trials, s.EmpiricalPower, 1.96*s.StdErr, s.AnalyticPower)
	}

	if len(r.Curve) > 0 {
		fmt.Fprintf(&b, "## Power curve\n\n")
		twoSample := r.Curve[0].N2 > 0
		if twoSample {
			fmt.Fprintf(&b, "| n1 | n2 | df | Power |\n|---|---|---|---|\n")
		} else {
			fmt.Fprintf(&b, "| n | df | Power |\n|---|---|---|\n")
		}
		for _, p := range r.Curve {
			if twoSample {
				fmt.Fprintf(&b, "| %d | %d | %d | %.4f |\n", p.N, p.N2, p.DegreesOfFreedom, p.Power)
			} else {
				fmt.Fprintf(&b, "| %d | %d | %.4f |\n", p.N, p.DegreesOfFreedom, p.Power)
			}
		}
		b.WriteString("\n")
	}

	if r.PlotPath != "" {
		fmt.Fprintf(&b, "![distributions](%s)\n", r.PlotPath)
	}
	return b.Bytes()
}

// HTML renders the Markdown report to an HTML fragment
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	return markdown.ToHTML(r.Markdown(), p, nil)
}
