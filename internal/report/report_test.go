package report

import (
	"strings"
	"testing"

	domain "tpower/domain/power"
	"tpower/internal/simulation"

	"github.com/stretchr/testify/assert"
)

func TestSummaryLines(t *testing.T) {
	one := domain.OneSampleResult{N: 34, DegreesOfFreedom: 33, Noncentrality: 2.9154759, CriticalValue: 2.0345153, Power: 0.8077775}
	assert.Equal(t, "n=34, Actual Power=0.8078, Critical t:2.0345, δ:2.9155", OneSampleSummary(one))

	two := domain.TwoSampleResult{N1: 26, N2: 26, Power: 0.8074866}
	assert.Equal(t, "n1=26, n2=26, Power=0.8075", TwoSampleSummary(two))
}

func TestMarkdownAndHTML(t *testing.T) {
	r := NewReport()
	assert.NotEmpty(t, r.ID)

	r.OneSample = &domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed}
	r.OneSampleResult = &domain.OneSampleResult{N: 34, DegreesOfFreedom: 33, Power: 0.8078, Tail: domain.TwoTailed}
	r.Simulation = &simulation.Result{Trials: 1000, EmpiricalPower: 0.81, StdErr: 0.012, AnalyticPower: 0.8078}
	r.Curve = []domain.CurvePoint{
		{N: 33, Evaluation: domain.Evaluation{DegreesOfFreedom: 32, Power: 0.7954}},
		{N: 34, Evaluation: domain.Evaluation{DegreesOfFreedom: 33, Power: 0.8078}},
	}
	r.PlotPath = "one_sample.png"

	md := string(r.Markdown())
	assert.Contains(t, md, "## One-sample t-test")
	assert.Contains(t, md, "| n | 34 |")
	assert.Contains(t, md, "| 33 | 32 | 0.7954 |")
	assert.Contains(t, md, "1000 trials")
	assert.NotContains(t, md, "Two-sample")

	html := string(r.HTML())
	assert.True(t, strings.Contains(html, "<table>"), "expected a rendered table")
	assert.Contains(t, html, "<h2")
	assert.Contains(t, html, `src="one_sample.png"`)
}
