package distributions

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// StudentsT is the central Student's t-distribution with Nu degrees of freedom.
// Nu < 1 is treated as a degenerate distribution whose quantiles sit at ±Inf, so
// a search starting at n = 1 sees an empty rejection region instead of NaN.
type StudentsT struct {
	Nu float64
}

func (t StudentsT) dist() distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: t.Nu}
}

func (t StudentsT) degenerate() bool {
	return !(t.Nu >= 1)
}

// Quantile returns the p-quantile (inverse CDF)
func (t StudentsT) Quantile(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0 || p > 1:
		return math.NaN()
	case p == 0:
		return math.Inf(-1)
	case p == 1:
		return math.Inf(1)
	}
	if math.IsInf(t.Nu, 1) {
		return distuv.UnitNormal.Quantile(p)
	}
	if t.degenerate() {
		switch {
		case p > 0.5:
			return math.Inf(1)
		case p < 0.5:
			return math.Inf(-1)
		}
		return 0
	}
	return t.dist().Quantile(p)
}

// CDF returns P(T <= x)
func (t StudentsT) CDF(x float64) float64 {
	switch {
	case math.IsInf(x, 1):
		return 1
	case math.IsInf(x, -1):
		return 0
	}
	if math.IsInf(t.Nu, 1) {
		return distuv.UnitNormal.CDF(x)
	}
	if t.degenerate() {
		return math.NaN()
	}
	return t.dist().CDF(x)
}

// Prob returns the density at x
func (t StudentsT) Prob(x float64) float64 {
	if math.IsInf(t.Nu, 1) {
		return distuv.UnitNormal.Prob(x)
	}
	if t.degenerate() {
		return math.NaN()
	}
	return t.dist().Prob(x)
}
