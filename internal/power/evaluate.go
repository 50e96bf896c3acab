package power

import (
	"fmt"
	"math"

	domain "tpower/domain/power"
	"tpower/internal/distributions"
	"tpower/internal/errors"
)

// Evaluate computes the critical value and power of a t-test with df degrees of
// freedom and noncentrality delta. In lower-one-tailed mode delta is forced
// negative and the returned Evaluation carries the negated value.
//
// df < 1 has no usable t-distribution: the rejection region is empty, so the
// critical value is returned as ±Inf and the power as 0.
func Evaluate(tail domain.TailMode, alpha float64, df int, delta float64) (domain.Evaluation, error) {
	eval := domain.Evaluation{DegreesOfFreedom: df, Noncentrality: delta}

	switch tail {
	case domain.TwoTailed:
		if df < 1 {
			eval.CriticalValue = math.Inf(1)
			return eval, nil
		}
		nu := float64(df)
		nct := distributions.NoncentralT{Nu: nu, Delta: delta}
		eval.CriticalValue = distributions.StudentsT{Nu: nu}.Quantile(1 - alpha/2)
		eval.Power = 1 - nct.CDF(eval.CriticalValue) + nct.CDF(-eval.CriticalValue)

	case domain.UpperOneTailed:
		if df < 1 {
			eval.CriticalValue = math.Inf(1)
			return eval, nil
		}
		nu := float64(df)
		eval.CriticalValue = distributions.StudentsT{Nu: nu}.Quantile(1 - alpha)
		eval.Power = distributions.NoncentralT{Nu: nu, Delta: delta}.Survival(eval.CriticalValue)

	case domain.LowerOneTailed:
		eval.Noncentrality = -math.Abs(delta)
		if df < 1 {
			eval.CriticalValue = math.Inf(-1)
			return eval, nil
		}
		nu := float64(df)
		eval.CriticalValue = distributions.StudentsT{Nu: nu}.Quantile(alpha)
		eval.Power = distributions.NoncentralT{Nu: nu, Delta: eval.Noncentrality}.CDF(eval.CriticalValue)

	default:
		return eval, errors.InvalidEnum(fmt.Sprintf("unknown tail mode %q", string(tail)))
	}

	if math.IsNaN(eval.Power) {
		return eval, errors.InternalError(fmt.Sprintf("power evaluated to NaN at df=%d delta=%g", df, delta))
	}
	return eval, nil
}

// OneSampleNoncentrality returns d·√n
func OneSampleNoncentrality(d float64, n int) float64 {
	return d * math.Sqrt(float64(n))
}

// TwoSampleNoncentrality returns d·√(n1·n2/(n1+n2))
func TwoSampleNoncentrality(d float64, n1, n2 int) float64 {
	if n1+n2 == 0 {
		return 0
	}
	return d * math.Sqrt(float64(n1)*float64(n2)/float64(n1+n2))
}

// GroupSize derives n2 = round(n1·ratio), rounding half to even
func GroupSize(n1 int, ratio float64) int {
	return int(math.RoundToEven(float64(n1) * ratio))
}

// PowerOneSample evaluates a one-sample t-test of size n
func PowerOneSample(alpha, d float64, n int, tail domain.TailMode) (domain.Evaluation, error) {
	if err := validateCommon(alpha, 0.5, d, tail); err != nil {
		return domain.Evaluation{}, err
	}
	if n < 1 {
		return domain.Evaluation{}, errors.ValidationError(fmt.Sprintf("sample size must be >= 1, got %d", n))
	}
	return Evaluate(tail, alpha, n-1, OneSampleNoncentrality(d, n))
}

// PowerTwoSample evaluates an independent two-sample t-test with group sizes n1 and n2
func PowerTwoSample(alpha, d float64, n1, n2 int, tail domain.TailMode) (domain.Evaluation, error) {
	if err := validateCommon(alpha, 0.5, d, tail); err != nil {
		return domain.Evaluation{}, err
	}
	if n1 < 1 || n2 < 1 {
		return domain.Evaluation{}, errors.ValidationError(fmt.Sprintf("group sizes must be >= 1, got n1=%d n2=%d", n1, n2))
	}
	return Evaluate(tail, alpha, n1+n2-2, TwoSampleNoncentrality(d, n1, n2))
}
