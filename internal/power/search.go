package power

import (
	"context"
	"fmt"
	"math"
	"time"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/errors"
	"tpower/ports"
)

// cancelCheckInterval is how many candidates a search evaluates between context checks
const cancelCheckInterval = 256

// Calculator runs sample-size searches. It holds no search state; every call
// recomputes df, delta, the critical value and power from scratch per trial n.
type Calculator struct {
	logger   *internal.Logger
	observer ports.SearchObserver
}

// NewCalculator creates a calculator that logs through the default logger
func NewCalculator() *Calculator {
	return &Calculator{logger: internal.DefaultLogger.With("power")}
}

// WithObserver returns a copy of the calculator reporting every finished search to obs
func (c *Calculator) WithObserver(obs ports.SearchObserver) *Calculator {
	return &Calculator{logger: c.logger, observer: obs}
}

// WithLogger returns a copy of the calculator using logger
func (c *Calculator) WithLogger(logger *internal.Logger) *Calculator {
	return &Calculator{logger: logger, observer: c.observer}
}

// SearchOneSample finds the smallest n whose one-sample t-test power reaches cfg.PowerTarget
func (c *Calculator) SearchOneSample(cfg domain.TestConfiguration) (domain.OneSampleResult, error) {
	return c.SearchOneSampleContext(context.Background(), cfg)
}

// SearchOneSampleContext is SearchOneSample, abandoned with CANCELLED once ctx ends
func (c *Calculator) SearchOneSampleContext(ctx context.Context, cfg domain.TestConfiguration) (domain.OneSampleResult, error) {
	start := time.Now()
	res, err := c.searchOneSample(ctx, cfg)
	c.observe(ports.SearchOneSample, cfg.Tail, res.Iterations, start, err)
	return res, err
}

func (c *Calculator) searchOneSample(ctx context.Context, cfg domain.TestConfiguration) (domain.OneSampleResult, error) {
	if err := validateCommon(cfg.Alpha, cfg.PowerTarget, cfg.EffectSize, cfg.Tail); err != nil {
		return domain.OneSampleResult{Tail: cfg.Tail}, errors.Wrap(err, "invalid one-sample configuration")
	}
	if err := checkReachable(cfg.Alpha, cfg.PowerTarget, cfg.EffectSize, cfg.Tail); err != nil {
		return domain.OneSampleResult{Tail: cfg.Tail}, err
	}

	limit := cfg.Cap()
	decreasing := powerDecreases(cfg.EffectSize, cfg.Tail)
	var last domain.Evaluation
	for n := 1; n <= limit; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return domain.OneSampleResult{Tail: cfg.Tail, Iterations: n - 1, Power: last.Power}, errors.Cancelled(err)
			}
		}
		eval, err := Evaluate(cfg.Tail, cfg.Alpha, n-1, OneSampleNoncentrality(cfg.EffectSize, n))
		if err != nil {
			return domain.OneSampleResult{Tail: cfg.Tail, Iterations: n}, errors.Wrapf(err, "evaluating n=%d", n)
		}
		c.logger.Trace("n=%d df=%d delta=%.4f t=%.4f power=%.6f", n, eval.DegreesOfFreedom, eval.Noncentrality, eval.CriticalValue, eval.Power)
		if eval.Power >= cfg.PowerTarget {
			return domain.OneSampleResult{
				N:                n,
				DegreesOfFreedom: eval.DegreesOfFreedom,
				Noncentrality:    eval.Noncentrality,
				CriticalValue:    eval.CriticalValue,
				Power:            eval.Power,
				Tail:             cfg.Tail,
				Iterations:       n,
			}, nil
		}
		last = eval
		if decreasing && eval.DegreesOfFreedom >= 1 {
			return domain.OneSampleResult{Tail: cfg.Tail, Iterations: n, Power: eval.Power}, decreasingPower(eval.Power, cfg.PowerTarget, cfg.EffectSize)
		}
	}

	return domain.OneSampleResult{Tail: cfg.Tail, Iterations: limit, Power: last.Power},
		errors.NonConvergent(fmt.Sprintf("power %.4f at n=%d is still below target %.4f", last.Power, limit, cfg.PowerTarget))
}

// SearchTwoSample finds the smallest n1 (with n2 = round(n1·ratio)) whose
// two-sample t-test power reaches cfg.PowerTarget
func (c *Calculator) SearchTwoSample(cfg domain.TwoSampleConfiguration) (domain.TwoSampleResult, error) {
	return c.SearchTwoSampleContext(context.Background(), cfg)
}

// SearchTwoSampleContext is SearchTwoSample, abandoned with CANCELLED once ctx ends
func (c *Calculator) SearchTwoSampleContext(ctx context.Context, cfg domain.TwoSampleConfiguration) (domain.TwoSampleResult, error) {
	start := time.Now()
	res, err := c.searchTwoSample(ctx, cfg)
	c.observe(ports.SearchTwoSample, cfg.TailOrDefault(), res.Iterations, start, err)
	return res, err
}

func (c *Calculator) searchTwoSample(ctx context.Context, cfg domain.TwoSampleConfiguration) (domain.TwoSampleResult, error) {
	tail := cfg.TailOrDefault()
	if err := validateCommon(cfg.Alpha, cfg.PowerTarget, cfg.EffectSize, tail); err != nil {
		return domain.TwoSampleResult{Tail: tail}, errors.Wrap(err, "invalid two-sample configuration")
	}
	if !(cfg.Ratio > 0) || math.IsInf(cfg.Ratio, 0) {
		return domain.TwoSampleResult{Tail: tail}, errors.ValidationError(fmt.Sprintf("ratio n1/n2 must be a positive finite number, got %g", cfg.Ratio))
	}
	if err := checkReachable(cfg.Alpha, cfg.PowerTarget, cfg.EffectSize, tail); err != nil {
		return domain.TwoSampleResult{Tail: tail}, err
	}

	limit := cfg.Cap()
	decreasing := powerDecreases(cfg.EffectSize, tail)
	iterations := 0
	var last domain.Evaluation
	for n1 := 2; n1 <= limit; n1++ {
		if iterations > 0 && iterations%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return domain.TwoSampleResult{Tail: tail, Iterations: iterations, Power: last.Power}, errors.Cancelled(err)
			}
		}
		iterations++
		n2 := GroupSize(n1, cfg.Ratio)
		if n2 < 1 || n1+n2-2 < 1 {
			continue
		}
		eval, err := Evaluate(tail, cfg.Alpha, n1+n2-2, TwoSampleNoncentrality(cfg.EffectSize, n1, n2))
		if err != nil {
			return domain.TwoSampleResult{Tail: tail, Iterations: iterations}, errors.Wrapf(err, "evaluating n1=%d n2=%d", n1, n2)
		}
		c.logger.Trace("n1=%d n2=%d df=%d delta=%.4f t=%.4f power=%.6f", n1, n2, eval.DegreesOfFreedom, eval.Noncentrality, eval.CriticalValue, eval.Power)
		if eval.Power >= cfg.PowerTarget {
			return domain.TwoSampleResult{
				N1:               n1,
				N2:               n2,
				DegreesOfFreedom: eval.DegreesOfFreedom,
				Noncentrality:    eval.Noncentrality,
				CriticalValue:    eval.CriticalValue,
				Power:            eval.Power,
				Tail:             tail,
				Iterations:       iterations,
			}, nil
		}
		last = eval
		if decreasing {
			return domain.TwoSampleResult{Tail: tail, Iterations: iterations, Power: eval.Power}, decreasingPower(eval.Power, cfg.PowerTarget, cfg.EffectSize)
		}
	}

	return domain.TwoSampleResult{Tail: tail, Iterations: iterations, Power: last.Power},
		errors.NonConvergent(fmt.Sprintf("power %.4f at n1=%d is still below target %.4f", last.Power, limit, cfg.PowerTarget))
}

func (c *Calculator) observe(kind ports.SearchKind, tail domain.TailMode, iterations int, start time.Time, err error) {
	elapsed := time.Since(start)
	if errors.HasCode(err, errors.CodeCancelled) {
		c.logger.Debug("%s search cancelled after %d iterations", kind, iterations)
	} else if err != nil {
		c.logger.Warn("%s search failed after %d iterations: %v", kind, iterations, err)
	} else {
		c.logger.Debug("%s search finished in %d iterations (%s)", kind, iterations, elapsed)
	}
	if c.observer != nil {
		c.observer.ObserveSearch(kind, tail, iterations, elapsed, err)
	}
}

// validateCommon rejects parameters the search cannot converge on or that are meaningless
func validateCommon(alpha, target, d float64, tail domain.TailMode) error {
	if !tail.IsValid() {
		return errors.InvalidEnum(fmt.Sprintf("unknown tail mode %q", string(tail)))
	}
	if !(alpha > 0 && alpha < 1) {
		return errors.ValidationError(fmt.Sprintf("alpha must be in (0,1), got %g", alpha))
	}
	if !(target > 0 && target < 1) {
		return errors.ValidationError(fmt.Sprintf("target power must be in (0,1), got %g", target))
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return errors.ValidationError(fmt.Sprintf("effect size must be finite, got %g", d))
	}
	return nil
}

// checkReachable short-circuits configurations whose power never exceeds alpha
// for any n: d = 0, and an upper-tailed test of a negative effect.
func checkReachable(alpha, target, d float64, tail domain.TailMode) error {
	if target <= alpha {
		return nil
	}
	if d == 0 {
		return errors.NonConvergent(fmt.Sprintf("effect size 0 caps power at alpha=%g, below target %g", alpha, target))
	}
	if tail == domain.UpperOneTailed && d < 0 {
		return errors.NonConvergent(fmt.Sprintf("upper-one-tailed test of negative effect size %g cannot exceed alpha=%g", d, alpha))
	}
	return nil
}

// powerDecreases reports an upper-tailed test of a negative effect, whose power
// starts just below alpha at the smallest df and only falls as n grows.
func powerDecreases(d float64, tail domain.TailMode) bool {
	return tail == domain.UpperOneTailed && d < 0
}

func decreasingPower(got, target, d float64) error {
	return errors.NonConvergent(fmt.Sprintf("upper-one-tailed power %.4f for negative effect size %g is below target %.4f and decreases with n", got, d, target))
}

var defaultCalculator = NewCalculator()

// SearchOneSample runs a one-sample search with the default calculator
func SearchOneSample(cfg domain.TestConfiguration) (domain.OneSampleResult, error) {
	return defaultCalculator.SearchOneSample(cfg)
}

// SearchTwoSample runs a two-sample search with the default calculator
func SearchTwoSample(cfg domain.TwoSampleConfiguration) (domain.TwoSampleResult, error) {
	return defaultCalculator.SearchTwoSample(cfg)
}
