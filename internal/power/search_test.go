package power

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/errors"
	"tpower/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOneSampleClassicScenario(t *testing.T) {
	res, err := SearchOneSample(domain.TestConfiguration{
		Alpha:       0.05,
		PowerTarget: 0.8,
		EffectSize:  0.5,
		Tail:        domain.TwoTailed,
	})
	require.NoError(t, err)

	assert.Equal(t, 34, res.N)
	assert.Equal(t, 33, res.DegreesOfFreedom)
	assert.InDelta(t, 0.5*math.Sqrt(34), res.Noncentrality, 1e-12)
	assert.InDelta(t, 2.0345153, res.CriticalValue, 1e-6)
	assert.InDelta(t, 0.8077775, res.Power, 1e-6)
	assert.Equal(t, 34, res.Iterations)

	prev, err := PowerOneSample(0.05, 0.5, 33, domain.TwoTailed)
	require.NoError(t, err)
	assert.Less(t, prev.Power, 0.8)
	assert.InDelta(t, 0.7953658, prev.Power, 1e-6)
}

func TestSearchOneSampleTailModes(t *testing.T) {
	upper, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.UpperOneTailed})
	require.NoError(t, err)
	assert.Equal(t, 27, upper.N)
	assert.InDelta(t, 1.7056179, upper.CriticalValue, 1e-6)
	assert.Greater(t, upper.Noncentrality, 0.0)

	lower, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.LowerOneTailed})
	require.NoError(t, err)
	assert.Equal(t, 27, lower.N)
	assert.InDelta(t, -1.7056179, lower.CriticalValue, 1e-6)
	assert.InDelta(t, -0.5*math.Sqrt(27), lower.Noncentrality, 1e-12)
	assert.InDelta(t, upper.Power, lower.Power, 1e-9)

	// The lower-tailed search forces delta negative whatever the sign of d.
	flipped, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: -0.5, Tail: domain.LowerOneTailed})
	require.NoError(t, err)
	assert.Equal(t, lower, flipped)
}

func TestSearchOneSampleMinimality(t *testing.T) {
	for _, tail := range domain.TailModes {
		for _, d := range []float64{0.3, 0.8, 1.5} {
			for _, target := range []float64{0.7, 0.9} {
				cfg := domain.TestConfiguration{Alpha: 0.05, PowerTarget: target, EffectSize: d, Tail: tail}
				res, err := SearchOneSample(cfg)
				require.NoError(t, err, "%+v", cfg)
				assert.GreaterOrEqual(t, res.Power, target, "%+v", cfg)

				prev, err := PowerOneSample(cfg.Alpha, d, res.N-1, tail)
				require.NoError(t, err)
				assert.Less(t, prev.Power, target, "n-1 must miss the target for %+v", cfg)
			}
		}
	}
}

func TestSearchOneSampleMonotoneInEffectSize(t *testing.T) {
	expected := map[float64]int{0.3: 90, 0.5: 34, 0.8: 15, 1.2: 8, 2.0: 5}
	prevN := math.MaxInt
	for _, d := range []float64{0.3, 0.5, 0.8, 1.2, 2.0} {
		res, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: d, Tail: domain.TwoTailed})
		require.NoError(t, err)
		assert.Equal(t, expected[d], res.N, "d=%g", d)
		assert.LessOrEqual(t, res.N, prevN)
		prevN = res.N
	}
}

func TestSearchOneSampleTwoTailedSymmetry(t *testing.T) {
	pos, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed})
	require.NoError(t, err)
	neg, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: -0.5, Tail: domain.TwoTailed})
	require.NoError(t, err)

	assert.Equal(t, pos.N, neg.N)
	assert.Equal(t, pos.DegreesOfFreedom, neg.DegreesOfFreedom)
	assert.InDelta(t, pos.Power, neg.Power, 1e-9)
	assert.InDelta(t, -pos.Noncentrality, neg.Noncentrality, 1e-12)
}

func TestSearchTwoSampleClassicScenario(t *testing.T) {
	res, err := SearchTwoSample(domain.TwoSampleConfiguration{
		Alpha:       0.05,
		PowerTarget: 0.8,
		EffectSize:  0.8,
		Ratio:       1,
	})
	require.NoError(t, err)

	assert.Equal(t, 26, res.N1)
	assert.Equal(t, 26, res.N2)
	assert.Equal(t, 50, res.DegreesOfFreedom)
	assert.Equal(t, domain.TwoTailed, res.Tail)
	assert.InDelta(t, 0.8074866, res.Power, 1e-6)
	// Balanced designs: delta = d·√(n/2)
	assert.InDelta(t, 0.8*math.Sqrt(26.0/2), res.Noncentrality, 1e-12)

	prev, err := PowerTwoSample(0.05, 0.8, 25, 25, domain.TwoTailed)
	require.NoError(t, err)
	assert.Less(t, prev.Power, 0.8)
}

func TestSearchTwoSampleRatios(t *testing.T) {
	tests := []struct {
		ratio  float64
		n1, n2 int
	}{
		{1, 64, 64},
		{2, 48, 96},
		{0.5, 95, 48},
	}
	for _, tt := range tests {
		res, err := SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Ratio: tt.ratio})
		require.NoError(t, err)
		assert.Equal(t, tt.n1, res.N1, "ratio=%g", tt.ratio)
		assert.Equal(t, tt.n2, res.N2, "ratio=%g", tt.ratio)
		assert.Equal(t, res.N1+res.N2-2, res.DegreesOfFreedom)
		assert.GreaterOrEqual(t, res.Power, 0.8)
	}
}

func TestSearchTwoSampleOneTailed(t *testing.T) {
	upper, err := SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.8, Ratio: 1, Tail: domain.UpperOneTailed})
	require.NoError(t, err)
	assert.Equal(t, 21, upper.N1)

	lower, err := SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: -0.8, Ratio: 1, Tail: domain.LowerOneTailed})
	require.NoError(t, err)
	assert.Equal(t, 21, lower.N1)
	assert.Less(t, lower.Noncentrality, 0.0)
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.TestConfiguration
		code string
	}{
		{"alpha zero", domain.TestConfiguration{Alpha: 0, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed}, errors.CodeValidationError},
		{"alpha one", domain.TestConfiguration{Alpha: 1, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed}, errors.CodeValidationError},
		{"power one", domain.TestConfiguration{Alpha: 0.05, PowerTarget: 1, EffectSize: 0.5, Tail: domain.TwoTailed}, errors.CodeValidationError},
		{"nan effect", domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: math.NaN(), Tail: domain.TwoTailed}, errors.CodeValidationError},
		{"unknown tail", domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: "sideways"}, errors.CodeInvalidEnum},
		{"empty tail", domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5}, errors.CodeInvalidEnum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SearchOneSample(tt.cfg)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	_, err := SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Ratio: 0})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestSearchZeroEffectIsNonConvergent(t *testing.T) {
	_, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0, Tail: domain.TwoTailed})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))

	_, err = SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0, Ratio: 1})
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))

	_, err = SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: -0.5, Tail: domain.UpperOneTailed})
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))

	// A target at or below alpha is reachable even without an effect.
	res, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.04, EffectSize: 0, Tail: domain.TwoTailed})
	require.NoError(t, err)
	assert.Equal(t, 2, res.N)
}

func TestSearchCapExceeded(t *testing.T) {
	res, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed, MaxSampleSize: 20})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))
	assert.Equal(t, 20, res.Iterations)
	assert.Greater(t, res.Power, 0.0)
	assert.Less(t, res.Power, 0.8)
}

func TestPowerOneSampleFirstIterationIsDefined(t *testing.T) {
	for _, tail := range domain.TailModes {
		eval, err := PowerOneSample(0.05, 0.5, 1, tail)
		require.NoError(t, err)
		assert.Equal(t, 0, eval.DegreesOfFreedom)
		assert.Equal(t, 0.0, eval.Power)
		assert.True(t, math.IsInf(eval.CriticalValue, 0))
	}
}

type recordingObserver struct {
	kinds      []ports.SearchKind
	iterations []int
	errs       []error
}

func (r *recordingObserver) ObserveSearch(kind ports.SearchKind, tail domain.TailMode, iterations int, elapsed time.Duration, err error) {
	r.kinds = append(r.kinds, kind)
	r.iterations = append(r.iterations, iterations)
	r.errs = append(r.errs, err)
}

func TestCalculatorReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	calc := NewCalculator().WithObserver(obs)

	_, err := calc.SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed})
	require.NoError(t, err)
	_, err = calc.SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0, Ratio: 1})
	require.Error(t, err)

	assert.Equal(t, []ports.SearchKind{ports.SearchOneSample, ports.SearchTwoSample}, obs.kinds)
	assert.Equal(t, []int{34, 0}, obs.iterations)
	assert.NoError(t, obs.errs[0])
	assert.Error(t, obs.errs[1])
}

func TestUpperTailedNegativeEffectStopsEarly(t *testing.T) {
	// Power at d < 0 starts just below alpha and falls, so a target under alpha
	// is met at the first defined df or never.
	res, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.03, EffectSize: -0.5, Tail: domain.UpperOneTailed})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))
	assert.Equal(t, 2, res.Iterations)

	two, err := SearchTwoSample(domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.03, EffectSize: -0.5, Ratio: 1, Tail: domain.UpperOneTailed})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNonConvergent, errors.GetCode(err))
	assert.Equal(t, 1, two.Iterations)

	met, err := SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.04, EffectSize: -0.01, Tail: domain.UpperOneTailed})
	require.NoError(t, err)
	assert.Equal(t, 2, met.N)
	assert.Less(t, met.Power, 0.05)
}

func TestSearchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calc := NewCalculator()

	res, err := calc.SearchOneSampleContext(ctx, domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.0001, Tail: domain.TwoTailed})
	require.Error(t, err)
	assert.Equal(t, errors.CodeCancelled, errors.GetCode(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Iterations, 2*cancelCheckInterval)

	two, err := calc.SearchTwoSampleContext(ctx, domain.TwoSampleConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.0001, Ratio: 1})
	assert.Equal(t, errors.CodeCancelled, errors.GetCode(err))
	assert.Equal(t, cancelCheckInterval, two.Iterations)

	// Searches that finish before the first check are unaffected.
	found, err := calc.SearchOneSampleContext(ctx, domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed})
	require.NoError(t, err)
	assert.Equal(t, 34, found.N)
}

func TestCalculatorWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := internal.NewLogger(internal.LogLevelDebug)
	logger.SetOutput(&buf)

	calc := NewCalculator().WithLogger(logger.With("planner"))
	_, err := calc.SearchOneSample(domain.TestConfiguration{Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "[DEBUG] [planner] one-sample search finished in 34 iterations")
}
