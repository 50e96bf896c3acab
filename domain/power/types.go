package power

import (
	"fmt"
	"math"
	"strings"
)

// ============================================================================
// TAIL MODE
// ============================================================================

// TailMode selects the direction(s) in which a t-test rejects the null hypothesis
type TailMode string

const (
	TwoTailed      TailMode = "two-tailed"
	UpperOneTailed TailMode = "upper-one-tailed"
	LowerOneTailed TailMode = "lower-one-tailed"
)

// TailModes lists every supported tail mode in display order
var TailModes = []TailMode{TwoTailed, UpperOneTailed, LowerOneTailed}

// ParseTailMode accepts the canonical names plus the short aliases used on the command line
func ParseTailMode(s string) (TailMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "two-tailed", "two", "both", "":
		return TwoTailed, nil
	case "upper-one-tailed", "upper", "greater":
		return UpperOneTailed, nil
	case "lower-one-tailed", "lower", "less":
		return LowerOneTailed, nil
	}
	return "", fmt.Errorf("unknown tail mode %q (want two-tailed, upper-one-tailed or lower-one-tailed)", s)
}

// IsValid reports whether m is one of the known tail modes
func (m TailMode) IsValid() bool {
	switch m {
	case TwoTailed, UpperOneTailed, LowerOneTailed:
		return true
	}
	return false
}

func (m TailMode) String() string {
	return string(m)
}

// ============================================================================
// CONFIGURATIONS
// ============================================================================

// DefaultMaxSampleSize bounds the linear search when a configuration leaves MaxSampleSize unset
const DefaultMaxSampleSize = 100000

// TestConfiguration describes a one-sample t-test power analysis
type TestConfiguration struct {
	Alpha         float64  `json:"alpha" yaml:"alpha"`                                       // Significance level, (0,1)
	PowerTarget   float64  `json:"power" yaml:"power"`                                       // Desired power, (0,1)
	EffectSize    float64  `json:"effect_size" yaml:"effect_size"`                           // Cohen's d
	Tail          TailMode `json:"tail" yaml:"tail"`                                         // Rejection direction
	MaxSampleSize int      `json:"max_sample_size,omitempty" yaml:"max_sample_size,omitempty"` // Search cap, 0 = default
}

// TwoSampleConfiguration describes an independent two-sample t-test power analysis
type TwoSampleConfiguration struct {
	Alpha         float64  `json:"alpha" yaml:"alpha"`
	PowerTarget   float64  `json:"power" yaml:"power"`
	EffectSize    float64  `json:"effect_size" yaml:"effect_size"`
	Ratio         float64  `json:"ratio" yaml:"ratio"` // n1/n2
	Tail          TailMode `json:"tail,omitempty" yaml:"tail,omitempty"`
	MaxSampleSize int      `json:"max_sample_size,omitempty" yaml:"max_sample_size,omitempty"`
}

// Cap returns the effective search cap
func (c TestConfiguration) Cap() int {
	if c.MaxSampleSize > 0 {
		return c.MaxSampleSize
	}
	return DefaultMaxSampleSize
}

// Cap returns the effective search cap for n1
func (c TwoSampleConfiguration) Cap() int {
	if c.MaxSampleSize > 0 {
		return c.MaxSampleSize
	}
	return DefaultMaxSampleSize
}

// TailOrDefault returns the configured tail mode, falling back to two-tailed
func (c TwoSampleConfiguration) TailOrDefault() TailMode {
	if c.Tail == "" {
		return TwoTailed
	}
	return c.Tail
}

// ============================================================================
// RESULTS
// ============================================================================

// OneSampleResult is the terminal search state of a one-sample search
type OneSampleResult struct {
	N                int      `json:"n"`
	DegreesOfFreedom int      `json:"df"`
	Noncentrality    float64  `json:"delta"`
	CriticalValue    float64  `json:"t_critical"`
	Power            float64  `json:"power"`
	Tail             TailMode `json:"tail"`
	Iterations       int      `json:"iterations"`
}

// TwoSampleResult is the terminal search state of a two-sample search
type TwoSampleResult struct {
	N1               int      `json:"n1"`
	N2               int      `json:"n2"`
	DegreesOfFreedom int      `json:"df"`
	Noncentrality    float64  `json:"delta"`
	CriticalValue    float64  `json:"t_critical"`
	Power            float64  `json:"power"`
	Tail             TailMode `json:"tail"`
	Iterations       int      `json:"iterations"`
}

// Evaluation is the power of a single (df, delta) pair under a tail mode
type Evaluation struct {
	DegreesOfFreedom int     `json:"df"`
	Noncentrality    float64 `json:"delta"`
	CriticalValue    float64 `json:"t_critical"`
	Power            float64 `json:"power"`
}

// CurvePoint is one row of a power curve
type CurvePoint struct {
	N  int `json:"n"`            // n for one-sample, n1 for two-sample
	N2 int `json:"n2,omitempty"` // zero for one-sample curves
	Evaluation
}

// FiniteOrNil returns a pointer to v, or nil when v is ±Inf or NaN. JSON cannot
// carry the infinite critical value of a df = 0 evaluation.
func FiniteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
