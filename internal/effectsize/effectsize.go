// Package effectsize estimates Cohen's d from pilot data, the usual source of
// the effect size fed to a sample-size search.
package effectsize

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"tpower/internal/errors"
)

// Estimate is a Cohen's d estimate together with the statistics it came from
type Estimate struct {
	D          float64 `json:"d"`
	N1         int     `json:"n1"`
	N2         int     `json:"n2,omitempty"`
	Mean1      float64 `json:"mean1"`
	Mean2      float64 `json:"mean2,omitempty"`
	SD         float64 `json:"sd"`          // sample sd (one-sample) or pooled sd (two-sample)
	TStatistic float64 `json:"t_statistic"` // one-sample t, or Welch's t for two samples
	WelchDF    float64 `json:"welch_df,omitempty"`
}

// OneSample returns d = (mean(x) - mu0) / sd(x)
func OneSample(x []float64, mu0 float64) (Estimate, error) {
	x = dropNaN(x)
	if len(x) < 2 {
		return Estimate{}, errors.ValidationError(fmt.Sprintf("need at least 2 observations, got %d", len(x)))
	}
	mean, err := stats.Mean(x)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "mean")
	}
	sd, err := stats.StandardDeviationSample(x)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "standard deviation")
	}
	if sd == 0 {
		return Estimate{}, errors.InvalidInput("observations have zero variance")
	}

	n := float64(len(x))
	return Estimate{
		D:          (mean - mu0) / sd,
		N1:         len(x),
		Mean1:      mean,
		SD:         sd,
		TStatistic: (mean - mu0) / (sd / math.Sqrt(n)),
	}, nil
}

// TwoSample returns d = (mean(x) - mean(y)) / pooled sd, with Welch's t and
// Welch-Satterthwaite df for reference.
func TwoSample(x, y []float64) (Estimate, error) {
	x, y = dropNaN(x), dropNaN(y)
	if len(x) < 2 || len(y) < 2 {
		return Estimate{}, errors.ValidationError(fmt.Sprintf("need at least 2 observations per group, got %d and %d", len(x), len(y)))
	}
	mean1, err := stats.Mean(x)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "mean of first group")
	}
	mean2, err := stats.Mean(y)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "mean of second group")
	}
	var1, err := stats.SampleVariance(x)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "variance of first group")
	}
	var2, err := stats.SampleVariance(y)
	if err != nil {
		return Estimate{}, errors.Wrap(err, "variance of second group")
	}

	n1, n2 := float64(len(x)), float64(len(y))
	pooledSD := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledSD == 0 {
		return Estimate{}, errors.InvalidInput("groups have zero variance")
	}

	est := Estimate{
		D:     (mean1 - mean2) / pooledSD,
		N1:    len(x),
		N2:    len(y),
		Mean1: mean1,
		Mean2: mean2,
		SD:    pooledSD,
	}
	// Welch's t: (mean1 - mean2) / sqrt(var1/n1 + var2/n2)
	se2 := var1/n1 + var2/n2
	if se2 > 0 {
		est.TStatistic = (mean1 - mean2) / math.Sqrt(se2)
		est.WelchDF = se2 * se2 / (math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))
	}
	return est, nil
}

func dropNaN(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
