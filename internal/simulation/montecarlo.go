package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/errors"
	"tpower/internal/power"
	"tpower/ports"
)

// SimulationConfig controls a Monte Carlo power check
type SimulationConfig struct {
	Trials  int    `json:"trials"`
	Workers int    `json:"workers"`
	Seed    uint64 `json:"seed"`
}

// DefaultSimulationConfig returns settings that resolve power to about ±0.01
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{Trials: 4000, Workers: 4, Seed: 42}
}

// Result compares the empirical rejection rate with the analytic power
type Result struct {
	Trials         int     `json:"trials"`
	Rejections     int     `json:"rejections"`
	EmpiricalPower float64 `json:"empirical_power"`
	StdErr         float64 `json:"std_err"`
	AnalyticPower  float64 `json:"analytic_power"`
	CriticalValue  float64 `json:"t_critical"`
	MeanStatistic  float64 `json:"mean_t"`
}

// Simulator draws normal samples under the alternative hypothesis and applies
// the same rejection rule the power formulas assume.
type Simulator struct {
	config SimulationConfig
	rng    ports.RNGPort
	logger *internal.Logger
}

// PCGStreams gives worker w the PCG stream (seed, w+1)
type PCGStreams struct{}

// Stream implements ports.RNGPort
func (PCGStreams) Stream(seed uint64, worker int) rand.Source {
	return rand.NewPCG(seed, uint64(worker)+1)
}

// NewSimulator creates a simulator, filling unset fields from the defaults
func NewSimulator(cfg SimulationConfig) *Simulator {
	def := DefaultSimulationConfig()
	if cfg.Trials <= 0 {
		cfg.Trials = def.Trials
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Workers > cfg.Trials {
		cfg.Workers = cfg.Trials
	}
	return &Simulator{config: cfg, rng: PCGStreams{}, logger: internal.DefaultLogger.With("simulation")}
}

// WithRNG returns a copy of the simulator drawing from rng
func (s *Simulator) WithRNG(rng ports.RNGPort) *Simulator {
	return &Simulator{config: s.config, rng: rng, logger: s.logger}
}

// sampler produces one t statistic per call from a worker-local random source
type sampler func(src rand.Source) (float64, error)

// OneSample estimates the power of a one-sample t-test of size n
func (s *Simulator) OneSample(ctx context.Context, alpha, d float64, n int, tail domain.TailMode) (Result, error) {
	if n < 2 {
		return Result{}, errors.ValidationError(fmt.Sprintf("simulation needs n >= 2, got %d", n))
	}
	eval, err := power.PowerOneSample(alpha, d, n, tail)
	if err != nil {
		return Result{}, err
	}
	mu := shift(d, tail)
	draw := func(src rand.Source) (float64, error) {
		x := drawNormal(src, mu, n)
		mean, err := stats.Mean(x)
		if err != nil {
			return 0, err
		}
		sd, err := stats.StandardDeviationSample(x)
		if err != nil {
			return 0, err
		}
		return mean / (sd / math.Sqrt(float64(n))), nil
	}
	return s.run(ctx, eval, tail, draw)
}

// TwoSample estimates the power of a pooled-variance two-sample t-test
func (s *Simulator) TwoSample(ctx context.Context, alpha, d float64, n1, n2 int, tail domain.TailMode) (Result, error) {
	if n1 < 2 || n2 < 2 {
		return Result{}, errors.ValidationError(fmt.Sprintf("simulation needs n1, n2 >= 2, got %d, %d", n1, n2))
	}
	eval, err := power.PowerTwoSample(alpha, d, n1, n2, tail)
	if err != nil {
		return Result{}, err
	}
	mu := shift(d, tail)
	draw := func(src rand.Source) (float64, error) {
		x := drawNormal(src, mu, n1)
		y := drawNormal(src, 0, n2)
		m1, err := stats.Mean(x)
		if err != nil {
			return 0, err
		}
		m2, err := stats.Mean(y)
		if err != nil {
			return 0, err
		}
		v1, err := stats.SampleVariance(x)
		if err != nil {
			return 0, err
		}
		v2, err := stats.SampleVariance(y)
		if err != nil {
			return 0, err
		}
		pooled := (float64(n1-1)*v1 + float64(n2-1)*v2) / float64(n1+n2-2)
		return (m1 - m2) / math.Sqrt(pooled*(1/float64(n1)+1/float64(n2))), nil
	}
	return s.run(ctx, eval, tail, draw)
}

func (s *Simulator) run(ctx context.Context, eval domain.Evaluation, tail domain.TailMode, draw sampler) (Result, error) {
	cfg := s.config
	rejections := make([]int, cfg.Workers)
	statistics := make([][]float64, cfg.Workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		w := w
		trials := cfg.Trials / cfg.Workers
		if w < cfg.Trials%cfg.Workers {
			trials++
		}
		g.Go(func() error {
			src := s.rng.Stream(cfg.Seed, w)
			statistics[w] = make([]float64, 0, trials)
			for i := 0; i < trials; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				tStat, err := draw(src)
				if err != nil {
					return errors.Wrap(err, "drawing t statistic")
				}
				statistics[w] = append(statistics[w], tStat)
				if rejects(tail, tStat, eval.CriticalValue) {
					rejections[w]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Trials: cfg.Trials, AnalyticPower: eval.Power, CriticalValue: eval.CriticalValue}
	all := make([]float64, 0, cfg.Trials)
	for w := range rejections {
		res.Rejections += rejections[w]
		all = append(all, statistics[w]...)
	}
	res.EmpiricalPower = float64(res.Rejections) / float64(res.Trials)
	res.StdErr = math.Sqrt(res.EmpiricalPower * (1 - res.EmpiricalPower) / float64(res.Trials))
	if mean, err := stats.Mean(all); err == nil {
		res.MeanStatistic = mean
	}

	s.logger.Debug("simulated %d trials: empirical=%.4f analytic=%.4f", res.Trials, res.EmpiricalPower, res.AnalyticPower)
	return res, nil
}

// shift returns the alternative mean; lower-tailed tests look for a negative effect
func shift(d float64, tail domain.TailMode) float64 {
	if tail == domain.LowerOneTailed {
		return -math.Abs(d)
	}
	return d
}

func drawNormal(src rand.Source, mu float64, n int) []float64 {
	dist := distuv.Normal{Mu: mu, Sigma: 1, Src: src}
	x := make([]float64, n)
	for i := range x {
		x[i] = dist.Rand()
	}
	return x
}

func rejects(tail domain.TailMode, tStat, critical float64) bool {
	switch tail {
	case domain.UpperOneTailed:
		return tStat > critical
	case domain.LowerOneTailed:
		return tStat < critical
	default:
		return math.Abs(tStat) > critical
	}
}
