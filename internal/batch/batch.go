package batch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	domain "tpower/domain/power"
	"tpower/internal"
	"tpower/internal/errors"
	"tpower/ports"
)

// Kind selects the search variant for a scenario
type Kind string

const (
	KindOneSample Kind = "one-sample"
	KindTwoSample Kind = "two-sample"
)

// Scenario is one entry of a batch file
type Scenario struct {
	Name          string  `yaml:"name" json:"name"`
	Kind          Kind    `yaml:"kind" json:"kind"`
	Alpha         float64 `yaml:"alpha" json:"alpha"`
	Power         float64 `yaml:"power" json:"power"`
	EffectSize    float64 `yaml:"effect_size" json:"effect_size"`
	Tail          string  `yaml:"tail,omitempty" json:"tail,omitempty"`
	Ratio         float64 `yaml:"ratio,omitempty" json:"ratio,omitempty"`
	MaxSampleSize int     `yaml:"max_sample_size,omitempty" json:"max_sample_size,omitempty"`
}

// File is the top-level layout of a batch YAML document
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Outcome pairs a scenario with its result; Err is set instead of a result on failure
type Outcome struct {
	Scenario  Scenario                `json:"scenario"`
	OneSample *domain.OneSampleResult `json:"one_sample,omitempty"`
	TwoSample *domain.TwoSampleResult `json:"two_sample,omitempty"`
	ErrorCode string                  `json:"error_code,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Err       error                   `json:"-"`
}

// Load reads a batch file from disk
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading batch file %s", path)
	}
	return Parse(data)
}

// Parse decodes a batch YAML document and fills defaults
func Parse(data []byte) ([]Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "parsing batch file")
	}
	if len(f.Scenarios) == 0 {
		return nil, errors.InvalidInput("batch file has no scenarios")
	}
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		switch Kind(strings.ToLower(string(s.Kind))) {
		case KindOneSample, "":
			s.Kind = KindOneSample
		case KindTwoSample:
			s.Kind = KindTwoSample
			if s.Ratio == 0 {
				s.Ratio = 1
			}
		default:
			return nil, errors.InvalidEnum(fmt.Sprintf("%s: unknown kind %q", s.Name, s.Kind))
		}
	}
	return f.Scenarios, nil
}

// Runner solves batches of scenarios concurrently
type Runner struct {
	solver  ports.SampleSizeSolver
	workers int
	logger  *internal.Logger
}

// NewRunner creates a runner using at most workers concurrent searches
func NewRunner(solver ports.SampleSizeSolver, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{solver: solver, workers: workers, logger: internal.DefaultLogger.With("batch")}
}

// Run solves every scenario and returns outcomes in input order. A failing
// scenario records its error; only context cancellation aborts the batch.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Outcome, error) {
	outcomes := make([]Outcome, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.solve(gctx, s)
			if err := outcomes[i].Err; err != nil {
				outcomes[i].ErrorCode = errors.GetCode(err)
				outcomes[i].Error = err.Error()
				r.logger.Warn("%s: %v", s.Name, outcomes[i].Err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A search cut short by cancellation is not a scenario failure.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *Runner) solve(ctx context.Context, s Scenario) Outcome {
	out := Outcome{Scenario: s}
	tail, err := domain.ParseTailMode(s.Tail)
	if err != nil {
		out.Err = errors.InvalidEnum(err.Error())
		return out
	}

	switch s.Kind {
	case KindTwoSample:
		res, err := r.solver.SearchTwoSampleContext(ctx, domain.TwoSampleConfiguration{
			Alpha:         s.Alpha,
			PowerTarget:   s.Power,
			EffectSize:    s.EffectSize,
			Ratio:         s.Ratio,
			Tail:          tail,
			MaxSampleSize: s.MaxSampleSize,
		})
		if err != nil {
			out.Err = err
			return out
		}
		out.TwoSample = &res
	default:
		res, err := r.solver.SearchOneSampleContext(ctx, domain.TestConfiguration{
			Alpha:         s.Alpha,
			PowerTarget:   s.Power,
			EffectSize:    s.EffectSize,
			Tail:          tail,
			MaxSampleSize: s.MaxSampleSize,
		})
		if err != nil {
			out.Err = err
			return out
		}
		out.OneSample = &res
	}
	return out
}
