package ports

import (
	"context"

	"tpower/domain/power"
)

// SampleSizeSolver finds minimal sample sizes for a target power. Searches
// stop early with a CANCELLED error once ctx ends.
type SampleSizeSolver interface {
	SearchOneSampleContext(ctx context.Context, cfg power.TestConfiguration) (power.OneSampleResult, error)
	SearchTwoSampleContext(ctx context.Context, cfg power.TwoSampleConfiguration) (power.TwoSampleResult, error)
}
