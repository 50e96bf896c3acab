package ports

import "math/rand/v2"

// RNGPort provides seeded random streams for deterministic simulations
type RNGPort interface {
	// Stream returns the source for one worker. Equal seeds and worker indices
	// must yield identical sequences; different workers must not overlap.
	Stream(seed uint64, worker int) rand.Source
}
