package ports

import (
	"time"

	"tpower/domain/power"
)

// SearchKind names the search variant being reported
type SearchKind string

const (
	SearchOneSample SearchKind = "one-sample"
	SearchTwoSample SearchKind = "two-sample"
)

// SearchObserver receives a report after every sample-size search, successful or not
type SearchObserver interface {
	ObserveSearch(kind SearchKind, tail power.TailMode, iterations int, elapsed time.Duration, err error)
}
