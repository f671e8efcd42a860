// Package gather defines the market-data acquisition processes that fill the
// bar store the backtester reads from.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns when the pass is complete
	// or ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange is an inclusive range of trading dates to fetch.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range contains no dates.
func (r DateRange) Empty() bool { return r.End.Before(r.Start) }

// String formats the range as START..END.
func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}
