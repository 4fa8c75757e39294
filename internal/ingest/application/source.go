package application

import (
	"context"
	"fmt"

	timeseries "building-energy/internal/timeseries/domain"
)

// Request asks a source for one series over an inclusive date range.
type Request struct {
	Series timeseries.Series
	Meters []string
	First  timeseries.Date
	Last   timeseries.Date
}

func (r Request) String() string {
	if len(r.Meters) > 0 {
		return fmt.Sprintf("%s%v %s..%s", r.Series, r.Meters, r.First, r.Last)
	}
	return fmt.Sprintf("%s %s..%s", r.Series, r.First, r.Last)
}

// Source is a data provider adapter. It returns records already normalized to the
// dataset types; provider wire formats never leave the adapter.
type Source interface {
	Name() string
	// Supplies reports whether the source can answer requests for series.
	Supplies(series timeseries.Series) bool
	Fetch(ctx context.Context, req Request) (timeseries.Batch, error)
}

// MeterSource is a usage source that names the meters it reads.
type MeterSource interface {
	Meters() []string
}

// Committer is implemented by sources that acknowledge consumed input once the
// dataset has been persisted.
type Committer interface {
	Commit(ctx context.Context) error
}

// Feed delivers pushed batches that nobody requested by date, such as files dropped
// into an inbox directory. Feeds are drained before the loader plans its requests.
type Feed interface {
	Name() string
	Drain(ctx context.Context) ([]timeseries.Batch, error)
}
