package statistic

import "errors"

var (
	// ErrInvalidGranularity is returned when granularity is unsupported.
	ErrInvalidGranularity = errors.New("statistic: invalid granularity")
	// ErrInvalidPeriodStart is returned when the period start is zero.
	ErrInvalidPeriodStart = errors.New("statistic: invalid period start")
	// ErrNilDataset is returned when a snapshot is built without a dataset.
	ErrNilDataset = errors.New("statistic: nil dataset")
	// ErrInsufficientPoints is returned when a trend line has fewer than two usable points.
	ErrInsufficientPoints = errors.New("statistic: insufficient points for trend")
	// ErrDegenerateTrend is returned when all points share the same temperature.
	ErrDegenerateTrend = errors.New("statistic: degenerate trend input")
)
