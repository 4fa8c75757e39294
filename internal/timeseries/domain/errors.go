package timeseries

import "errors"

var (
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("timeseries: invalid date")
	// ErrInvalidYearMonth is returned when a month string is not YYYY-MM.
	ErrInvalidYearMonth = errors.New("timeseries: invalid year-month")
	// ErrInvalidHour is returned when an hour is outside 0-23.
	ErrInvalidHour = errors.New("timeseries: invalid hour")
	// ErrDuplicateHour is returned when a batch holds the same (date,hour) twice.
	ErrDuplicateHour = errors.New("timeseries: duplicate hour in batch")
	// ErrDuplicateDate is returned when a daily batch holds the same date twice.
	ErrDuplicateDate = errors.New("timeseries: duplicate date in batch")
	// ErrEmptyMeter is returned when a usage batch has no meter name.
	ErrEmptyMeter = errors.New("timeseries: empty meter name")
	// ErrUnknownSeries is returned for a stored row of an unknown series.
	ErrUnknownSeries = errors.New("timeseries: unknown series")
)
