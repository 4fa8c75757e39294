package statistic

import (
	"time"

	timeseries "building-energy/internal/timeseries/domain"
)

// Granularity is the time resolution of an aggregation bucket.
type Granularity string

const (
	GranularityHour  Granularity = "HOUR"
	GranularityDay   Granularity = "DAY"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
)

// IsValid reports whether g is supported.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityMonth, GranularityYear:
		return true
	default:
		return false
	}
}

// TimeKey is the persisted representation of a bucket start.
type TimeKey string

// NewTimeKey builds a TimeKey for the given granularity and bucket start.
func NewTimeKey(granularity Granularity, periodStart time.Time) (TimeKey, error) {
	if !granularity.IsValid() {
		return "", ErrInvalidGranularity
	}
	if periodStart.IsZero() {
		return "", ErrInvalidPeriodStart
	}
	layout, err := timeKeyLayout(granularity)
	if err != nil {
		return "", err
	}
	return TimeKey(periodStart.Format(layout)), nil
}

// HourKey is the TimeKey of an hourly record.
func HourKey(k timeseries.DateHour) TimeKey {
	key, _ := NewTimeKey(GranularityHour, k.Time(time.UTC))
	return key
}

// DayKey is the TimeKey of a date.
func DayKey(d timeseries.Date) TimeKey {
	key, _ := NewTimeKey(GranularityDay, d.Time(time.UTC))
	return key
}

// MonthKey is the TimeKey of a month.
func MonthKey(m timeseries.YearMonth) TimeKey {
	key, _ := NewTimeKey(GranularityMonth, m.FirstDate().Time(time.UTC))
	return key
}

// String returns the raw string for storage.
func (k TimeKey) String() string { return string(k) }

func timeKeyLayout(granularity Granularity) (string, error) {
	switch granularity {
	case GranularityHour:
		return "20060102T15", nil
	case GranularityDay:
		return "20060102", nil
	case GranularityMonth:
		return "200601", nil
	case GranularityYear:
		return "2006", nil
	default:
		return "", ErrInvalidGranularity
	}
}

// Clock provides time for report runs.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
