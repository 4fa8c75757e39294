package timeseries

import (
	"fmt"
	"sort"
)

// Hourly is implemented by every record stored per (date,hour).
type Hourly interface {
	Key() DateHour
}

// MergeRange replaces every stored record whose date occurs in batch with the batch
// records and returns the result sorted by (date,hour). A correction covering part of
// a stored day replaces the whole day.
func MergeRange[T Hourly](existing, batch []T) ([]T, error) {
	if err := ValidateBatch(batch); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return existing, nil
	}

	replaced := BatchDates(batch)
	merged := make([]T, 0, len(existing)+len(batch))
	for _, record := range existing {
		if _, ok := replaced[record.Key().Date]; ok {
			continue
		}
		merged = append(merged, record)
	}
	merged = append(merged, batch...)
	sortHourly(merged)
	return merged, nil
}

// ValidateBatch rejects missing dates, hours outside 0-23 and repeated (date,hour) pairs.
func ValidateBatch[T Hourly](batch []T) error {
	seen := make(map[DateHour]struct{}, len(batch))
	for _, record := range batch {
		key := record.Key()
		if key.Date.IsZero() {
			return fmt.Errorf("%w: missing date", ErrInvalidDate)
		}
		if key.Hour < 0 || key.Hour >= HoursPerDay {
			return fmt.Errorf("%w: %s", ErrInvalidHour, key)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateHour, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// BatchDates returns the set of dates a batch covers.
func BatchDates[T Hourly](batch []T) map[Date]struct{} {
	dates := make(map[Date]struct{})
	for _, record := range batch {
		dates[record.Key().Date] = struct{}{}
	}
	return dates
}

// IsRangeComplete reports whether every date from first to last has a record at the
// sentinel hour.
func IsRangeComplete[T Hourly](series []T, first, last Date) bool {
	delivered := make(map[Date]struct{})
	for _, record := range series {
		key := record.Key()
		if key.Hour == SentinelHour {
			delivered[key.Date] = struct{}{}
		}
	}
	for _, date := range DatesInRange(first, last) {
		if _, ok := delivered[date]; !ok {
			return false
		}
	}
	return true
}

// IsRangeVerified reports whether every date from first to last has all 24 hours and
// none of them is provisional.
func IsRangeVerified(series []HourUsage, first, last Date) bool {
	verified := make(map[Date]int)
	for _, record := range series {
		if record.IsVerified() {
			verified[record.Date]++
		}
	}
	for _, date := range DatesInRange(first, last) {
		if verified[date] < HoursPerDay {
			return false
		}
	}
	return true
}

// MergeDays replaces daily records by date.
func MergeDays(existing, batch []DayTemperature) ([]DayTemperature, error) {
	replaced := make(map[Date]struct{}, len(batch))
	for _, record := range batch {
		if record.Date.IsZero() {
			return nil, fmt.Errorf("%w: missing date", ErrInvalidDate)
		}
		if _, ok := replaced[record.Date]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, record.Date)
		}
		replaced[record.Date] = struct{}{}
	}
	if len(batch) == 0 {
		return existing, nil
	}
	merged := make([]DayTemperature, 0, len(existing)+len(batch))
	for _, record := range existing {
		if _, ok := replaced[record.Date]; ok {
			continue
		}
		merged = append(merged, record)
	}
	merged = append(merged, batch...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged, nil
}

func sortHourly[T Hourly](records []T) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Key().Before(records[j].Key())
	})
}
