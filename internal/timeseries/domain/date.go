package timeseries

import (
	"fmt"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	yearMonthLayout = "2006-01"

	// HoursPerDay is the number of hourly slots in a calendar day.
	HoursPerDay = 24
	// SentinelHour marks a day as delivered; sources send all hours of a day together.
	SentinelHour = 23
)

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized date; out of range values roll over like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight of d in loc (UTC when loc is nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Compare returns -1, 0 or 1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return compareInt(d.Year, o.Year)
	case d.Month != o.Month:
		return compareInt(int(d.Month), int(o.Month))
	default:
		return compareInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// YearMonth returns the month d belongs to.
func (d Date) YearMonth() YearMonth { return YearMonth{Year: d.Year, Month: d.Month} }

func (d Date) Weekday() time.Weekday { return d.Time(time.UTC).Weekday() }

// MarshalText writes YYYY-MM-DD; the zero Date is written empty.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DatesInRange lists every date from first to last, both inclusive.
func DatesInRange(first, last Date) []Date {
	if last.Before(first) {
		return nil
	}
	var dates []Date
	for d := first; !d.After(last); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	return NewDate(year, time.December, 31).Time(nil).YearDay()
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth normalizes month overflow.
func NewYearMonth(year int, month time.Month) YearMonth {
	return NewDate(year, month, 1).YearMonth()
}

// ParseYearMonth parses YYYY-MM.
func ParseYearMonth(value string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, value)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, value)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) AddMonths(n int) YearMonth {
	return NewYearMonth(m.Year, m.Month+time.Month(n))
}

// FirstDate returns the first day of the month.
func (m YearMonth) FirstDate() Date { return Date{Year: m.Year, Month: m.Month, Day: 1} }

// LastDate returns the last day of the month.
func (m YearMonth) LastDate() Date { return m.AddMonths(1).FirstDate().AddDays(-1) }

// Days returns the number of days in the month.
func (m YearMonth) Days() int { return m.LastDate().Day }

// Dates lists every day of the month.
func (m YearMonth) Dates() []Date { return DatesInRange(m.FirstDate(), m.LastDate()) }

func (m YearMonth) Compare(o YearMonth) int {
	if m.Year != o.Year {
		return compareInt(m.Year, o.Year)
	}
	return compareInt(int(m.Month), int(o.Month))
}

func (m YearMonth) Before(o YearMonth) bool { return m.Compare(o) < 0 }

// IsZero reports whether m is the zero month.
func (m YearMonth) IsZero() bool { return m == YearMonth{} }

// MarshalText writes YYYY-MM; the zero month is written empty.
func (m YearMonth) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

func (m *YearMonth) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*m = YearMonth{}
		return nil
	}
	parsed, err := ParseYearMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DateHour is the composite key of an hourly record.
type DateHour struct {
	Date Date
	Hour int
}

// NewDateHour validates the hour.
func NewDateHour(date Date, hour int) (DateHour, error) {
	if hour < 0 || hour >= HoursPerDay {
		return DateHour{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return DateHour{Date: date, Hour: hour}, nil
}

// DateHourOf truncates t to its hour in t's location.
func DateHourOf(t time.Time) DateHour {
	return DateHour{Date: DateOf(t), Hour: t.Hour()}
}

func (k DateHour) Compare(o DateHour) int {
	if c := k.Date.Compare(o.Date); c != 0 {
		return c
	}
	return compareInt(k.Hour, o.Hour)
}

func (k DateHour) Before(o DateHour) bool { return k.Compare(o) < 0 }

// Time returns the start of the hour in loc.
func (k DateHour) Time(loc *time.Location) time.Time {
	return k.Date.Time(loc).Add(time.Duration(k.Hour) * time.Hour)
}

func (k DateHour) String() string {
	return fmt.Sprintf("%sT%02d", k.Date, k.Hour)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
