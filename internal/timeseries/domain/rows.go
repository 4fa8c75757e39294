package timeseries

import "fmt"

// Row is one record flattened for tabular stores. Daily series use Hour 0.
type Row struct {
	Series   Series
	Meter    string
	Date     Date
	Hour     int
	Value    float64
	Verified *bool
}

// Rows returns the stored records of the day named by change.
func (d *Dataset) Rows(change Change) []Row {
	var rows []Row
	switch change.Series {
	case SeriesSpotPrice:
		for _, r := range d.SpotPrices {
			if r.Date == change.Date {
				rows = append(rows, Row{Series: change.Series, Date: r.Date, Hour: r.Hour, Value: r.Price})
			}
		}
	case SeriesHourlyTemperature:
		for _, r := range d.HourlyTemperatures {
			if r.Date == change.Date {
				rows = append(rows, Row{Series: change.Series, Date: r.Date, Hour: r.Hour, Value: r.Temperature})
			}
		}
	case SeriesDailyTemperature:
		for _, r := range d.DailyTemperatures {
			if r.Date == change.Date {
				rows = append(rows, Row{Series: change.Series, Date: r.Date, Value: r.MeanTemperature})
			}
		}
	case SeriesUsage:
		for _, r := range d.Usage[change.Meter] {
			if r.Date == change.Date {
				rows = append(rows, Row{Series: change.Series, Meter: change.Meter, Date: r.Date, Hour: r.Hour, Value: r.Usage, Verified: r.Verified})
			}
		}
	}
	return rows
}

// AppendRow adds a loaded row without merging. Call Normalize once all rows are in.
func (d *Dataset) AppendRow(row Row) error {
	if row.Series != SeriesDailyTemperature && (row.Hour < 0 || row.Hour >= HoursPerDay) {
		return fmt.Errorf("%w: %d", ErrInvalidHour, row.Hour)
	}
	switch row.Series {
	case SeriesSpotPrice:
		d.SpotPrices = append(d.SpotPrices, HourPrice{Date: row.Date, Hour: row.Hour, Price: row.Value})
	case SeriesHourlyTemperature:
		d.HourlyTemperatures = append(d.HourlyTemperatures, HourTemperature{Date: row.Date, Hour: row.Hour, Temperature: row.Value})
	case SeriesDailyTemperature:
		d.DailyTemperatures = append(d.DailyTemperatures, DayTemperature{Date: row.Date, MeanTemperature: row.Value})
	case SeriesUsage:
		if row.Meter == "" {
			return ErrEmptyMeter
		}
		d.Usage[row.Meter] = append(d.Usage[row.Meter], HourUsage{Date: row.Date, Hour: row.Hour, Usage: row.Value, Verified: row.Verified})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSeries, row.Series)
	}
	return nil
}
