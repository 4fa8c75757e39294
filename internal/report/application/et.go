package application

import (
	"fmt"
	"time"

	"building-energy/internal/analytics/domain/statistic"
	timeseries "building-energy/internal/timeseries/domain"
)

// AllPeriodsKey is the regression over every complete day.
const AllPeriodsKey = "linearAll"

func (b *Builder) energyTemperature(snap *statistic.Snapshot, today timeseries.Date) ETSection {
	yesterday := today.AddDays(-1)
	section := ETSection{Rows: []ETRow{}, Regressions: make(map[string]Regression)}

	for _, d := range timeseries.DatesInRange(b.opts.ETStart, yesterday) {
		electricity, electricityHours := snap.DayUsage(timeseries.CarrierElectricity, d)
		heat, heatHours := snap.DayUsage(timeseries.CarrierHeat, d)
		temperature, ok := snap.DailyTemperature(d)
		if !ok || electricityHours < timeseries.HoursPerDay || heatHours < timeseries.HoursPerDay {
			continue
		}
		section.Rows = append(section.Rows, ETRow{
			Date:        d,
			Name:        dayName(d),
			Electricity: electricity,
			Heat:        heat,
			Power:       electricity + heat,
			Temperature: temperature,
			Index:       len(section.Rows),
		})
	}

	section.Regressions[AllPeriodsKey] = b.regression(section.Rows, b.opts.ETStart, yesterday)
	periods := b.opts.RegressionPeriods
	if len(periods) == 0 {
		periods = HalfYearPeriods(b.opts.ETStart, yesterday)
	}
	for _, period := range periods {
		section.Regressions[period.Key] = b.regression(section.Rows, period.From, period.To)
	}
	return section
}

func (b *Builder) regression(rows []ETRow, from, to timeseries.Date) Regression {
	points := make([]statistic.Point, 0, len(rows))
	for _, row := range rows {
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		if row.Temperature < b.opts.TrendThreshold {
			points = append(points, statistic.Point{X: row.Temperature, Y: row.Power})
		}
	}
	trend, err := statistic.FitHeatingTrend(points, b.opts.TrendThreshold)
	if err != nil {
		return Regression{Slope: Missing(), YStart: Missing(), Points: len(points)}
	}
	return Regression{Slope: Value(trend.Slope), YStart: Value(trend.Intercept), Points: len(points)}
}

// HalfYearPeriods splits first..last into calendar half-years keyed linear<year>H1/H2.
func HalfYearPeriods(first, last timeseries.Date) []RegressionPeriod {
	if last.Before(first) {
		return nil
	}
	var periods []RegressionPeriod
	for year := first.Year; year <= last.Year; year++ {
		halves := []RegressionPeriod{
			{Key: fmt.Sprintf("linear%dH1", year), From: timeseries.NewDate(year, time.January, 1), To: timeseries.NewDate(year, time.June, 30)},
			{Key: fmt.Sprintf("linear%dH2", year), From: timeseries.NewDate(year, time.July, 1), To: timeseries.NewDate(year, time.December, 31)},
		}
		for _, half := range halves {
			if half.To.Before(first) || last.Before(half.From) {
				continue
			}
			periods = append(periods, half)
		}
	}
	return periods
}
