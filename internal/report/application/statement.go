package application

import (
	"building-energy/internal/analytics/domain/statistic"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// StatementDay is one line of a monthly statement.
type StatementDay struct {
	Date                  timeseries.Date
	ElectricityKWh        float64
	HeatKWh               float64
	ElectricityDatapoints int
	HeatDatapoints        int
	ElectricityCost       float64
	HeatCost              float64
}

// Statement is the itemized cost of one calendar month.
type Statement struct {
	Month       timeseries.YearMonth
	Days        []StatementDay
	Electricity tariff.Breakdown
	Heat        tariff.Breakdown
}

// Total is the combined cost; NaN when any rate was unavailable.
func (s Statement) Total() float64 {
	return tariff.Round2(s.Electricity.Total() + s.Heat.Total())
}

// Statement prices every day of month.
func (b *Builder) Statement(snap *statistic.Snapshot, month timeseries.YearMonth) (Statement, error) {
	if snap == nil {
		return Statement{}, ErrNilSnapshot
	}
	calc := newCalculator(b.engine, snap)
	out := Statement{Month: month, Electricity: tariff.NewBreakdown(0), Heat: tariff.NewBreakdown(0)}
	for _, d := range month.Dates() {
		p := calc.day(d)
		out.Days = append(out.Days, StatementDay{
			Date:                  d,
			ElectricityKWh:        p.Electricity.UsageKWh,
			HeatKWh:               p.Heat.UsageKWh,
			ElectricityDatapoints: p.ElectricityDatapoints,
			HeatDatapoints:        p.HeatDatapoints,
			ElectricityCost:       p.Electricity.Total(),
			HeatCost:              p.Heat.Total(),
		})
		out.Electricity = out.Electricity.Add(p.Electricity)
		out.Heat = out.Heat.Add(p.Heat)
	}
	return out, nil
}
