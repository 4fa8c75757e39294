package application

import (
	"building-energy/internal/analytics/domain/statistic"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// Period is the flattened tariff result of a list of dates.
type Period struct {
	Electricity           tariff.Breakdown
	Heat                  tariff.Breakdown
	ElectricityDatapoints int
	HeatDatapoints        int
}

func emptyPeriod() Period {
	return Period{Electricity: tariff.NewBreakdown(0), Heat: tariff.NewBreakdown(0)}
}

func (p Period) add(o Period) Period {
	return Period{
		Electricity:           p.Electricity.Add(o.Electricity),
		Heat:                  p.Heat.Add(o.Heat),
		ElectricityDatapoints: p.ElectricityDatapoints + o.ElectricityDatapoints,
		HeatDatapoints:        p.HeatDatapoints + o.HeatDatapoints,
	}
}

// Cost summarizes the period.
func (p Period) Cost() PeriodCost {
	return PeriodCost{
		ElectricitySum:        Value(p.Electricity.Total()),
		HeatSum:               Value(p.Heat.Total()),
		ElectricityUsage:      Value(p.Electricity.UsageKWh),
		HeatUsage:             Value(p.Heat.UsageKWh),
		ElectricityDatapoints: p.ElectricityDatapoints,
		HeatDatapoints:        p.HeatDatapoints,
	}
}

// calculator prices dates against one snapshot and remembers every priced date.
type calculator struct {
	engine *tariff.Engine
	snap   *statistic.Snapshot
	days   map[timeseries.Date]Period
}

func newCalculator(engine *tariff.Engine, snap *statistic.Snapshot) *calculator {
	return &calculator{engine: engine, snap: snap, days: make(map[timeseries.Date]Period)}
}

// hour prices one carrier hour; a missing reading is priced as zero usage.
func (c *calculator) hour(carrier timeseries.Carrier, k timeseries.DateHour) (tariff.Breakdown, bool) {
	usage, ok := c.snap.Usage(carrier, k)
	return c.engine.PriceHour(c.snap, carrier, k, usage), ok
}

func (c *calculator) day(d timeseries.Date) Period {
	if cached, ok := c.days[d]; ok {
		return cached
	}
	out := emptyPeriod()
	for hour := 0; hour < timeseries.HoursPerDay; hour++ {
		k := timeseries.DateHour{Date: d, Hour: hour}
		electricity, ok := c.hour(timeseries.CarrierElectricity, k)
		out.Electricity = out.Electricity.Add(electricity)
		if ok {
			out.ElectricityDatapoints++
		}
		heat, ok := c.hour(timeseries.CarrierHeat, k)
		out.Heat = out.Heat.Add(heat)
		if ok {
			out.HeatDatapoints++
		}
	}
	c.days[d] = out
	return out
}

func (c *calculator) period(dates []timeseries.Date) Period {
	out := emptyPeriod()
	for _, d := range dates {
		out = out.add(c.day(d))
	}
	return out
}
