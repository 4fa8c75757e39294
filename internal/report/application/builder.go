package application

import (
	"fmt"
	"time"

	"building-energy/internal/analytics/domain/statistic"
	tariff "building-energy/internal/tariff/domain"
	timeseries "building-energy/internal/timeseries/domain"
)

// RegressionPeriod is a named date range with its own heating trend.
type RegressionPeriod struct {
	Key  string
	From timeseries.Date
	To   timeseries.Date
}

// Options controls report windows and assumptions.
type Options struct {
	Location               *time.Location
	HourlyDays             int
	DailyDays              int
	LastDays               int
	PriceDaysBack          int
	ETStart                timeseries.Date
	TrendThreshold         float64
	FallbackElectricityKWh float64
	FallbackHeatKWh        float64
	// RegressionPeriods replaces the half-year periods when set.
	RegressionPeriods []RegressionPeriod
}

// DefaultOptions returns the production report settings.
func DefaultOptions() Options {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		Location:               loc,
		HourlyDays:             6,
		DailyDays:              60,
		LastDays:               14,
		PriceDaysBack:          2,
		ETStart:                timeseries.NewDate(2021, time.July, 1),
		TrendThreshold:         15,
		FallbackElectricityKWh: 50,
		FallbackHeatKWh:        80,
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithOptions replaces the report settings; zero fields keep their defaults.
func WithOptions(o Options) Option {
	return func(b *Builder) {
		if o.Location != nil {
			b.opts.Location = o.Location
		}
		if o.HourlyDays > 0 {
			b.opts.HourlyDays = o.HourlyDays
		}
		if o.DailyDays > 0 {
			b.opts.DailyDays = o.DailyDays
		}
		if o.LastDays > 0 {
			b.opts.LastDays = o.LastDays
		}
		if o.PriceDaysBack > 0 {
			b.opts.PriceDaysBack = o.PriceDaysBack
		}
		if !o.ETStart.IsZero() {
			b.opts.ETStart = o.ETStart
		}
		if o.TrendThreshold != 0 {
			b.opts.TrendThreshold = o.TrendThreshold
		}
		if o.FallbackElectricityKWh > 0 {
			b.opts.FallbackElectricityKWh = o.FallbackElectricityKWh
		}
		if o.FallbackHeatKWh > 0 {
			b.opts.FallbackHeatKWh = o.FallbackHeatKWh
		}
		if len(o.RegressionPeriods) > 0 {
			b.opts.RegressionPeriods = append([]RegressionPeriod(nil), o.RegressionPeriods...)
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock statistic.Clock) Option {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// Builder computes reports from snapshots. It holds no per-run state.
type Builder struct {
	engine *tariff.Engine
	clock  statistic.Clock
	opts   Options
}

// NewBuilder constructs a report builder.
func NewBuilder(engine *tariff.Engine, opts ...Option) (*Builder, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	b := &Builder{engine: engine, clock: statistic.SystemClock{}, opts: DefaultOptions()}
	for _, opt := range opts {
		opt(b)
	}
	for _, period := range b.opts.RegressionPeriods {
		if period.To.Before(period.From) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period.Key)
		}
	}
	return b, nil
}

// Options returns the effective settings.
func (b *Builder) Options() Options { return b.opts }

// Location is the report time zone.
func (b *Builder) Location() *time.Location { return b.opts.Location }

// Today is the current date in the report time zone.
func (b *Builder) Today() timeseries.Date {
	return timeseries.DateOf(b.now())
}

func (b *Builder) now() time.Time {
	return b.clock.Now().In(b.opts.Location)
}

// Build computes every report section.
func (b *Builder) Build(snap *statistic.Snapshot) (*Report, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	now := b.now()
	today := timeseries.DateOf(now)
	calc := newCalculator(b.engine, snap)

	report := &Report{
		GeneratedAt: now,
		Hourly:      HourlySection{Rows: b.hourly(calc, today, now)},
		Daily:       DailySection{Rows: b.daily(calc, today)},
		Monthly:     MonthlySection{Rows: b.monthly(calc, today)},
		ET:          b.energyTemperature(snap, today),
		Prices:      PriceSection{Rows: b.prices(snap, today)},
		SpotPrices:  spotPrices(snap, today),
		Cost:        b.cost(calc, today),
		Table:       b.table(calc, today),
	}
	return report, nil
}

// Period prices every hour of dates against snap.
func (b *Builder) Period(snap *statistic.Snapshot, dates []timeseries.Date) (Period, error) {
	if snap == nil {
		return Period{}, ErrNilSnapshot
	}
	return newCalculator(b.engine, snap).period(dates), nil
}

func (b *Builder) hourly(calc *calculator, today timeseries.Date, now time.Time) []HourlyRow {
	current := timeseries.DateHourOf(now)
	rows := make([]HourlyRow, 0, (b.opts.HourlyDays+1)*timeseries.HoursPerDay)
	for _, d := range timeseries.DatesInRange(today.AddDays(-b.opts.HourlyDays), today) {
		for hour := 0; hour < timeseries.HoursPerDay; hour++ {
			k := timeseries.DateHour{Date: d, Hour: hour}
			if current.Before(k) {
				break
			}
			electricity, hasElectricity := calc.hour(timeseries.CarrierElectricity, k)
			heat, hasHeat := calc.hour(timeseries.CarrierHeat, k)
			price := Missing()
			if hasElectricity && hasHeat {
				price = Value(electricity.Total() + heat.Total())
			}
			temperature, ok := calc.snap.Temperature(k)
			rows = append(rows, HourlyRow{
				Date:        d,
				Hour:        hour,
				Name:        hourName(k),
				Electricity: usageValue(electricity, hasElectricity),
				Heat:        usageValue(heat, hasHeat),
				Temperature: valueOf(temperature, ok),
				Price:       price,
			})
		}
	}
	return rows
}

func (b *Builder) daily(calc *calculator, today timeseries.Date) []DailyRow {
	dates := timeseries.DatesInRange(today.AddDays(-b.opts.DailyDays), today.AddDays(-1))
	rows := make([]DailyRow, 0, len(dates))
	for _, d := range dates {
		p := calc.day(d)
		temperature, ok := calc.snap.DailyTemperature(d)
		electricityCost := p.Electricity.Total()
		heatCost := p.Heat.Total()
		rows = append(rows, DailyRow{
			Date:                  d,
			Name:                  dayName(d),
			Electricity:           countedValue(p.Electricity.UsageKWh, p.ElectricityDatapoints),
			Heat:                  countedValue(p.Heat.UsageKWh, p.HeatDatapoints),
			ElectricityDatapoints: p.ElectricityDatapoints,
			HeatDatapoints:        p.HeatDatapoints,
			Temperature:           valueOf(temperature, ok),
			ElectricityCost:       Value(electricityCost),
			HeatCost:              Value(heatCost),
			Cost:                  Value(tariff.Round2(electricityCost + heatCost)),
			ElectricityPerKWh:     ratio(electricityCost, p.Electricity.UsageKWh),
			HeatPerKWh:            ratio(heatCost, p.Heat.UsageKWh),
		})
	}
	return rows
}

func (b *Builder) monthly(calc *calculator, today timeseries.Date) []MonthlyRow {
	first, ok := calc.snap.FirstDate()
	if !ok {
		return []MonthlyRow{}
	}
	yesterday := today.AddDays(-1)
	var rows []MonthlyRow
	for m := first.YearMonth(); !today.YearMonth().Before(m); m = m.AddMonths(1) {
		dates := clampDates(m.FirstDate(), m.LastDate(), yesterday)
		p := calc.period(dates)
		temperature, hasTemperature := calc.snap.MeanDailyTemperature(dates)
		spot, hasSpot := calc.snap.MonthlySpotPrice(m)
		rows = append(rows, MonthlyRow{
			Month:                 m,
			Name:                  m.String(),
			Electricity:           countedValue(p.Electricity.UsageKWh, p.ElectricityDatapoints),
			Heat:                  countedValue(p.Heat.UsageKWh, p.HeatDatapoints),
			ElectricityDatapoints: p.ElectricityDatapoints,
			HeatDatapoints:        p.HeatDatapoints,
			Temperature:           valueOf(temperature, hasTemperature),
			SpotPrice:             valueOf(spot, hasSpot),
			ElectricityCost:       Value(p.Electricity.Total()),
			HeatCost:              Value(p.Heat.Total()),
		})
	}
	return rows
}

func (b *Builder) prices(snap *statistic.Snapshot, today timeseries.Date) []PriceRow {
	last := today
	if _, ok := snap.SpotPrice(timeseries.DateHour{Date: today.AddDays(1)}); ok {
		last = today.AddDays(1)
	}
	dates := timeseries.DatesInRange(today.AddDays(-b.opts.PriceDaysBack), last)
	rows := make([]PriceRow, 0, len(dates)*timeseries.HoursPerDay)
	for _, d := range dates {
		for hour := 0; hour < timeseries.HoursPerDay; hour++ {
			k := timeseries.DateHour{Date: d, Hour: hour}
			electricity := b.expectedPrice(snap, timeseries.CarrierElectricity, k, b.opts.FallbackElectricityKWh)
			heat := b.expectedPrice(snap, timeseries.CarrierHeat, k, b.opts.FallbackHeatKWh)
			spot, ok := snap.SpotPrice(k)
			rows = append(rows, PriceRow{
				Date:              d,
				Hour:              hour,
				Name:              hourName(k),
				SpotPrice:         valueOf(spot, ok),
				ElectricityPerKWh: electricity,
				HeatPerKWh:        heat,
			})
		}
	}
	return rows
}

// expectedPrice is the per kWh price of an hour. The assumed usage only spreads the
// static components, so it barely moves the result.
func (b *Builder) expectedPrice(snap *statistic.Snapshot, carrier timeseries.Carrier, k timeseries.DateHour, fallback float64) Value {
	usage, ok := snap.Usage(carrier, k)
	if !ok || usage <= 0 {
		usage = fallback
	}
	return ratio(b.engine.PriceHour(snap, carrier, k, usage).Total(), usage)
}

func spotPrices(snap *statistic.Snapshot, today timeseries.Date) SpotPriceSection {
	current := today.YearMonth()
	previous := current.AddMonths(-1)
	currentSpot, hasCurrent := snap.MonthlySpotPrice(current)
	previousSpot, hasPrevious := snap.MonthlySpotPrice(previous)
	return SpotPriceSection{
		CurrentMonth:  MonthSpotPrice{YearMonth: current, SpotPrice: valueOf(currentSpot, hasCurrent)},
		PreviousMonth: MonthSpotPrice{YearMonth: previous, SpotPrice: valueOf(previousSpot, hasPrevious)},
	}
}

func (b *Builder) cost(calc *calculator, today timeseries.Date) CostSection {
	yesterday := today.AddDays(-1)
	month := today.YearMonth()
	previous := month.AddMonths(-1)
	lastYear := month.AddMonths(-12)
	return CostSection{
		CurrentMonth:      costPeriod(calc, "currentMonth", month.FirstDate(), yesterday),
		PreviousMonth:     costPeriod(calc, "previousMonth", previous.FirstDate(), previous.LastDate()),
		CurrentYear:       costPeriod(calc, "currentYear", timeseries.NewDate(today.Year, time.January, 1), yesterday),
		SameMonthLastYear: costPeriod(calc, "sameMonthLastYear", lastYear.FirstDate(), lastYear.LastDate()),
	}
}

func costPeriod(calc *calculator, name string, from, to timeseries.Date) CostPeriod {
	return CostPeriod{
		Name: name,
		From: from,
		To:   to,
		Cost: calc.period(timeseries.DatesInRange(from, to)).Cost(),
	}
}

func (b *Builder) table(calc *calculator, today timeseries.Date) TableSection {
	yesterday := today.AddDays(-1)
	section := TableSection{
		Yearly:   []TableRow{},
		Monthly:  []TableRow{},
		LastDays: []TableRow{},
		YearlyToThisDate: YearToDateTable{
			UntilDayIncl: yesterday.Time(time.UTC).YearDay(),
			Data:         []TableRow{},
		},
	}

	for _, d := range timeseries.DatesInRange(today.AddDays(-b.opts.LastDays), yesterday) {
		section.LastDays = append(section.LastDays, tableRow(calc, d.String(), []timeseries.Date{d}))
	}

	first, ok := calc.snap.FirstDate()
	if !ok {
		return section
	}
	for m := first.YearMonth(); !yesterday.YearMonth().Before(m); m = m.AddMonths(1) {
		section.Monthly = append(section.Monthly, tableRow(calc, m.String(), clampDates(m.FirstDate(), m.LastDate(), yesterday)))
	}
	for year := first.Year; year <= yesterday.Year; year++ {
		start := timeseries.NewDate(year, time.January, 1)
		end := timeseries.NewDate(year, time.December, 31)
		name := fmt.Sprintf("%d", year)
		section.Yearly = append(section.Yearly, tableRow(calc, name, clampDates(start, end, yesterday)))

		until := start.AddDays(section.YearlyToThisDate.UntilDayIncl - 1)
		section.YearlyToThisDate.Data = append(section.YearlyToThisDate.Data, tableRow(calc, name, clampDates(start, until, yesterday)))
	}
	return section
}

func tableRow(calc *calculator, name string, dates []timeseries.Date) TableRow {
	p := calc.period(dates)
	row := TableRow{
		Name:                  name,
		Temperature:           Missing(),
		SpotPrice:             Missing(),
		Electricity:           p.Electricity,
		Heat:                  p.Heat,
		ElectricityDatapoints: p.ElectricityDatapoints,
		HeatDatapoints:        p.HeatDatapoints,
	}
	if temperature, ok := calc.snap.MeanDailyTemperature(dates); ok {
		row.Temperature = Value(temperature)
	}
	if len(dates) > 0 {
		if spot, ok := calc.snap.MeanSpotPrice(dates[0], dates[len(dates)-1]); ok {
			row.SpotPrice = Value(spot)
		}
	}
	return row
}

// clampDates lists from..to but never past limit.
func clampDates(from, to, limit timeseries.Date) []timeseries.Date {
	if limit.Before(to) {
		to = limit
	}
	return timeseries.DatesInRange(from, to)
}

func usageValue(b tariff.Breakdown, ok bool) Value {
	if !ok {
		return Missing()
	}
	return Value(b.UsageKWh)
}

func countedValue(usage float64, datapoints int) Value {
	if datapoints == 0 {
		return Missing()
	}
	return Value(usage)
}

func hourName(k timeseries.DateHour) string {
	return fmt.Sprintf("%s %02d", k.Date.Weekday().String()[:3], k.Hour)
}

func dayName(d timeseries.Date) string {
	return fmt.Sprintf("%d.%d", d.Day, int(d.Month))
}
