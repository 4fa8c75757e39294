package statistic

import (
	timeseries "building-energy/internal/timeseries/domain"
)

const (
	// DefaultSalesTax is the VAT multiplier applied to spot prices.
	DefaultSalesTax = 1.25
	kWhPerMWh       = 1000
)

// Snapshot is a read-only index of a Dataset, rebuilt for every report run.
type Snapshot struct {
	usage       map[timeseries.Carrier]map[timeseries.DateHour]float64
	spotByHour  map[timeseries.DateHour]float64
	spotByMonth map[timeseries.YearMonth]float64
	tempByHour  map[timeseries.DateHour]float64
	tempByDate  map[timeseries.Date]float64
	firstDate   timeseries.Date
	lastDate    timeseries.Date
	hasUsage    bool
}

// SnapshotOption configures BuildSnapshot.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	heatMeter string
	salesTax  float64
}

// WithHeatMeter sets the meter name that carries district heat.
func WithHeatMeter(name string) SnapshotOption {
	return func(cfg *snapshotConfig) {
		if name != "" {
			cfg.heatMeter = name
		}
	}
}

// WithSalesTax overrides the VAT multiplier.
func WithSalesTax(multiplier float64) SnapshotOption {
	return func(cfg *snapshotConfig) {
		if multiplier > 0 {
			cfg.salesTax = multiplier
		}
	}
}

// CarrierOf classifies a meter.
func CarrierOf(meter, heatMeter string) timeseries.Carrier {
	if meter == heatMeter {
		return timeseries.CarrierHeat
	}
	return timeseries.CarrierElectricity
}

// BuildSnapshot indexes ds. Electricity usage is summed across meters, heat comes from
// the heat meter alone, spot prices are converted to tax-inclusive currency per kWh.
func BuildSnapshot(ds *timeseries.Dataset, opts ...SnapshotOption) (*Snapshot, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	cfg := snapshotConfig{heatMeter: timeseries.DefaultHeatMeter, salesTax: DefaultSalesTax}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Snapshot{
		usage: map[timeseries.Carrier]map[timeseries.DateHour]float64{
			timeseries.CarrierElectricity: {},
			timeseries.CarrierHeat:        {},
		},
		spotByHour:  make(map[timeseries.DateHour]float64, len(ds.SpotPrices)),
		spotByMonth: make(map[timeseries.YearMonth]float64),
		tempByHour:  make(map[timeseries.DateHour]float64, len(ds.HourlyTemperatures)),
		tempByDate:  make(map[timeseries.Date]float64, len(ds.DailyTemperatures)),
	}

	for meter, records := range ds.Usage {
		byHour := s.usage[CarrierOf(meter, cfg.heatMeter)]
		for _, record := range records {
			byHour[record.Key()] += record.Usage
			s.observeDate(record.Date)
		}
	}

	monthSum := make(map[timeseries.YearMonth]float64)
	monthCount := make(map[timeseries.YearMonth]int)
	for _, record := range ds.SpotPrices {
		price := record.Price / kWhPerMWh * cfg.salesTax
		s.spotByHour[record.Key()] = price
		month := record.Date.YearMonth()
		monthSum[month] += price
		monthCount[month]++
	}
	for month, sum := range monthSum {
		s.spotByMonth[month] = sum / float64(monthCount[month])
	}

	for _, record := range ds.HourlyTemperatures {
		s.tempByHour[record.Key()] = record.Temperature
	}
	for _, record := range ds.DailyTemperatures {
		s.tempByDate[record.Date] = record.MeanTemperature
	}
	return s, nil
}

func (s *Snapshot) observeDate(d timeseries.Date) {
	if !s.hasUsage {
		s.firstDate, s.lastDate, s.hasUsage = d, d, true
		return
	}
	if d.Before(s.firstDate) {
		s.firstDate = d
	}
	if d.After(s.lastDate) {
		s.lastDate = d
	}
}

// Usage returns a carrier's usage for one hour.
func (s *Snapshot) Usage(c timeseries.Carrier, k timeseries.DateHour) (float64, bool) {
	v, ok := s.usage[c][k]
	return v, ok
}

// DayUsage sums a carrier's usage over the hours present on d.
func (s *Snapshot) DayUsage(c timeseries.Carrier, d timeseries.Date) (float64, int) {
	var sum float64
	var count int
	for hour := 0; hour < timeseries.HoursPerDay; hour++ {
		if v, ok := s.usage[c][timeseries.DateHour{Date: d, Hour: hour}]; ok {
			sum += v
			count++
		}
	}
	return sum, count
}

// SpotPrice returns the tax-inclusive per kWh spot price of one hour.
func (s *Snapshot) SpotPrice(k timeseries.DateHour) (float64, bool) {
	v, ok := s.spotByHour[k]
	return v, ok
}

// MonthlySpotPrice returns the mean over the hours reported in the month.
func (s *Snapshot) MonthlySpotPrice(m timeseries.YearMonth) (float64, bool) {
	v, ok := s.spotByMonth[m]
	return v, ok
}

// MeanSpotPrice averages the hourly spot prices reported between first and last.
func (s *Snapshot) MeanSpotPrice(first, last timeseries.Date) (float64, bool) {
	var sum float64
	var count int
	for _, d := range timeseries.DatesInRange(first, last) {
		for hour := 0; hour < timeseries.HoursPerDay; hour++ {
			if v, ok := s.spotByHour[timeseries.DateHour{Date: d, Hour: hour}]; ok {
				sum += v
				count++
			}
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// Temperature returns the hourly temperature.
func (s *Snapshot) Temperature(k timeseries.DateHour) (float64, bool) {
	v, ok := s.tempByHour[k]
	return v, ok
}

// DailyTemperature returns the daily mean temperature.
func (s *Snapshot) DailyTemperature(d timeseries.Date) (float64, bool) {
	v, ok := s.tempByDate[d]
	return v, ok
}

// MeanDailyTemperature averages the daily means known for dates.
func (s *Snapshot) MeanDailyTemperature(dates []timeseries.Date) (float64, bool) {
	var sum float64
	var count int
	for _, d := range dates {
		if v, ok := s.tempByDate[d]; ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// FirstDate is the earliest date with usage.
func (s *Snapshot) FirstDate() (timeseries.Date, bool) { return s.firstDate, s.hasUsage }

// LastDate is the latest date with usage.
func (s *Snapshot) LastDate() (timeseries.Date, bool) { return s.lastDate, s.hasUsage }

// HasUsage reports whether any usage was indexed.
func (s *Snapshot) HasUsage() bool { return s.hasUsage }
