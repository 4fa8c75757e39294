package timeseries

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Series names a stored record stream.
type Series string

const (
	SeriesSpotPrice         Series = "spot_price"
	SeriesHourlyTemperature Series = "hourly_temperature"
	SeriesDailyTemperature  Series = "daily_temperature"
	SeriesUsage             Series = "usage"
)

// Change identifies a day of one series that was rewritten since the last save.
type Change struct {
	Series Series
	Meter  string
	Date   Date
}

// Batch is a set of newly fetched records, normalized by a data source adapter.
type Batch struct {
	SpotPrices         []HourPrice            `json:"nordpool,omitempty"`
	HourlyTemperatures []HourTemperature      `json:"hourlyTemperature,omitempty"`
	DailyTemperatures  []DayTemperature       `json:"dailyTemperature,omitempty"`
	Usage              map[string][]HourUsage `json:"powerUsage,omitempty"`
}

// IsEmpty reports whether the batch carries no records.
func (b Batch) IsEmpty() bool {
	if len(b.SpotPrices) > 0 || len(b.HourlyTemperatures) > 0 || len(b.DailyTemperatures) > 0 {
		return false
	}
	for _, records := range b.Usage {
		if len(records) > 0 {
			return false
		}
	}
	return true
}

// Records counts records per series.
func (b Batch) Records() map[Series]int {
	counts := map[Series]int{
		SeriesSpotPrice:         len(b.SpotPrices),
		SeriesHourlyTemperature: len(b.HourlyTemperatures),
		SeriesDailyTemperature:  len(b.DailyTemperatures),
	}
	for _, records := range b.Usage {
		counts[SeriesUsage] += len(records)
	}
	return counts
}

// Dataset is the persisted aggregate. All containers are always initialized.
type Dataset struct {
	SpotPrices         []HourPrice
	HourlyTemperatures []HourTemperature
	DailyTemperatures  []DayTemperature
	Usage              map[string][]HourUsage

	changes map[Change]struct{}
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		SpotPrices:         []HourPrice{},
		HourlyTemperatures: []HourTemperature{},
		DailyTemperatures:  []DayTemperature{},
		Usage:              make(map[string][]HourUsage),
		changes:            make(map[Change]struct{}),
	}
}

// Meters returns the stored meter names in sorted order.
func (d *Dataset) Meters() []string {
	meters := make([]string, 0, len(d.Usage))
	for meter := range d.Usage {
		meters = append(meters, meter)
	}
	sort.Strings(meters)
	return meters
}

// MergeUsage merges a batch into one meter's series.
func (d *Dataset) MergeUsage(meter string, batch []HourUsage) error {
	if meter == "" {
		return ErrEmptyMeter
	}
	if len(batch) == 0 {
		return nil
	}
	merged, err := MergeRange(d.Usage[meter], batch)
	if err != nil {
		return fmt.Errorf("meter %s: %w", meter, err)
	}
	d.Usage[meter] = merged
	d.markHourly(SeriesUsage, meter, BatchDates(batch))
	return nil
}

// MergeSpotPrices merges spot prices with whole-day replacement.
func (d *Dataset) MergeSpotPrices(batch []HourPrice) error {
	merged, err := MergeRange(d.SpotPrices, batch)
	if err != nil {
		return fmt.Errorf("spot prices: %w", err)
	}
	d.SpotPrices = merged
	d.markHourly(SeriesSpotPrice, "", BatchDates(batch))
	return nil
}

// MergeHourlyTemperatures merges hourly temperatures with whole-day replacement.
func (d *Dataset) MergeHourlyTemperatures(batch []HourTemperature) error {
	merged, err := MergeRange(d.HourlyTemperatures, batch)
	if err != nil {
		return fmt.Errorf("hourly temperatures: %w", err)
	}
	d.HourlyTemperatures = merged
	d.markHourly(SeriesHourlyTemperature, "", BatchDates(batch))
	return nil
}

// MergeDailyTemperatures replaces daily means by date.
func (d *Dataset) MergeDailyTemperatures(batch []DayTemperature) error {
	merged, err := MergeDays(d.DailyTemperatures, batch)
	if err != nil {
		return fmt.Errorf("daily temperatures: %w", err)
	}
	d.DailyTemperatures = merged
	for _, record := range batch {
		d.mark(Change{Series: SeriesDailyTemperature, Date: record.Date})
	}
	return nil
}

// Apply validates the whole batch first and then merges every part of it, so a
// rejected batch leaves the dataset untouched.
func (d *Dataset) Apply(batch Batch) error {
	if err := validate(batch); err != nil {
		return err
	}
	if err := d.MergeSpotPrices(batch.SpotPrices); err != nil {
		return err
	}
	if err := d.MergeHourlyTemperatures(batch.HourlyTemperatures); err != nil {
		return err
	}
	if err := d.MergeDailyTemperatures(batch.DailyTemperatures); err != nil {
		return err
	}
	meters := make([]string, 0, len(batch.Usage))
	for meter := range batch.Usage {
		meters = append(meters, meter)
	}
	sort.Strings(meters)
	for _, meter := range meters {
		if err := d.MergeUsage(meter, batch.Usage[meter]); err != nil {
			return err
		}
	}
	return nil
}

func validate(batch Batch) error {
	if err := ValidateBatch(batch.SpotPrices); err != nil {
		return fmt.Errorf("spot prices: %w", err)
	}
	if err := ValidateBatch(batch.HourlyTemperatures); err != nil {
		return fmt.Errorf("hourly temperatures: %w", err)
	}
	if _, err := MergeDays(nil, batch.DailyTemperatures); err != nil {
		return fmt.Errorf("daily temperatures: %w", err)
	}
	for meter, records := range batch.Usage {
		if meter == "" {
			return ErrEmptyMeter
		}
		if err := ValidateBatch(records); err != nil {
			return fmt.Errorf("meter %s: %w", meter, err)
		}
	}
	return nil
}

// AsBatch returns the dataset content as a batch sharing the stored slices.
func (d *Dataset) AsBatch() Batch {
	return Batch{
		SpotPrices:         d.SpotPrices,
		HourlyTemperatures: d.HourlyTemperatures,
		DailyTemperatures:  d.DailyTemperatures,
		Usage:              d.Usage,
	}
}

// Changes lists the days rewritten since the dataset was loaded or last cleared.
func (d *Dataset) Changes() []Change {
	changes := make([]Change, 0, len(d.changes))
	for change := range d.changes {
		changes = append(changes, change)
	}
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.Series != b.Series {
			return a.Series < b.Series
		}
		if a.Meter != b.Meter {
			return a.Meter < b.Meter
		}
		return a.Date.Before(b.Date)
	})
	return changes
}

// ClearChanges is called by stores after a successful save.
func (d *Dataset) ClearChanges() {
	d.changes = make(map[Change]struct{})
}

func (d *Dataset) markHourly(series Series, meter string, dates map[Date]struct{}) {
	for date := range dates {
		d.mark(Change{Series: series, Meter: meter, Date: date})
	}
}

func (d *Dataset) mark(change Change) {
	if d.changes == nil {
		d.changes = make(map[Change]struct{})
	}
	d.changes[change] = struct{}{}
}

type document struct {
	SpotPrices         []HourPrice            `json:"nordpool"`
	HourlyTemperatures []HourTemperature      `json:"hourlyTemperature"`
	DailyTemperatures  []DayTemperature       `json:"dailyTemperature"`
	Usage              map[string][]HourUsage `json:"powerUsage"`
}

// MarshalJSON writes the persisted dataset shape.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{
		SpotPrices:         d.SpotPrices,
		HourlyTemperatures: d.HourlyTemperatures,
		DailyTemperatures:  d.DailyTemperatures,
		Usage:              d.Usage,
	})
}

// UnmarshalJSON reads the persisted shape; absent keys become empty containers.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	loaded := NewDataset()
	if doc.SpotPrices != nil {
		loaded.SpotPrices = doc.SpotPrices
	}
	if doc.HourlyTemperatures != nil {
		loaded.HourlyTemperatures = doc.HourlyTemperatures
	}
	if doc.DailyTemperatures != nil {
		loaded.DailyTemperatures = doc.DailyTemperatures
	}
	for meter, records := range doc.Usage {
		if records == nil {
			records = []HourUsage{}
		}
		loaded.Usage[meter] = records
	}
	loaded.normalize()
	*d = *loaded
	return nil
}

// Normalize restores the ordering invariant after loading from a store.
func (d *Dataset) Normalize() { d.normalize() }

func (d *Dataset) normalize() {
	sortHourly(d.SpotPrices)
	sortHourly(d.HourlyTemperatures)
	sort.SliceStable(d.DailyTemperatures, func(i, j int) bool {
		return d.DailyTemperatures[i].Date.Before(d.DailyTemperatures[j].Date)
	})
	for meter := range d.Usage {
		sortHourly(d.Usage[meter])
	}
}

// Clone returns a deep copy without pending changes.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset()
	out.SpotPrices = append(out.SpotPrices, d.SpotPrices...)
	out.HourlyTemperatures = append(out.HourlyTemperatures, d.HourlyTemperatures...)
	out.DailyTemperatures = append(out.DailyTemperatures, d.DailyTemperatures...)
	for meter, records := range d.Usage {
		copied := make([]HourUsage, len(records))
		for i, record := range records {
			copied[i] = record
			if record.Verified != nil {
				copied[i].Verified = Verified(*record.Verified)
			}
		}
		out.Usage[meter] = copied
	}
	return out
}
