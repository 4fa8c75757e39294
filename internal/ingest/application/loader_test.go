package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"building-energy/internal/analytics/domain/statistic"
	timeseries "building-energy/internal/timeseries/domain"
)

type fakeSource struct {
	name     string
	supplies map[timeseries.Series]bool
	meters   []string
	failures int
	verified bool
	calls    []Request
	commits  int
}

func newFakeSource(meters ...string) *fakeSource {
	return &fakeSource{
		name: "fake",
		supplies: map[timeseries.Series]bool{
			timeseries.SeriesSpotPrice:         true,
			timeseries.SeriesHourlyTemperature: true,
			timeseries.SeriesDailyTemperature:  true,
			timeseries.SeriesUsage:             true,
		},
		meters:   meters,
		verified: true,
	}
}

func (f *fakeSource) Name() string                           { return f.name }
func (f *fakeSource) Supplies(series timeseries.Series) bool { return f.supplies[series] }
func (f *fakeSource) Meters() []string                       { return f.meters }
func (f *fakeSource) Commit(ctx context.Context) error {
	f.commits++
	return nil
}

func (f *fakeSource) Fetch(ctx context.Context, req Request) (timeseries.Batch, error) {
	f.calls = append(f.calls, req)
	if f.failures > 0 {
		f.failures--
		return timeseries.Batch{}, errors.New("provider unavailable")
	}
	batch := timeseries.Batch{Usage: map[string][]timeseries.HourUsage{}}
	for _, d := range timeseries.DatesInRange(req.First, req.Last) {
		switch req.Series {
		case timeseries.SeriesDailyTemperature:
			batch.DailyTemperatures = append(batch.DailyTemperatures, timeseries.DayTemperature{Date: d, MeanTemperature: 1})
			continue
		}
		for hour := 0; hour < timeseries.HoursPerDay; hour++ {
			switch req.Series {
			case timeseries.SeriesSpotPrice:
				batch.SpotPrices = append(batch.SpotPrices, timeseries.HourPrice{Date: d, Hour: hour, Price: 1000})
			case timeseries.SeriesHourlyTemperature:
				batch.HourlyTemperatures = append(batch.HourlyTemperatures, timeseries.HourTemperature{Date: d, Hour: hour, Temperature: 1})
			case timeseries.SeriesUsage:
				for _, meter := range req.Meters {
					batch.Usage[meter] = append(batch.Usage[meter], timeseries.HourUsage{
						Date: d, Hour: hour, Usage: 1, Verified: timeseries.Verified(f.verified),
					})
				}
			}
		}
	}
	return batch, nil
}

type countingRecorder struct {
	fetches map[string]int
	errors  int
	records map[string]int
}

func (r *countingRecorder) ObserveFetch(source string, err error) {
	if r.fetches == nil {
		r.fetches = map[string]int{}
	}
	r.fetches[source]++
	if err != nil {
		r.errors++
	}
}

func (r *countingRecorder) ObserveRecords(source, series string, count int) {
	if r.records == nil {
		r.records = map[string]int{}
	}
	r.records[series] += count
}

var testNow = time.Date(2023, time.March, 15, 14, 0, 0, 0, time.UTC)

func newTestLoader(t *testing.T, now time.Time, sources ...Source) (*Loader, *countingRecorder) {
	t.Helper()
	rec := &countingRecorder{}
	loader, err := NewLoader(sources, WithClock(statistic.FixedClock(now)), WithRecorder(rec))
	require.NoError(t, err)
	return loader, rec
}

func countSeries(requests []Request) map[timeseries.Series]int {
	out := map[timeseries.Series]int{}
	for _, req := range requests {
		out[req.Series]++
	}
	return out
}

func TestNewLoader_RejectsNilSource(t *testing.T) {
	_, err := NewLoader([]Source{nil})
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestPlan_EmptyDataset(t *testing.T) {
	loader, _ := newTestLoader(t, testNow, newFakeSource("M1", timeseries.DefaultHeatMeter))
	requests := loader.Plan(timeseries.NewDataset())

	counts := countSeries(requests)
	assert.Equal(t, 6, counts[timeseries.SeriesSpotPrice], "today-4..tomorrow")
	assert.Equal(t, 5, counts[timeseries.SeriesHourlyTemperature])
	assert.Equal(t, 1, counts[timeseries.SeriesDailyTemperature])
	assert.Equal(t, 2, counts[timeseries.SeriesUsage])

	for _, req := range requests {
		if req.Series == timeseries.SeriesDailyTemperature {
			assert.Equal(t, timeseries.MustParseDate("2023-03-11"), req.First)
			assert.Equal(t, timeseries.MustParseDate("2023-03-14"), req.Last)
		}
	}
	last := requests[len(requests)-1]
	assert.Equal(t, []string{timeseries.DefaultHeatMeter}, last.Meters)
	assert.Equal(t, []string{"M1"}, requests[len(requests)-2].Meters)
}

func TestPlan_NoTomorrowBeforeThirteen(t *testing.T) {
	loader, _ := newTestLoader(t, testNow.Add(-2*time.Hour), newFakeSource())
	counts := countSeries(loader.Plan(timeseries.NewDataset()))
	assert.Equal(t, 5, counts[timeseries.SeriesSpotPrice])
}

func TestLoad_CompletesDataset(t *testing.T) {
	source := newFakeSource("M1", timeseries.DefaultHeatMeter)
	loader, rec := newTestLoader(t, testNow, source)
	ds := timeseries.NewDataset()

	result, err := loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 14, result.Requests)
	assert.Equal(t, 6*24, result.Records[timeseries.SeriesSpotPrice])
	assert.Equal(t, 2*5*24, result.Records[timeseries.SeriesUsage])
	assert.Equal(t, 2*5*24, rec.records[string(timeseries.SeriesUsage)])

	assert.Empty(t, loader.Plan(ds))
	assert.NotEmpty(t, ds.Changes())

	require.NoError(t, loader.Commit(context.Background()))
	assert.Equal(t, 1, source.commits)
}

func TestLoad_ProvisionalUsageIsRefetched(t *testing.T) {
	source := newFakeSource("M1")
	source.verified = false
	loader, _ := newTestLoader(t, testNow, source)
	ds := timeseries.NewDataset()

	_, err := loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Len(t, ds.Usage["M1"], 5*24)

	counts := countSeries(loader.Plan(ds))
	assert.Equal(t, 1, counts[timeseries.SeriesUsage])
}

func TestLoad_RetriesOnceThenGivesUp(t *testing.T) {
	source := newFakeSource()
	source.supplies = map[timeseries.Series]bool{timeseries.SeriesDailyTemperature: true}
	source.failures = 2
	loader, rec := newTestLoader(t, testNow, source)
	ds := timeseries.NewDataset()

	result, err := loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Len(t, source.calls, 2)
	assert.Equal(t, 2, rec.errors)
	require.Len(t, result.Failed, 1)
	assert.Empty(t, ds.DailyTemperatures)

	source.failures = 1
	source.calls = nil
	result, err = loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Len(t, source.calls, 2)
	assert.Empty(t, result.Failed)
	assert.Len(t, ds.DailyTemperatures, 4)
}

func TestLoad_RejectedBatchLeavesDatasetUntouched(t *testing.T) {
	bad := &stubSource{batch: timeseries.Batch{SpotPrices: []timeseries.HourPrice{
		{Date: timeseries.MustParseDate("2023-03-15"), Hour: 1, Price: 1},
		{Date: timeseries.MustParseDate("2023-03-15"), Hour: 1, Price: 2},
	}}}
	loader, _ := newTestLoader(t, testNow, bad)
	ds := timeseries.NewDataset()

	result, err := loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Failed)
	assert.Empty(t, ds.SpotPrices)
}

func TestLoad_CancelledContext(t *testing.T) {
	loader, _ := newTestLoader(t, testNow, newFakeSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loader.Load(ctx, timeseries.NewDataset())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = loader.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilDataset)
}

type stubSource struct {
	batch timeseries.Batch
}

func (s *stubSource) Name() string { return "stub" }
func (s *stubSource) Supplies(series timeseries.Series) bool {
	return series == timeseries.SeriesSpotPrice
}
func (s *stubSource) Fetch(ctx context.Context, req Request) (timeseries.Batch, error) {
	return s.batch, nil
}

type fakeFeed struct {
	batches []timeseries.Batch
	commits int
}

func (f *fakeFeed) Name() string { return "feed" }
func (f *fakeFeed) Drain(ctx context.Context) ([]timeseries.Batch, error) {
	out := f.batches
	f.batches = nil
	return out, nil
}
func (f *fakeFeed) Commit(ctx context.Context) error {
	f.commits++
	return nil
}

func TestLoad_DrainsFeedsBeforePlanning(t *testing.T) {
	d := timeseries.MustParseDate("2023-03-15")
	first := timeseries.Batch{Usage: map[string][]timeseries.HourUsage{"M1": {
		{Date: d, Hour: 0, Usage: 5},
		{Date: d, Hour: 1, Usage: 5},
	}}}
	correction := timeseries.Batch{Usage: map[string][]timeseries.HourUsage{"M1": {
		{Date: d, Hour: 0, Usage: 7},
	}}}
	feed := &fakeFeed{batches: []timeseries.Batch{first, correction}}
	rec := &countingRecorder{}
	loader, err := NewLoader(nil, WithClock(statistic.FixedClock(testNow)), WithFeeds(feed), WithRecorder(rec))
	require.NoError(t, err)

	ds := timeseries.NewDataset()
	result, err := loader.Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records[timeseries.SeriesUsage])
	require.Len(t, ds.Usage["M1"], 1, "a correction replaces the whole day")
	assert.Equal(t, 7.0, ds.Usage["M1"][0].Usage)
	assert.Equal(t, 1, rec.fetches["feed"])

	require.NoError(t, loader.Commit(context.Background()))
	assert.Equal(t, 1, feed.commits)
}
